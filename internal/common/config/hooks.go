package config

import (
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// CustomHooks are the decode hooks applied when unmarshalling configuration.
// Packages with their own config types append to this list through DecodeHooks.
var CustomHooks = []mapstructure.DecodeHookFunc{
	mapstructure.StringToTimeDurationHookFunc(),
	mapstructure.StringToSliceHookFunc(","),
	TrimmedStringHookFunc(),
}

// DecodeHooks returns a viper option composing CustomHooks with any extra hooks supplied.
func DecodeHooks(extra ...mapstructure.DecodeHookFunc) viper.DecoderConfigOption {
	hooks := append(append([]mapstructure.DecodeHookFunc{}, CustomHooks...), extra...)
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(hooks...))
}

// TrimmedStringHookFunc strips surrounding whitespace from string values, which commonly sneaks in via env vars.
func TrimmedStringHookFunc() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.String {
			return data, nil
		}
		return strings.TrimSpace(data.(string)), nil
	}
}
