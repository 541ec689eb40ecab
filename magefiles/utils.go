//go:build mage

package main

import (
	"os"
	"path/filepath"
	"runtime"
)

func binaryPath(name string) string {
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(localBin, name)
}

func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		panic(err)
	}
	return wd
}
