package config

import (
	"time"

	"github.com/go-redis/redis"
)

// RedisConfig selects a single node, a cluster (several Addrs) or a sentinel group (MasterName set).
type RedisConfig struct {
	Addrs      []string `validate:"required"`
	MasterName string
	DB         int `validate:"gte=0,lte=16"`
	Password   string

	PoolSize     int `validate:"required"`
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

func (rc RedisConfig) AsUniversalOptions() *redis.UniversalOptions {
	return &redis.UniversalOptions{
		Addrs:        rc.Addrs,
		MasterName:   rc.MasterName,
		DB:           rc.DB,
		Password:     rc.Password,
		PoolSize:     rc.PoolSize,
		MinIdleConns: rc.MinIdleConns,
		MaxRetries:   rc.MaxRetries,
		DialTimeout:  rc.DialTimeout,
		ReadTimeout:  rc.ReadTimeout,
		WriteTimeout: rc.WriteTimeout,
		IdleTimeout:  rc.IdleTimeout,
	}
}
