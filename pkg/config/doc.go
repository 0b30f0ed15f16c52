// Package config loads typed configuration structs from environment variables
// using caarlos0/env tags, with optional .env file support for development.
//
// Example:
//
//	type HTTPConfig struct {
//		Addr string `env:"HTTP_ADDR" envDefault:":8080"`
//	}
//
//	var cfg HTTPConfig
//	config.MustLoad(&cfg)
package config
