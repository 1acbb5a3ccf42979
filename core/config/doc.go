// Package config loads typed configuration from environment variables using
// caarlos0/env struct tags. Each configuration type is parsed once and cached.
//
//	var cfg body.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
//	// Or panic on failure (useful for startup)
//	config.MustLoad(&cfg)
//
// A .env file in the working directory is loaded on first use through
// joho/godotenv; variables already present in the environment win.
package config
