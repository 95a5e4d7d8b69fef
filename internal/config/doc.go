// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for parley.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - ServerConfig: Backend API and socket endpoints
//   - StorageConfig: Preference persistence backend
//   - VoiceConfig: External capture command for voice messages
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (PARLEY_*), including those from ~/.parley/.env
//   - ~/.parley/config.toml
//   - ~/.parley/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal().Err(err).Msg("load config")
//	}
//	client := api.NewClient(cfg.Server.APIURL)
package config
