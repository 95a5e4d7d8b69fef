// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/jeranaias/parley-tui/internal/api"
	"github.com/jeranaias/parley-tui/internal/config"
	"github.com/jeranaias/parley-tui/internal/logging"
	"github.com/jeranaias/parley-tui/internal/notify"
	"github.com/jeranaias/parley-tui/internal/session"
	"github.com/jeranaias/parley-tui/internal/storage"
)

// options are the persistent flags shared by every command.
type options struct {
	configPath string
	server     string
	logLevel   string
	verbose    bool
	resetToken string
}

// loadConfig reads the config file named by --config, or the default
// one, and applies the flag overrides. A broken default config file is
// reported on warn and the defaults are used.
func (o *options) loadConfig(warn io.Writer) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFromPath(o.configPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg, err = config.Load()
		if cfg == nil {
			return nil, err
		}
		if err != nil {
			fmt.Fprintf(warn, "Warning: %v (using defaults)\n", err)
		}
	}

	if o.server != "" {
		cfg.Server.APIURL = o.server
		cfg.Server.SocketURL = ""
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setupLogging sends logs to the log file, or to stderr with --verbose.
func (o *options) setupLogging(cfg *config.Config, dataDir string) (io.Closer, error) {
	if o.verbose {
		return logging.Setup(logging.Options{Level: "debug", Console: true})
	}
	file := cfg.Logging.File
	if file == "" {
		file = filepath.Join(dataDir, "parley.log")
	}
	return logging.Setup(logging.Options{Level: cfg.Logging.Level, File: file})
}

// =============================================================================
// APP
// =============================================================================

// App holds the client and session every command runs on.
type App struct {
	Config  *config.Config
	DataDir string
	Client  *api.Client
	Session *session.Manager

	prefs  storage.Store
	logger io.Closer
}

// newApp builds the client and session from cfg. interactive keeps the
// transport reconnecting; one-shot commands turn that off.
func newApp(opts *options, cfg *config.Config, n notify.Notifier, interactive bool) (*App, error) {
	if err := config.EnsureConfigDir(); err != nil {
		return nil, err
	}
	dataDir, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}
	logger, err := opts.setupLogging(cfg, dataDir)
	if err != nil {
		return nil, err
	}

	client, err := api.NewClient(cfg.Server.APIURL)
	if err != nil {
		logger.Close()
		return nil, err
	}
	client = client.
		WithTimeout(cfg.Server.Timeout()).
		WithLogger(logging.For("api"))

	cookies := storage.NewSessionFile(
		filepath.Join(dataDir, "session"),
		filepath.Join(dataDir, "session.key"),
	)
	sess := session.New(client, session.SocketDialer(cfg.Server.ResolvedSocketURL(), client), n).
		WithCookieStore(cookies).
		WithLogger(logging.For("session"))
	if !interactive {
		sess = sess.WithReconnect(0)
	}

	log.Debug().
		Str("api", cfg.Server.APIURL).
		Str("data_dir", dataDir).
		Bool("interactive", interactive).
		Msg("app ready")

	return &App{
		Config:  cfg,
		DataDir: dataDir,
		Client:  client,
		Session: sess,
		logger:  logger,
	}, nil
}

// Prefs opens the preference store named by the config.
func (a *App) Prefs() (storage.Store, error) {
	if a.prefs != nil {
		return a.prefs, nil
	}
	backend := a.Config.Storage.Backend
	path := a.Config.Storage.Path
	if path == "" {
		path = storage.DefaultPath(a.DataDir, backend)
	}
	prefs, err := storage.Open(backend, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open preferences: %w", err)
	}
	a.prefs = prefs
	return prefs, nil
}

// Close drops the transport and releases the stores.
func (a *App) Close() {
	a.Session.DisconnectTransport()
	if a.prefs != nil {
		if err := a.prefs.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close preferences")
		}
	}
	a.logger.Close()
}
