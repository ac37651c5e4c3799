package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"msgharness/internal/backend"
	"msgharness/internal/httpapi"
	"msgharness/internal/instance"
	"msgharness/internal/lru"
	"msgharness/internal/metrics"
	"msgharness/internal/session"
	"msgharness/internal/session/loopback"
	"msgharness/pkg/harness"
)

const (
	envConfigFile           = "HARNESS_CONFIG_FILE"
	envListenAddr           = "HARNESS_LISTEN_ADDR"
	defaultConfigFilePath   = "config/harness.json"
	alternateConfigFilePath = "bin/config/harness.json"
	defaultListenAddr       = ":21080"
	defaultShutdownTimeout  = 10 * time.Second
	defaultMaxInstances     = 100
	readHeaderTimeout       = 10 * time.Second
)

type appConfig struct {
	logLevel slog.Level

	listenAddr      string
	shutdownTimeout time.Duration
	maxBodyBytes    int64

	maxInstances    int
	messageCapacity int
	logoutOnEvict   bool

	defaultBackend string
	backends       []harness.Backend
	session        session.Definition
}

type fileConfig struct {
	LogLevel string              `json:"log_level"`
	HTTP     fileHTTPConfig      `json:"http"`
	Registry fileRegistryConfig  `json:"registry"`
	Backend  string              `json:"default_backend"`
	Backends []fileBackendEntry  `json:"backends"`
	Session  *fileSessionSection `json:"session"`
}

type fileHTTPConfig struct {
	ListenAddr      string `json:"listen_addr"`
	ShutdownTimeout string `json:"shutdown_timeout"`
	MaxBodyBytes    *int64 `json:"max_body_bytes"`
}

type fileRegistryConfig struct {
	MaxInstances    *int  `json:"max_instances"`
	MessageCapacity *int  `json:"message_capacity"`
	LogoutOnEvict   *bool `json:"logout_on_evict"`
}

type fileBackendEntry struct {
	Name         string `json:"name"`
	RestURL      string `json:"rest"`
	WebSocketURL string `json:"ws"`
}

type fileSessionSection struct {
	Type   string          `json:"type"`
	Config json.RawMessage `json:"config"`
}

func run() error {
	if err := loadDotEnv(".env"); err != nil {
		return err
	}

	providers, err := session.NewBuiltinRegistry()
	if err != nil {
		return fmt.Errorf("new builtin session registry: %w", err)
	}

	cfg, configFile, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.logLevel}))
	slog.SetDefault(logger)
	if configFile == "" {
		logger.Info("no config file found, using defaults")
	} else {
		logger.Info("config loaded", "path", configFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, logger, cfg, providers)
	if err != nil {
		return err
	}

	return app.serve(ctx)
}

type app struct {
	logger          *slog.Logger
	server          *http.Server
	registry        *instance.Registry
	shutdownTimeout time.Duration
}

func buildApp(ctx context.Context, logger *slog.Logger, cfg appConfig, providers *session.Registry) (*app, error) {
	selector, err := backend.NewSelector(
		backend.WithDefault(cfg.defaultBackend),
		backend.WithBackends(cfg.backends...),
	)
	if err != nil {
		return nil, fmt.Errorf("build backend selector: %w", err)
	}

	connector, err := providers.Build(ctx, cfg.session, logger)
	if err != nil {
		return nil, fmt.Errorf("build session provider: %w", err)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.New(promRegistry)

	registry, err := instance.NewRegistry(selector, connector,
		instance.WithLogger(logger),
		instance.WithMetrics(appMetrics),
		instance.WithMaxInstances(cfg.maxInstances),
		instance.WithMessageCapacity(cfg.messageCapacity),
		instance.WithLogoutOnEvict(cfg.logoutOnEvict),
	)
	if err != nil {
		return nil, fmt.Errorf("build instance registry: %w", err)
	}

	router := httpapi.NewRouter(registry,
		httpapi.WithLogger(logger),
		httpapi.WithMetrics(appMetrics, promRegistry),
		httpapi.WithMaxBodyBytes(cfg.maxBodyBytes),
	)

	return &app{
		logger:   logger,
		registry: registry,
		server: &http.Server{
			Addr:              cfg.listenAddr,
			Handler:           router,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		shutdownTimeout: cfg.shutdownTimeout,
	}, nil
}

// serve runs the HTTP server until ctx is cancelled, then drains requests and logs every instance out.
func (a *app) serve(ctx context.Context) error {
	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("serve http: %w", err)
		}
		serveErr = nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	a.logger.Info("shutting down")
	var shutdownErrs []error
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		shutdownErrs = append(shutdownErrs, fmt.Errorf("shutdown http server: %w", err))
	}
	if err := a.registry.Shutdown(shutdownCtx); err != nil {
		shutdownErrs = append(shutdownErrs, err)
	}
	if serveErr != nil {
		<-serveErr
	}

	return errors.Join(append([]error{runErr}, shutdownErrs...)...)
}

// loadDotEnv exports variables from path when it exists. Variables already set win.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}

	return nil
}

func loadConfig() (appConfig, string, error) {
	cfg := defaultAppConfig()
	configFile, err := resolveConfigFilePath()
	if err != nil {
		return appConfig{}, "", err
	}

	if configFile != "" {
		if err := applyConfigFile(&cfg, configFile); err != nil {
			return appConfig{}, "", err
		}
	}
	if listenAddr := strings.TrimSpace(os.Getenv(envListenAddr)); listenAddr != "" {
		cfg.listenAddr = listenAddr
	}
	if err := validateAppConfig(&cfg); err != nil {
		return appConfig{}, "", fmt.Errorf("validate config: %w", err)
	}

	return cfg, configFile, nil
}

// resolveConfigFilePath returns an empty path when no candidate exists and none was requested.
func resolveConfigFilePath() (string, error) {
	if configFile := strings.TrimSpace(os.Getenv(envConfigFile)); configFile != "" {
		return configFile, nil
	}

	candidates := []string{defaultConfigFilePath, alternateConfigFilePath}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", fmt.Errorf("config file %s is a directory", candidate)
			}
			return candidate, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat config file %s: %w", candidate, err)
		}
	}

	return "", nil
}

func defaultAppConfig() appConfig {
	return appConfig{
		logLevel: slog.LevelInfo,

		listenAddr:      defaultListenAddr,
		shutdownTimeout: defaultShutdownTimeout,
		maxBodyBytes:    32 << 20,

		maxInstances:    defaultMaxInstances,
		messageCapacity: lru.DefaultCapacity,

		defaultBackend: backend.NameStaging,
		session:        session.Definition{Type: loopback.ProviderType},
	}
}

func applyConfigFile(cfg *appConfig, path string) error {
	if cfg == nil {
		return fmt.Errorf("apply config file: nil config")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var parsed fileConfig
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if rawLevel := strings.TrimSpace(parsed.LogLevel); rawLevel != "" {
		level, err := parseLogLevel(rawLevel)
		if err != nil {
			return fmt.Errorf("parse log_level: %w", err)
		}
		cfg.logLevel = level
	}

	if listenAddr := strings.TrimSpace(parsed.HTTP.ListenAddr); listenAddr != "" {
		cfg.listenAddr = listenAddr
	}
	if rawTimeout := strings.TrimSpace(parsed.HTTP.ShutdownTimeout); rawTimeout != "" {
		timeout, err := time.ParseDuration(rawTimeout)
		if err != nil {
			return fmt.Errorf("parse http.shutdown_timeout: %w", err)
		}
		if timeout <= 0 {
			return fmt.Errorf("parse http.shutdown_timeout: must be > 0")
		}
		cfg.shutdownTimeout = timeout
	}
	if parsed.HTTP.MaxBodyBytes != nil {
		if *parsed.HTTP.MaxBodyBytes <= 0 {
			return fmt.Errorf("parse http.max_body_bytes: must be > 0")
		}
		cfg.maxBodyBytes = *parsed.HTTP.MaxBodyBytes
	}

	if parsed.Registry.MaxInstances != nil {
		if *parsed.Registry.MaxInstances <= 0 {
			return fmt.Errorf("parse registry.max_instances: must be > 0")
		}
		cfg.maxInstances = *parsed.Registry.MaxInstances
	}
	if parsed.Registry.MessageCapacity != nil {
		if *parsed.Registry.MessageCapacity <= 0 {
			return fmt.Errorf("parse registry.message_capacity: must be > 0")
		}
		cfg.messageCapacity = *parsed.Registry.MessageCapacity
	}
	if parsed.Registry.LogoutOnEvict != nil {
		cfg.logoutOnEvict = *parsed.Registry.LogoutOnEvict
	}

	if defaultBackend := strings.TrimSpace(parsed.Backend); defaultBackend != "" {
		cfg.defaultBackend = defaultBackend
	}
	cfg.backends = make([]harness.Backend, 0, len(parsed.Backends))
	for index, entry := range parsed.Backends {
		descriptor := harness.Backend{
			Name:         strings.TrimSpace(entry.Name),
			RestURL:      strings.TrimSpace(entry.RestURL),
			WebSocketURL: strings.TrimSpace(entry.WebSocketURL),
		}
		if descriptor.Name == "" {
			return fmt.Errorf("parse backends[%d].name: required", index)
		}
		cfg.backends = append(cfg.backends, descriptor)
	}

	if parsed.Session != nil {
		cfg.session = session.Definition{
			Type:   strings.TrimSpace(parsed.Session.Type),
			Config: append([]byte(nil), parsed.Session.Config...),
		}
	}

	return nil
}

func validateAppConfig(cfg *appConfig) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if cfg.session.Type == "" {
		return fmt.Errorf("session.type is required")
	}
	if cfg.listenAddr == "" {
		return fmt.Errorf("http.listen_addr is required")
	}

	// Descriptor URLs and the default name are checked by building the selector once.
	if _, err := backend.NewSelector(
		backend.WithDefault(cfg.defaultBackend),
		backend.WithBackends(cfg.backends...),
	); err != nil {
		return err
	}

	return nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported level %q", raw)
	}
}
