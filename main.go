package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberLogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/linht/tuner-manager/plugins"
	"gopkg.in/yaml.v3"
)

// Configuration constants
const (
	// Server timeouts
	ServerReadTimeout  = 30 * time.Second
	ServerWriteTimeout = 30 * time.Second

	// Session management (24-hour expiry)
	SessionDuration = 24 * time.Hour
)

type Config struct {
	Server struct {
		Port   string `yaml:"port"`
		Host   string `yaml:"host"`
		Static string `yaml:"static"`
	} `yaml:"server"`
	Auth struct {
		PasswordHash string `yaml:"password_hash"`
	} `yaml:"auth"`
	Logging LoggingConfig       `yaml:"logging"`
	Tuner   plugins.TunerConfig `yaml:"tuner"`
	GPIO    plugins.GPIOConfig  `yaml:"gpio"`
	Plugins []string            `yaml:"plugins"`
}

var config Config

func main() {
	parseArgs()
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup, including the log
// file, happens on every path.
func run() int {
	// Load configuration
	if err := loadConfig(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config %s: %v\n", configPath, err)
		return 1
	}

	// Setup structured logging
	logger, logFile, err := newLogger(config.Logging, os.Stdout, debugLogging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		return 1
	}
	defer logFile.Close()
	slog.SetDefault(logger)
	slog.Info("Configuration loaded", "path", configPath)

	app := newApp()

	// Initialize and register plugins
	loaded, err := initPlugins(app)
	if err != nil {
		slog.Error("Failed to initialize plugins", "error", err)
		return 1
	}
	defer shutdownPlugins(loaded)

	addr := config.Server.Host + ":" + config.Server.Port

	// Setup graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		slog.Info("Shutting down server...")
		if err := app.ShutdownWithContext(context.Background()); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
	}()

	slog.Info("Starting tuner manager", "address", addr)
	if err := app.Listen(addr); err != nil {
		slog.Error("Failed to start server", "error", err, "address", addr)
		return 1
	}
	return 0
}

// newApp builds the fiber app with auth but without plugin routes
func newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:  ServerReadTimeout,
		WriteTimeout: ServerWriteTimeout,
		AppName:      "R82xx Tuner Manager",
	})

	// Add logger middleware
	app.Use(fiberLogger.New(fiberLogger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))

	// Serve static files
	if config.Server.Static != "" {
		app.Static("/", config.Server.Static)
	}

	// Login/logout endpoints (no auth required for login)
	app.Post("/login", sessions.handleLogin)
	app.Post("/logout", sessions.handleLogout)

	// Auth middleware for all other API routes
	if config.Auth.PasswordHash == "" {
		slog.Warn("No password hash configured, API is unauthenticated")
	} else {
		app.Use("/api", sessions.middleware)
	}

	return app
}

func loadConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if err := cfg.Tuner.Overrides.Validate(); err != nil {
		return err
	}

	config = cfg
	return nil
}

func initPlugins(app *fiber.App) ([]plugins.Plugin, error) {
	var loaded []plugins.Plugin

	for _, name := range config.Plugins {
		factory, exists := plugins.Get(name)
		if !exists {
			slog.Warn("Unknown plugin", "name", name, "available", strings.Join(plugins.Names(), ","))
			continue
		}

		// Get plugin-specific config
		var pluginConfig interface{}
		switch name {
		case "tuner":
			pluginConfig = plugins.HardwareConfig{
				Tuner: config.Tuner,
				GPIO:  config.GPIO,
			}
		}

		plugin, err := factory(pluginConfig)
		if err != nil {
			shutdownPlugins(loaded)
			return nil, fmt.Errorf("plugin %s: %w", name, err)
		}

		plugin.RegisterRoutes(app)
		loaded = append(loaded, plugin)
		slog.Info("Plugin loaded", "name", plugin.Name())
	}
	return loaded, nil
}

func shutdownPlugins(loaded []plugins.Plugin) {
	for _, p := range loaded {
		if err := p.Shutdown(); err != nil {
			slog.Error("Plugin shutdown error", "name", p.Name(), "error", err)
		}
	}
}
