package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose    bool
	configPath string
	backendURL string
)

// Config is the sagevox CLI configuration file.
type Config struct {
	// BackendURL is the SageVox backend base URL.
	BackendURL string `yaml:"backend_url"`

	// Transport selects the room transport: "webrtc" (default) or "ws".
	Transport string `yaml:"transport,omitempty"`

	// Voice overrides the narrator voice sent with token requests.
	Voice string `yaml:"voice,omitempty"`

	// DataDir is where the session journal lives. Empty keeps sessions
	// in memory only.
	DataDir string `yaml:"data_dir,omitempty"`
}

var rootCmd = &cobra.Command{
	Use:   "sagevox",
	Short: "SageVox voice session CLI",
	Long: `sagevox - terminal host for SageVox audiobook voice sessions.

Connect a live voice session against a SageVox backend, monitor its state,
and browse the book library.

Configuration is read from the OS config directory:
  macOS:   ~/Library/Application Support/sagevox/config.yaml
  Linux:   ~/.config/sagevox/config.yaml

Examples:
  # List the library
  sagevox books --backend https://api.example.com

  # Run a voice session against chapter 3 of a book
  sagevox session run --book moby-dick --chapter 3 --offset 42.5

  # Watch a live session with state and level bars
  sagevox session monitor --book moby-dick --chapter 3`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: OS config dir)")
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "backend base URL (overrides config)")

	cobra.OnInitialize(func() {
		if verbose {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	})
}

func defaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sagevox", "config.yaml"), nil
}

// loadConfig reads the YAML config file and applies flag overrides. A missing
// file yields a zero config so flag-only invocations work.
func loadConfig() (*Config, error) {
	path := configPath
	if path == "" {
		var err error
		if path, err = defaultConfigPath(); err != nil {
			return nil, fmt.Errorf("locate config: %w", err)
		}
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// flags only
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if backendURL != "" {
		cfg.BackendURL = backendURL
	}
	if cfg.Transport == "" {
		cfg.Transport = "webrtc"
	}
	return &cfg, nil
}

// requireBackend returns the backend URL or a usage error.
func requireBackend(cfg *Config) (string, error) {
	if cfg.BackendURL == "" {
		return "", fmt.Errorf("backend URL required (use --backend or set backend_url in config)")
	}
	return cfg.BackendURL, nil
}
