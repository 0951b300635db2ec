package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/cr/internal/output"
	"github.com/joescharf/cr/internal/store"
)

var (
	// Shared dependencies, initialized in initDeps.
	ui        *output.UI
	dataStore store.Store

	// Global flags
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "cr",
	Short: "AI code review for pull requests and snippets",
	Long: `cr reviews code with a generative model.

It fetches pull request or merge request diffs from GitHub and GitLab,
or takes code directly from a file or stdin, runs a quick single-pass
review or a deep multi-agent one, scores the result, and keeps a
review history behind CLI and web dashboards.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point, called from main().
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/cr/config.yaml)")
}

func initConfig() {
	// Pick up API keys from a local .env before viper reads the
	// environment. A missing file is fine.
	_ = godotenv.Load()

	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	viper.SetDefault("state_dir", filepath.Join(home, ".config", "cr"))
	viper.SetDefault("engine.provider", "gemini")
	viper.SetDefault("engine.api_key", "")
	viper.SetDefault("engine.model", "")
	viper.SetDefault("engine.base_url", "")
	viper.SetDefault("store.driver", "file")
	viper.SetDefault("store.path", "")
	viper.SetDefault("github.token", "")
	viper.SetDefault("github.base_url", "")
	viper.SetDefault("gitlab.token", "")
	viper.SetDefault("gitlab.base_url", "")

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose

	// The store is initialized lazily, only when a command needs it, so
	// config and version commands never touch the data directory.
}

// getStore returns the shared history store, opening it on first use.
// An empty store.path resolves to a driver-appropriate file under
// state_dir.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	cfg := store.Config{
		Driver: viper.GetString("store.driver"),
		Path:   viper.GetString("store.path"),
	}
	if cfg.Path == "" {
		name := "reviews.json"
		if cfg.Driver == "sqlite" {
			name = "cr.db"
		}
		cfg.Path = filepath.Join(viper.GetString("state_dir"), name)
	}

	s, err := store.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	dataStore = s
	return dataStore, nil
}
