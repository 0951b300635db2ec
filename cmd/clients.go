package cmd

import (
	"os"

	"github.com/spf13/viper"

	"github.com/joescharf/cr/internal/engine"
	"github.com/joescharf/cr/internal/forge"
)

// newEngine builds the review engine from config, falling back to the
// provider's conventional environment variable for the API key.
func newEngine() (engine.Engine, error) {
	provider := viper.GetString("engine.provider")

	apiKey := viper.GetString("engine.api_key")
	if apiKey == "" {
		switch provider {
		case "anthropic", "claude":
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		default:
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
	}

	return engine.New(engine.Config{
		Provider: provider,
		APIKey:   apiKey,
		Model:    viper.GetString("engine.model"),
		BaseURL:  viper.GetString("engine.base_url"),
	})
}

// newFetcherFor returns a constructor that builds a forge client for the
// requested platform on demand, so one server process can serve both
// GitHub and GitLab reviews.
func newFetcherFor() func(forge.Platform) (forge.Fetcher, error) {
	return func(platform forge.Platform) (forge.Fetcher, error) {
		var cfg forge.Config
		switch platform {
		case forge.PlatformGitLab:
			cfg.Token = viper.GetString("gitlab.token")
			if cfg.Token == "" {
				cfg.Token = os.Getenv("GITLAB_TOKEN")
			}
			cfg.BaseURL = viper.GetString("gitlab.base_url")
		default:
			cfg.Token = viper.GetString("github.token")
			if cfg.Token == "" {
				cfg.Token = os.Getenv("GITHUB_TOKEN")
			}
			cfg.BaseURL = viper.GetString("github.base_url")
		}
		return forge.New(platform, cfg)
	}
}
