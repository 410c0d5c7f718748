// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the term-engine CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/term-engine/internal/secrets"
	"github.com/pdiddy/term-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ and .env at startup.
var loadedSecrets map[string]string

// secretDefault returns the secret value for key if it exists, or fallback otherwise.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	return loadedSecrets[key]
}

// rootCmd is the base command for the term-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "term-engine",
	Short: "Terminology-consistent translation of academic documents",
	Long: `term-engine keeps the translation of technical terms consistent across a
document. Curated glossaries are stored per domain and embedded for
similarity search; every term a document uses is resolved against them
once and the chosen rendering is reused for the rest of the document.

Subcommands manage glossaries, extract candidate terms from documents,
resolve individual terms, convert PDFs and translate documents.`,
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setupLogging(cmd.Flags()); err != nil {
			return err
		}
		s, err := secrets.Collect(".secrets/", ".env")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			slog.Debug("loaded secrets", "keys", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./term-engine.yaml or ~/.config/term-engine/term-engine.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text or json")
	pf.String("glossary-dir", "", "directory of glossary files (default glossary)")
	pf.String("db", "", "glossary database path (default glossary/index/glossary.db)")
	pf.StringSlice("domains", nil, "active domains (default: all)")

	bindFlags(pf, map[string]string{
		"glossary.dir":        "glossary-dir",
		"glossary.db_path":    "db",
		"translation.domains": "domains",
	})
}

// bindFlags binds config keys to flags so a flag set on the command line
// overrides the config file and environment.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := viper.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", name, err))
		}
	}
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("term-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "term-engine"))
		}
	}

	setDefaults("", defaultsMap())
	for _, key := range []string{"translation.api_key", "embedding.api_key", "embedding.base_url"} {
		viper.SetDefault(key, "")
	}

	viper.SetEnvPrefix("TERM_ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// defaultsMap renders types.DefaultConfig as nested maps keyed like the
// config file.
func defaultsMap() map[string]any {
	data, err := yaml.Marshal(types.DefaultConfig())
	if err != nil {
		panic(err)
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		panic(err)
	}
	return m
}

// setDefaults registers every leaf of m with viper so environment
// variables can override keys the config file does not mention.
func setDefaults(prefix string, m map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			setDefaults(key, sub)
			continue
		}
		viper.SetDefault(key, v)
	}
}

// loadConfig decodes the merged configuration and fills API keys from
// secrets when the config leaves them empty.
func loadConfig() (types.Config, error) {
	cfg := types.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding configuration: %w", err)
	}
	cfg.Translation.APIKey = secretDefault(secrets.AnthropicAPIKey, cfg.Translation.APIKey)
	if cfg.Embedding.Provider == types.ProviderOpenAI {
		cfg.Embedding.APIKey = secretDefault(secrets.OpenAIAPIKey, cfg.Embedding.APIKey)
	}
	return cfg, nil
}

// setupLogging installs the default slog logger from --log-level and
// --log-format.
func setupLogging(fs *pflag.FlagSet) error {
	levelName, _ := fs.GetString("log-level")
	format, _ := fs.GetString("log-format")

	var level slog.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", levelName, err)
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(format) {
	case "text", "":
		h = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		h = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("invalid --log-format %q: use text or json", format)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
