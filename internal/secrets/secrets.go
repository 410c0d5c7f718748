// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys from a directory of plain-text files and
// from a dotenv file. In the directory, the filename is the key name and
// the trimmed file contents are the value.
//
// Supported keys: anthropic-api-key, openai-api-key.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Key names.
const (
	AnthropicAPIKey = "anthropic-api-key"
	OpenAIAPIKey    = "openai-api-key"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("could not read secret", "name", name, "error", err)
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}

// LoadEnv reads a dotenv file. Variable names are mapped to key names
// (ANTHROPIC_API_KEY becomes anthropic-api-key). A missing file yields an
// empty map.
func LoadEnv(path string) (map[string]string, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	out := make(map[string]string, len(vars))
	for k, v := range vars {
		if v = strings.TrimSpace(v); v != "" {
			out[keyName(k)] = v
		}
	}
	return out, nil
}

// Collect merges secrets from dir, then envFile, then the process
// environment; later sources win. Only known keys are read from the
// environment.
func Collect(dir, envFile string) (map[string]string, error) {
	out, err := Load(dir)
	if err != nil {
		return nil, err
	}
	if envFile != "" {
		env, err := LoadEnv(envFile)
		if err != nil {
			return nil, err
		}
		for k, v := range env {
			out[k] = v
		}
	}
	for _, k := range []string{AnthropicAPIKey, OpenAIAPIKey} {
		if v := strings.TrimSpace(os.Getenv(envName(k))); v != "" {
			out[k] = v
		}
	}
	return out, nil
}

func keyName(envVar string) string {
	return strings.ReplaceAll(strings.ToLower(envVar), "_", "-")
}

func envName(key string) string {
	return strings.ReplaceAll(strings.ToUpper(key), "-", "_")
}
