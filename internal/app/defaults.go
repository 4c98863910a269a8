package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - XB_CONFIG_PATH: config file location (default: ~/.config/xb.toml)
//   - XB_HOME: base directory for xb data (default: ~/.local/share/xb)
//   - XB_ENV_FILE: dotenv file loaded before the config (default: <base_dir>/xb.env)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	envFile := os.Getenv("XB_ENV_FILE")
	if envFile == "" {
		envFile = filepath.Join(baseDir, "xb.env")
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
		"env_file":    envFile,
	}, nil
}

// getConfigPath returns the config file path, checking XB_CONFIG_PATH env var first,
// then falling back to the default ~/.config/xb.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("XB_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "xb.toml"), nil
}

// getBaseDir returns the base directory for xb data, checking XB_HOME env var first,
// then falling back to the XDG default ~/.local/share/xb.
func getBaseDir() (string, error) {
	if path := os.Getenv("XB_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "xb"), nil
}
