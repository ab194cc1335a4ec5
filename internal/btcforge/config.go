package btcforge

import (
	"bufio"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Config struct
type Config struct {
	Values map[string]string
}

// loadConfig reads KEY=VALUE lines from the config file. A missing file is
// not an error; defaults and environment overrides still apply.
func loadConfig(path string) (*Config, error) {
	cfg := &Config{Values: make(map[string]string)}

	file, err := os.Open(path)
	if err == nil {
		defer file.Close()
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			val := strings.TrimSpace(parts[1])
			val = strings.Trim(val, `"'`)
			cfg.Values[key] = val
		}
		if err := scanner.Err(); err != nil {
			return cfg, err
		}
	}

	mergeEnvOverrides(cfg)
	return cfg, nil
}

// Merge BTCFORGE_* env overrides
func mergeEnvOverrides(cfg *Config) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "BTCFORGE_") {
			parts := strings.SplitN(env, "=", 2)
			if len(parts) == 2 {
				cfg.Values[parts[0]] = parts[1]
			}
		}
	}
}

func initConfig(cfg *Config) {
	buildRoot = cfg.Values["BTCFORGE_BUILD_DIR"]
	if buildRoot == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "/tmp"
		}
		buildRoot = filepath.Join(home, "Downloads", "bitcoin_builds")
	}

	buildCores = runtime.NumCPU() - 1
	if buildCores < 1 {
		buildCores = 1
	}
	if v := cfg.Values["BTCFORGE_CORES"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			buildCores = n
		}
	}

	// "both" target: whether a failed Bitcoin build still attempts Electrs.
	continueOnError = cfg.Values["BTCFORGE_CONTINUE_ON_ERROR"] == "1"

	archiveOutput = cfg.Values["BTCFORGE_ARCHIVE"] == "1"

	Debug = cfg.Values["BTCFORGE_DEBUG"] == "1"
}

// defaultConfigPath is ~/.config/btcforge/btcforge.conf, overridable with
// BTCFORGE_CONFIG.
func defaultConfigPath() string {
	if p := os.Getenv("BTCFORGE_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/etc/btcforge.conf"
	}
	return filepath.Join(home, ".config", "btcforge", "btcforge.conf")
}
