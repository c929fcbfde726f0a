package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// Flags holds parsed command-line flag values and which were set.
type Flags struct {
	Addr    string
	DataDir string
	Config  string
	Set     map[string]bool
}

// EnvResult describes whether environment overrides were consulted.
type EnvResult struct {
	EnvUsed bool
}

// EffectiveConfigResult holds the result of LoadEffectiveConfig.
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	Source string // "flags", "config", or "env"
}

// ParseConfigFlags parses command-line flags and returns them as a Flags struct.
func ParseConfigFlags() Flags {
	addrPtr := flag.String("addr", "0.0.0.0:7070", "TCP listen address")
	dirPtr := flag.String("data-dir", "./data", "shard data directory")
	cfgPtr := flag.String("config", "./config.yaml", "path to config file")
	flag.Parse()
	setFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return Flags{Addr: *addrPtr, DataDir: *dirPtr, Config: *cfgPtr, Set: setFlags}
}

// ParseConfigFile resolves the config path and loads the YAML file. It
// returns the parsed config, a boolean indicating whether the file was
// present, and an error for fatal parsing problems.
func ParseConfigFile(flags Flags) (*Config, bool, error) {
	cfgPath := ResolveConfigPath(flags.Config, flags.Set["config"])
	cfg, err := Load(cfgPath)
	if err != nil {
		if _, statErr := os.Stat(cfgPath); os.IsNotExist(statErr) {
			return &Config{}, false, nil
		}
		return nil, false, err
	}
	return cfg, true, nil
}

// ParseConfigEnvs reads RBQ_*-prefixed environment variables into a fresh
// Config and reports whether any were present. It does not mutate any
// caller-provided config.
func ParseConfigEnvs() (*Config, EnvResult) {
	envCfg := &Config{}
	envUsed := LoadEnvOverrides(envCfg)
	return envCfg, EnvResult{EnvUsed: envUsed}
}

// LoadEffectiveConfig decides which single source to use (flags, config
// file, or env) and returns the effective config plus resolved addr. It
// honors an explicit flags.Config (user passed --config) by requiring the
// file to exist; otherwise flags take precedence if set, then the config
// file if present, then environment-derived values.
func LoadEffectiveConfig(flags Flags, fileCfg *Config, fileExists bool, envCfg *Config, envRes EnvResult) (EffectiveConfigResult, error) {
	var res EffectiveConfigResult

	if flags.Set["config"] {
		if !fileExists {
			return res, fmt.Errorf("config file %s not found", flags.Config)
		}
		applyDefaults(fileCfg)
		res.Config = fileCfg
		res.Addr = fileCfg.Addr()
		res.Source = "config"
		return res, nil
	}

	if flags.Set["addr"] || flags.Set["data-dir"] {
		addr := flags.Addr
		if !flags.Set["addr"] {
			if a := strings.TrimSpace(envCfg.Server.Address); a != "" {
				addr = a
			} else if a := fileCfg.Addr(); a != "" {
				addr = a
			}
		}
		dataDir := flags.DataDir
		if !flags.Set["data-dir"] {
			if d := strings.TrimSpace(envCfg.Server.DataDirectory); d != "" {
				dataDir = d
			} else if d := strings.TrimSpace(fileCfg.Server.DataDirectory); d != "" {
				dataDir = d
			}
		}
		out := Default()
		out.Server.Address = addr
		out.Server.DataDirectory = dataDir
		res.Config = out
		res.Addr = addr
		res.Source = "flags"
		return res, nil
	}

	if fileExists {
		applyDefaults(fileCfg)
		res.Config = fileCfg
		res.Addr = fileCfg.Addr()
		res.Source = "config"
		return res, nil
	}

	applyDefaults(envCfg)
	res.Config = envCfg
	res.Addr = envCfg.Addr()
	res.Source = "env"
	return res, nil
}
