package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type GlobalFlags struct {
	ConfigPath     string
	JSON           bool
	Plain          bool
	Select         string
	ResultsOnly    bool
	EnableCommands string
	Timeout        string
	Network        string
	RPCURL         string
	LogLevel       string
	QueueBackend   string
	NoCache        bool
}

type Settings struct {
	OutputMode     string
	SelectFields   []string
	ResultsOnly    bool
	EnableCommands []string
	Timeout        time.Duration

	Network string
	RPCURL  string

	LogLevel  string
	LogFormat string
	LogPaths  []string

	LLMProvider  string
	LLMModel     string
	GeminiAPIKey string

	BridgeBaseURL  string
	QuoteTTL       time.Duration
	RouteSelection string

	QueueBackend  string
	QueuePath     string
	QueueLockPath string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	CacheEnabled  bool
	CachePath     string
	CacheLockPath string
	CacheTTL      time.Duration

	SignerRPCURL    string
	SignerKeySource string
}

type fileConfig struct {
	Output  string `yaml:"output"`
	Timeout string `yaml:"timeout"`
	Network string `yaml:"network"`
	RPCURL  string `yaml:"rpc_url"`
	Log     struct {
		Level   string   `yaml:"level"`
		Format  string   `yaml:"format"`
		Outputs []string `yaml:"outputs"`
	} `yaml:"log"`
	LLM struct {
		Provider  string `yaml:"provider"`
		Model     string `yaml:"model"`
		APIKey    string `yaml:"api_key"`
		APIKeyEnv string `yaml:"api_key_env"`
	} `yaml:"llm"`
	Bridge struct {
		BaseURL        string `yaml:"base_url"`
		QuoteTTL       string `yaml:"quote_ttl"`
		RouteSelection string `yaml:"route_selection"`
	} `yaml:"bridge"`
	Queue struct {
		Backend  string `yaml:"backend"`
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
		Redis    struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       *int   `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"queue"`
	Cache struct {
		Enabled  *bool  `yaml:"enabled"`
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
		TTL      string `yaml:"ttl"`
	} `yaml:"cache"`
	Signer struct {
		RPCURL    string `yaml:"rpc_url"`
		KeySource string `yaml:"key_source"`
	} `yaml:"signer"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}

	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.Timeout <= 0 {
		settings.Timeout = 15 * time.Second
	}
	if settings.QuoteTTL <= 0 {
		settings.QuoteTTL = time.Minute
	}
	return settings, validate(settings)
}

func defaultSettings() (Settings, error) {
	dataDir, err := defaultDataDir()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		OutputMode:     "json",
		Timeout:        15 * time.Second,
		Network:        "flare",
		LogLevel:       "info",
		LogFormat:      "json",
		LLMProvider:    "gemini",
		LLMModel:       "gemini-2.0-flash",
		QuoteTTL:       time.Minute,
		RouteSelection: "first",
		QueueBackend:   "sqlite",
		QueuePath:      filepath.Join(dataDir, "pending.db"),
		QueueLockPath:  filepath.Join(dataDir, "pending.lock"),
		RedisAddr:      "127.0.0.1:6379",
		RedisPrefix:    "defai:pending:",
		CacheEnabled:   true,
		CachePath:      filepath.Join(dataDir, "cache.db"),
		CacheLockPath:  filepath.Join(dataDir, "cache.lock"),
		CacheTTL:       24 * time.Hour,

		// Local keys are opt-in; transactions stay unsigned by default.
		SignerKeySource: "none",
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "defai", "config.yaml"), nil
}

func defaultDataDir() (string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, "defai"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		settings.Timeout = d
	}
	setString(&settings.Network, strings.ToLower(cfg.Network))
	setString(&settings.RPCURL, cfg.RPCURL)
	setString(&settings.LogLevel, cfg.Log.Level)
	setString(&settings.LogFormat, cfg.Log.Format)
	if len(cfg.Log.Outputs) > 0 {
		settings.LogPaths = cfg.Log.Outputs
	}
	setString(&settings.LLMProvider, strings.ToLower(cfg.LLM.Provider))
	setString(&settings.LLMModel, cfg.LLM.Model)
	setString(&settings.GeminiAPIKey, cfg.LLM.APIKey)
	if cfg.LLM.APIKeyEnv != "" {
		settings.GeminiAPIKey = os.Getenv(cfg.LLM.APIKeyEnv)
	}
	setString(&settings.BridgeBaseURL, cfg.Bridge.BaseURL)
	if cfg.Bridge.QuoteTTL != "" {
		d, err := time.ParseDuration(cfg.Bridge.QuoteTTL)
		if err != nil {
			return fmt.Errorf("config bridge.quote_ttl: %w", err)
		}
		settings.QuoteTTL = d
	}
	setString(&settings.RouteSelection, strings.ToLower(cfg.Bridge.RouteSelection))
	setString(&settings.QueueBackend, strings.ToLower(cfg.Queue.Backend))
	setString(&settings.QueuePath, cfg.Queue.Path)
	setString(&settings.QueueLockPath, cfg.Queue.LockPath)
	setString(&settings.RedisAddr, cfg.Queue.Redis.Addr)
	setString(&settings.RedisPassword, cfg.Queue.Redis.Password)
	if cfg.Queue.Redis.DB != nil {
		settings.RedisDB = *cfg.Queue.Redis.DB
	}
	setString(&settings.RedisPrefix, cfg.Queue.Redis.Prefix)
	if cfg.Cache.Enabled != nil {
		settings.CacheEnabled = *cfg.Cache.Enabled
	}
	setString(&settings.CachePath, cfg.Cache.Path)
	setString(&settings.CacheLockPath, cfg.Cache.LockPath)
	if cfg.Cache.TTL != "" {
		d, err := time.ParseDuration(cfg.Cache.TTL)
		if err != nil {
			return fmt.Errorf("config cache.ttl: %w", err)
		}
		settings.CacheTTL = d
	}
	setString(&settings.SignerRPCURL, cfg.Signer.RPCURL)
	setString(&settings.SignerKeySource, strings.ToLower(cfg.Signer.KeySource))
	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("DEFAI_OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := os.Getenv("DEFAI_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := os.Getenv("DEFAI_NETWORK"); v != "" {
		settings.Network = strings.ToLower(v)
	}
	setString(&settings.RPCURL, os.Getenv("DEFAI_RPC_URL"))
	setString(&settings.LogLevel, os.Getenv("DEFAI_LOG_LEVEL"))
	setString(&settings.LogFormat, os.Getenv("DEFAI_LOG_FORMAT"))
	if v := os.Getenv("DEFAI_LLM_PROVIDER"); v != "" {
		settings.LLMProvider = strings.ToLower(v)
	}
	setString(&settings.LLMModel, os.Getenv("DEFAI_LLM_MODEL"))
	setString(&settings.GeminiAPIKey, os.Getenv("GEMINI_API_KEY"))
	setString(&settings.GeminiAPIKey, os.Getenv("DEFAI_GEMINI_API_KEY"))
	setString(&settings.BridgeBaseURL, os.Getenv("DEFAI_BRIDGE_BASE_URL"))
	if v := os.Getenv("DEFAI_QUOTE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.QuoteTTL = d
		}
	}
	if v := os.Getenv("DEFAI_ROUTE_SELECTION"); v != "" {
		settings.RouteSelection = strings.ToLower(v)
	}
	if v := os.Getenv("DEFAI_QUEUE_BACKEND"); v != "" {
		settings.QueueBackend = strings.ToLower(v)
	}
	setString(&settings.QueuePath, os.Getenv("DEFAI_QUEUE_PATH"))
	setString(&settings.QueueLockPath, os.Getenv("DEFAI_QUEUE_LOCK_PATH"))
	setString(&settings.RedisAddr, os.Getenv("DEFAI_REDIS_ADDR"))
	setString(&settings.RedisPassword, os.Getenv("DEFAI_REDIS_PASSWORD"))
	if v := os.Getenv("DEFAI_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.RedisDB = n
		}
	}
	if v := os.Getenv("DEFAI_NO_CACHE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.CacheEnabled = !b
		}
	}
	setString(&settings.CachePath, os.Getenv("DEFAI_CACHE_PATH"))
	setString(&settings.CacheLockPath, os.Getenv("DEFAI_CACHE_LOCK_PATH"))
	setString(&settings.SignerRPCURL, os.Getenv("DEFAI_SIGNER_RPC_URL"))
	if v := os.Getenv("DEFAI_SIGNER_KEY_SOURCE"); v != "" {
		settings.SignerKeySource = strings.ToLower(v)
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if strings.TrimSpace(flags.Select) != "" {
		settings.SelectFields = splitList(flags.Select)
	}
	settings.ResultsOnly = flags.ResultsOnly
	if strings.TrimSpace(flags.EnableCommands) != "" {
		settings.EnableCommands = splitList(flags.EnableCommands)
	}
	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.Network != "" {
		settings.Network = strings.ToLower(strings.TrimSpace(flags.Network))
	}
	setString(&settings.RPCURL, strings.TrimSpace(flags.RPCURL))
	setString(&settings.LogLevel, flags.LogLevel)
	if flags.QueueBackend != "" {
		settings.QueueBackend = strings.ToLower(strings.TrimSpace(flags.QueueBackend))
	}
	if flags.NoCache {
		settings.CacheEnabled = false
	}
	return nil
}

func validate(s Settings) error {
	if s.OutputMode != "json" && s.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}
	switch s.QueueBackend {
	case "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("queue backend must be one of: memory,sqlite,redis")
	}
	switch s.RouteSelection {
	case "first", "best":
	default:
		return fmt.Errorf("bridge route selection must be first or best")
	}
	switch s.LLMProvider {
	case "gemini", "keyword":
	default:
		return fmt.Errorf("llm provider must be gemini or keyword")
	}
	return nil
}

func setString(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if f := strings.TrimSpace(part); f != "" {
			out = append(out, f)
		}
	}
	return out
}
