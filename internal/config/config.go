package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"

	"github.com/zhouzirui/characterai-go/pkg/cai"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	CAI    CAIConfig
	Debug  bool
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// CAIConfig 描述 Character.AI 客户端配置。
type CAIConfig struct {
	Token        string
	Plus         bool
	BaseURL      string
	NeoURL       string
	WebSocketURL string

	// CreatorID 为空时由网关通过 User.Info 查询。
	CreatorID  string
	AuthorName string

	RequestTimeout time.Duration
	TurnTimeout    time.Duration
}

// Enabled 表示是否提供了令牌。
func (c CAIConfig) Enabled() bool {
	return c.Token != ""
}

// ClientConfig 转换为 cai.Config。
func (c CAIConfig) ClientConfig(logger *zap.Logger) cai.Config {
	return cai.Config{
		Token:          c.Token,
		Plus:           c.Plus,
		BaseURL:        c.BaseURL,
		NeoURL:         c.NeoURL,
		WebSocketURL:   c.WebSocketURL,
		RequestTimeout: c.RequestTimeout,
		TurnTimeout:    c.TurnTimeout,
		Logger:         logger,
	}
}

// fileConfig 是 TOML 配置文件的结构。
type fileConfig struct {
	Port  string `toml:"port"`
	Debug bool   `toml:"debug"`
	CAI   struct {
		Token          string   `toml:"token"`
		Plus           bool     `toml:"plus"`
		BaseURL        string   `toml:"base_url"`
		NeoURL         string   `toml:"neo_url"`
		WebSocketURL   string   `toml:"ws_url"`
		CreatorID      string   `toml:"creator_id"`
		AuthorName     string   `toml:"author_name"`
		RequestTimeout duration `toml:"request_timeout"`
		TurnTimeout    duration `toml:"turn_timeout"`
	} `toml:"cai"`
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := parseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Load 依次读取默认值、CAI_CONFIG 指向的 TOML 文件和环境变量，后者覆盖前者。
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{Addr: ":8080"},
		CAI: CAIConfig{
			AuthorName:     "user",
			RequestTimeout: cai.DefaultRequestTimeout,
			TurnTimeout:    cai.DefaultTurnTimeout,
		},
	}

	if path := strings.TrimSpace(os.Getenv("CAI_CONFIG")); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	if fc.Port != "" {
		addr, err := parseAddr(fc.Port)
		if err != nil {
			return err
		}
		c.Server.Addr = addr
	}
	c.Debug = c.Debug || fc.Debug

	setString(&c.CAI.Token, fc.CAI.Token)
	setString(&c.CAI.BaseURL, fc.CAI.BaseURL)
	setString(&c.CAI.NeoURL, fc.CAI.NeoURL)
	setString(&c.CAI.WebSocketURL, fc.CAI.WebSocketURL)
	setString(&c.CAI.CreatorID, fc.CAI.CreatorID)
	setString(&c.CAI.AuthorName, fc.CAI.AuthorName)
	c.CAI.Plus = c.CAI.Plus || fc.CAI.Plus
	if fc.CAI.RequestTimeout.Duration != 0 {
		c.CAI.RequestTimeout = fc.CAI.RequestTimeout.Duration
	}
	if fc.CAI.TurnTimeout.Duration != 0 {
		c.CAI.TurnTimeout = fc.CAI.TurnTimeout.Duration
	}
	return nil
}

func (c *Config) applyEnv() error {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		addr, err := parseAddr(port)
		if err != nil {
			return err
		}
		c.Server.Addr = addr
	}

	debug, err := parseBoolEnv("CAI_DEBUG", c.Debug)
	if err != nil {
		return err
	}
	c.Debug = debug

	plus, err := parseBoolEnv("CAI_PLUS", c.CAI.Plus)
	if err != nil {
		return err
	}
	c.CAI.Plus = plus

	c.CAI.Token = getEnvOrDefault("CAI_TOKEN", c.CAI.Token)
	c.CAI.BaseURL = getEnvOrDefault("CAI_BASE_URL", c.CAI.BaseURL)
	c.CAI.NeoURL = getEnvOrDefault("CAI_NEO_URL", c.CAI.NeoURL)
	c.CAI.WebSocketURL = getEnvOrDefault("CAI_WS_URL", c.CAI.WebSocketURL)
	c.CAI.CreatorID = getEnvOrDefault("CAI_CREATOR_ID", c.CAI.CreatorID)
	c.CAI.AuthorName = getEnvOrDefault("CAI_AUTHOR_NAME", c.CAI.AuthorName)

	if d, err := parseOptionalDurationEnv("CAI_REQUEST_TIMEOUT"); err != nil {
		return err
	} else if d != nil {
		c.CAI.RequestTimeout = *d
	}

	if d, err := parseOptionalDurationEnv("CAI_TURN_TIMEOUT"); err != nil {
		return err
	} else if d != nil {
		c.CAI.TurnTimeout = *d
	}
	return nil
}

// parseAddr 解析服务器监听地址。
func parseAddr(port string) (string, error) {
	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalDurationEnv(key string) (*time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := parseDuration(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

// parseDuration 接受 Go 时长格式（"90s"）或整数秒。
func parseDuration(value string) (time.Duration, error) {
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(value)
}
