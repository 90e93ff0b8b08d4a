package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// EnvPath は設定ファイルのパスを指定する環境変数
const EnvPath = "STATICTCP_CONFIG"

// Config はサーバー全体の設定を保持する
type Config struct {
	Server ServerConfig `toml:"server"`
	Log    LogConfig    `toml:"log"`
}

// ServerConfig はリスナーと接続ハンドラの設定
type ServerConfig struct {
	Host            string `toml:"host"`
	ReadBufferSize  int    `toml:"read_buffer_size"`
	DefaultResource string `toml:"default_resource"`
}

// LogConfig はslogの設定
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default はデフォルト設定を返す
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			ReadBufferSize:  4096,
			DefaultResource: "hello.html",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load は環境変数で指定された設定ファイルを読み込む。
// 未指定の場合はデフォルト設定を返す
func Load() (*Config, error) {
	path := os.Getenv(EnvPath)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile はTOMLファイルをデフォルト設定に上書きして読み込む
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse はTOMLをデフォルト設定に上書きしてデコードする
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		var strictErr *toml.StrictMissingError
		if errors.As(err, &strictErr) {
			return nil, fmt.Errorf("unknown config keys: %s", strictErr.String())
		}
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return errors.New("server.host is empty")
	}
	if c.Server.ReadBufferSize <= 0 {
		return fmt.Errorf("server.read_buffer_size must be positive: %d", c.Server.ReadBufferSize)
	}
	if c.Server.DefaultResource == "" {
		return errors.New("server.default_resource is empty")
	}
	if strings.ContainsAny(c.Server.DefaultResource, `/\`) {
		return fmt.Errorf("server.default_resource must be a file name: %q", c.Server.DefaultResource)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log.format: %q", c.Log.Format)
	}
	return nil
}

// SlogLevel はログレベル文字列をslog.Levelに変換する
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("unknown log.level: %q", l.Level)
	}
	return level, nil
}

// Address はリッスンアドレスを返す
func (c *Config) Address(port int) string {
	return fmt.Sprintf("%s:%d", c.Server.Host, port)
}
