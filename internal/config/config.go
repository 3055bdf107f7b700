package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string `mapstructure:"mode"`
	Port       int    `mapstructure:"port"`
	LogLevel   string `mapstructure:"log_level"`
	StaticPath string `mapstructure:"static_path"`
	Secret     string `mapstructure:"secret"`

	ReadLimit    int64         `mapstructure:"read_limit"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`
	PongWait     time.Duration `mapstructure:"pong_wait"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	SendBuffer   int           `mapstructure:"send_buffer"`
	OpTimeout    time.Duration `mapstructure:"op_timeout"`
	// Backpressure is "kick" or "lenient".
	Backpressure string `mapstructure:"backpressure"`
	// IdleRoomTTL reaps rooms nobody joined; 0 keeps them.
	IdleRoomTTL time.Duration `mapstructure:"idle_room_ttl"`

	ICEServers []string        `mapstructure:"ice_servers"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
	Media      MediaConfig     `mapstructure:"media"`
	Ledger     LedgerConfig    `mapstructure:"ledger"`
}

type RateLimitConfig struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

type MediaConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	URL       string        `mapstructure:"url"`
	APISecret string        `mapstructure:"api_secret"`
	Timeout   time.Duration `mapstructure:"timeout"`
	KeepAlive time.Duration `mapstructure:"keepalive"`
}

type LedgerConfig struct {
	// Path of the sqlite file; empty keeps orphans in memory.
	Path        string        `mapstructure:"path"`
	Interval    time.Duration `mapstructure:"interval"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("static_path", "./web")
	v.SetDefault("secret", "change-me")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_timeout", "5s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("op_timeout", "15s")
	v.SetDefault("backpressure", "kick")
	v.SetDefault("idle_room_ttl", "5m")
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("rate_limit.limit", 5)
	v.SetDefault("rate_limit.window", "10s")
	v.SetDefault("media.enabled", false)
	v.SetDefault("media.url", "http://localhost:8088/janus")
	v.SetDefault("media.timeout", "10s")
	v.SetDefault("media.keepalive", "30s")
	v.SetDefault("ledger.path", "")
	v.SetDefault("ledger.interval", "1m")
	v.SetDefault("ledger.max_attempts", 10)
}

// Load reads, in increasing precedence: defaults, the yaml file picked by
// --config or CONFIG_ENV, VOICE_* environment variables, then flags.
func Load(args []string) (*Config, error) {
	fsFlags := pflag.NewFlagSet("voicebridge", pflag.ContinueOnError)
	file := fsFlags.String("config", "", "path to a yaml config file")
	fsFlags.Int("port", 8080, "http listen port")
	fsFlags.String("mode", "release", "gin mode: debug or release")
	fsFlags.String("log-level", "info", "zerolog level")
	fsFlags.Bool("media", false, "use the Janus audiobridge")
	fsFlags.String("media-url", "", "Janus HTTP endpoint")
	fsFlags.String("ledger", "", "sqlite file for orphaned rooms")
	if err := fsFlags.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("VOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range map[string]string{
		"port":          "port",
		"mode":          "mode",
		"log_level":     "log-level",
		"media.enabled": "media",
		"media.url":     "media-url",
		"ledger.path":   "ledger",
	} {
		if err := v.BindPFlag(key, fsFlags.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	fileName := *file
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(fileName)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Bool("media", cfg.Media.Enabled).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.PingPeriod >= c.PongWait {
		errs = append(errs, fmt.Errorf("ping_period %s must be shorter than pong_wait %s", c.PingPeriod, c.PongWait))
	}
	if c.Backpressure != "kick" && c.Backpressure != "lenient" {
		errs = append(errs, fmt.Errorf("backpressure %q: want kick or lenient", c.Backpressure))
	}
	if c.IdleRoomTTL < 0 {
		errs = append(errs, fmt.Errorf("idle_room_ttl %s is negative", c.IdleRoomTTL))
	}
	if c.Media.Enabled && c.Media.URL == "" {
		errs = append(errs, errors.New("media.url is required when media is enabled"))
	}
	if c.RateLimit.Limit <= 0 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate_limit needs a positive limit and window"))
	}
	return errors.Join(errs...)
}

// ICEServerList converts the configured urls for browsers.
func (c *Config) ICEServerList() []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(c.ICEServers))
	for _, u := range c.ICEServers {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, webrtc.ICEServer{URLs: []string{u}})
		}
	}
	return out
}
