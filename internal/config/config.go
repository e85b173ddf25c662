package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Security modes accepted for the IMAP transport.
const (
	SecurityTLS      = "tls"
	SecurityStartTLS = "starttls"
	SecurityInsecure = "insecure"
)

// IMAPConfig holds the connection settings for the monitored mailbox.
type IMAPConfig struct {
	// Server is the IMAP host name, without port.
	Server string `mapstructure:"server" yaml:"server"`

	// Port is the IMAP port (993 for implicit TLS, 143 otherwise).
	Port int `mapstructure:"port" yaml:"port"`

	// Username is the login name for the mailbox account.
	Username string `mapstructure:"username" yaml:"username"`

	// Password is the account password. May be left empty when the
	// OS keyring holds a secret for Username.
	Password string `mapstructure:"password" yaml:"password"`

	// Folder is the mailbox folder to monitor.
	Folder string `mapstructure:"folder" yaml:"folder"`

	// Security selects the transport: "tls", "starttls" or "insecure".
	Security string `mapstructure:"security" yaml:"security"`
}

// Addr returns the host:port dial address for the IMAP server.
func (c IMAPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server, c.Port)
}

// WebhookConfig holds the notification destination.
type WebhookConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// IgnoreConfig lists substrings that suppress notification. A message
// matching either axis is deleted without being delivered.
type IgnoreConfig struct {
	Senders  []string `mapstructure:"senders" yaml:"senders"`
	Subjects []string `mapstructure:"subjects" yaml:"subjects"`
}

// PollConfig controls the monitor cadence, in seconds.
type PollConfig struct {
	IntervalSec int `mapstructure:"interval_sec" yaml:"interval_sec"`
	BackoffSec  int `mapstructure:"backoff_sec" yaml:"backoff_sec"`
}

// Interval returns the delay between polling cycles.
func (c PollConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSec) * time.Second
}

// Backoff returns the delay before a reconnect attempt.
func (c PollConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffSec) * time.Second
}

// StorageConfig points at the local delivery journal. An empty path
// disables the journal.
type StorageConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// StatusConfig controls the optional status HTTP listener. An empty
// address disables it.
type StatusConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// SlogLevel maps the configured level name onto a slog level,
// defaulting to info for unknown names.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the top-level application configuration. It is resolved once
// at startup and read-only afterwards.
type Config struct {
	IMAP    IMAPConfig    `mapstructure:"imap" yaml:"imap"`
	Webhook WebhookConfig `mapstructure:"webhook" yaml:"webhook"`
	Ignore  IgnoreConfig  `mapstructure:"ignore" yaml:"ignore"`
	Poll    PollConfig    `mapstructure:"poll" yaml:"poll"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Status  StatusConfig  `mapstructure:"status" yaml:"status"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// Load reads configuration from the given YAML file path using Viper.
// Values may be overridden through NEWSLETTER_* environment variables
// (NEWSLETTER_IMAP_PASSWORD overrides imap.password). A missing file is
// not an error by itself; Validate decides whether the resolved values
// are usable.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("NEWSLETTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a default registered so environment-only values
	// survive Unmarshal.
	v.SetDefault("imap.server", "")
	v.SetDefault("imap.port", 993)
	v.SetDefault("imap.username", "")
	v.SetDefault("imap.password", "")
	v.SetDefault("imap.folder", "INBOX")
	v.SetDefault("imap.security", SecurityTLS)
	v.SetDefault("webhook.url", "")
	v.SetDefault("ignore.senders", []string{})
	v.SetDefault("ignore.subjects", []string{})
	v.SetDefault("poll.interval_sec", 5)
	v.SetDefault("poll.backoff_sec", 10)
	v.SetDefault("storage.path", "")
	v.SetDefault("status.addr", "")
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate reports the first problem that would prevent the daemon from
// starting. The IMAP password is allowed to be empty here; the caller is
// expected to consult the system keyring before giving up on it.
func (c *Config) Validate() error {
	var missing []string
	if c.IMAP.Server == "" {
		missing = append(missing, "imap.server")
	}
	if c.IMAP.Username == "" {
		missing = append(missing, "imap.username")
	}
	if c.Webhook.URL == "" {
		missing = append(missing, "webhook.url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	switch c.IMAP.Security {
	case SecurityTLS, SecurityStartTLS, SecurityInsecure:
	default:
		return fmt.Errorf("invalid imap.security %q (want tls, starttls or insecure)", c.IMAP.Security)
	}

	if c.IMAP.Port <= 0 || c.IMAP.Port > 65535 {
		return fmt.Errorf("invalid imap.port %d", c.IMAP.Port)
	}
	if c.Poll.IntervalSec <= 0 {
		return fmt.Errorf("invalid poll.interval_sec %d", c.Poll.IntervalSec)
	}
	if c.Poll.BackoffSec <= 0 {
		return fmt.Errorf("invalid poll.backoff_sec %d", c.Poll.BackoffSec)
	}

	return nil
}
