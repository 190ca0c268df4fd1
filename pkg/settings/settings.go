// Package settings holds daemon-wide options read from a TOML file.
// Per-instance widget configuration lives in pkg/config instead.
package settings

import (
	"os"
	"time"
	_ "time/tzdata" // default zone must resolve on hosts without zoneinfo

	"github.com/BurntSushi/toml"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/xiaoha/batterywidget/pkg/render"
)

// StoreBackend selects the config.Store implementation.
type StoreBackend string

const (
	StoreFile   StoreBackend = "file"
	StoreRedis  StoreBackend = "redis"
	StoreSQLite StoreBackend = "sqlite"
)

type Settings struct {
	SocketPath   string `toml:"socket-path"`
	AllowNonRoot bool   `toml:"allow-non-root"`
	LogLevel     string `toml:"log-level"`

	Store StoreSettings `toml:"store"`

	OutputDir string `toml:"output-dir"`
	TimeZone  string `toml:"time-zone"`
	Language  string `toml:"language"`

	// HostUpdate is the cron expression of the periodic host update. Empty
	// disables it.
	HostUpdate string `toml:"host-update"`

	FetchTimeout    Duration `toml:"fetch-timeout"`
	ValidateTimeout Duration `toml:"validate-timeout"`
}

type StoreSettings struct {
	Backend   StoreBackend `toml:"backend"`
	Path      string       `toml:"path"`
	RedisAddr string       `toml:"redis-addr"`
	RedisDB   int          `toml:"redis-db"`
}

// Duration decodes TOML strings such as "5s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return pkgerrors.Wrapf(err, "invalid duration %q", string(text))
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func Default() Settings {
	return Settings{
		SocketPath: "/var/run/batterywidget.sock",
		LogLevel:   "info",
		Store: StoreSettings{
			Backend:   StoreFile,
			Path:      "/etc/batterywidget/instances.json",
			RedisAddr: "127.0.0.1:6379",
		},
		OutputDir:       "/var/lib/batterywidget",
		TimeZone:        "Asia/Shanghai",
		Language:        string(render.LanguageChinese),
		HostUpdate:      "@every 6h",
		FetchTimeout:    Duration{5 * time.Second},
		ValidateTimeout: Duration{10 * time.Second},
	}
}

// LoadFromFile decodes path over Default. A missing file yields the
// defaults.
func LoadFromFile(path string) (Settings, error) {
	s := Default()
	if path == "" {
		return s, nil
	}

	md, err := toml.DecodeFile(path, &s)
	if err != nil {
		if os.IsNotExist(err) {
			logrus.WithField("path", path).Debug("settings file not found, using defaults")
			return Default(), nil
		}
		return Settings{}, pkgerrors.Wrapf(err, "failed to decode settings file %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		logrus.WithField("keys", undecoded).Warn("unknown keys in settings file")
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s Settings) Validate() error {
	switch s.Store.Backend {
	case StoreFile, StoreSQLite:
		if s.Store.Path == "" {
			return pkgerrors.Errorf("store backend %s requires a path", s.Store.Backend)
		}
	case StoreRedis:
		if s.Store.RedisAddr == "" {
			return pkgerrors.New("store backend redis requires redis-addr")
		}
	default:
		return pkgerrors.Errorf("unknown store backend %q", s.Store.Backend)
	}
	if _, err := logrus.ParseLevel(s.LogLevel); err != nil {
		return pkgerrors.Wrap(err, "invalid log-level")
	}
	if _, err := s.Location(); err != nil {
		return err
	}
	if s.FetchTimeout.Duration <= 0 || s.ValidateTimeout.Duration <= 0 {
		return pkgerrors.New("timeouts must be positive")
	}
	return nil
}

// Location loads TimeZone. An empty zone means local time.
func (s Settings) Location() (*time.Location, error) {
	if s.TimeZone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(s.TimeZone)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "invalid time-zone %q", s.TimeZone)
	}
	return loc, nil
}

func (s Settings) LogrusFields() logrus.Fields {
	return logrus.Fields{
		"socketPath":   s.SocketPath,
		"storeBackend": s.Store.Backend,
		"outputDir":    s.OutputDir,
		"timeZone":     s.TimeZone,
		"language":     s.Language,
		"hostUpdate":   s.HostUpdate,
	}
}
