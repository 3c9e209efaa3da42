// Package config loads streamq settings from defaults, an optional YAML file,
// STREAMQ_* environment variables and command line flags, in that order.
package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/streamq/pkg/events"
	"github.com/go-go-golems/streamq/pkg/logging"
	"github.com/go-go-golems/streamq/pkg/qbusiness"
)

const EnvPrefix = "STREAMQ"

type TranscriptSettings struct {
	DSN string `yaml:"dsn"`
}

type Settings struct {
	ApplicationID string             `yaml:"application-id"`
	AWS           qbusiness.Settings `yaml:"aws"`
	Log           logging.Settings   `yaml:"log"`
	Events        events.Settings    `yaml:"events"`
	Transcript    TranscriptSettings `yaml:"transcript"`
}

func Default() Settings {
	return Settings{
		Log:    logging.DefaultSettings(),
		Events: events.DefaultSettings(),
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/streamq/config.yaml (or the platform
// equivalent), or "" when no config dir is known.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "streamq", "config.yaml")
}

// LoadFile decodes path on top of s. Unknown keys are an error. A missing file
// is only an error when required is set.
func LoadFile(s *Settings, path string, required bool) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return errors.Wrapf(err, "open config %s", path)
	}
	defer func() { _ = f.Close() }()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
		return errors.Wrapf(err, "parse config %s", path)
	}
	return nil
}

// NewViper returns a viper instance reading STREAMQ_* variables, where
// "aws.region" maps to STREAMQ_AWS_REGION and "application-id" to
// STREAMQ_APPLICATION_ID.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// ApplyOverrides copies every key that is set in v (from the environment or a
// changed flag) into s.
func ApplyOverrides(s *Settings, v *viper.Viper) {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	boolean := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}

	str("application-id", &s.ApplicationID)
	str("aws.region", &s.AWS.Region)
	str("aws.profile", &s.AWS.Profile)
	str("aws.endpoint", &s.AWS.Endpoint)
	str("log.level", &s.Log.Level)
	str("log.format", &s.Log.Format)
	boolean("log.with-caller", &s.Log.WithCaller)
	boolean("events.enabled", &s.Events.Enabled)
	str("events.topic", &s.Events.Topic)
	boolean("events.redis.enabled", &s.Events.Redis.Enabled)
	str("events.redis.addr", &s.Events.Redis.Addr)
	str("events.redis.group", &s.Events.Redis.Group)
	str("events.redis.consumer", &s.Events.Redis.Consumer)
	str("transcript.dsn", &s.Transcript.DSN)
}

func (s Settings) Validate() error {
	if err := s.Log.Validate(); err != nil {
		return err
	}
	if s.Events.Redis.Enabled {
		if s.Events.Redis.Addr == "" {
			return errors.New("events.redis.addr is required when redis is enabled")
		}
		if s.Events.Redis.Group == "" || s.Events.Redis.Consumer == "" {
			return errors.New("events.redis.group and events.redis.consumer are required when redis is enabled")
		}
	}
	return nil
}

// ValidateChat additionally requires an application id.
func (s Settings) ValidateChat() error {
	if err := s.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(s.ApplicationID) == "" {
		return errors.New("application-id is required (flag --application-id or STREAMQ_APPLICATION_ID)")
	}
	return nil
}
