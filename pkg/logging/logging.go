package logging

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	FormatAuto    = "auto"
	FormatConsole = "console"
	FormatJSON    = "json"
)

type Settings struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	WithCaller bool   `yaml:"with-caller"`
}

func DefaultSettings() Settings {
	return Settings{Level: "info", Format: FormatAuto}
}

func (s Settings) Validate() error {
	if _, err := parseLevel(s.Level); err != nil {
		return err
	}
	switch strings.ToLower(s.Format) {
	case "", FormatAuto, FormatConsole, FormatJSON:
		return nil
	default:
		return errors.Errorf("unknown log format %q", s.Format)
	}
}

// InitLogger replaces the global zerolog logger. Logs go to stderr so stdout
// stays free for chat output.
func InitLogger(s Settings) error {
	return initLogger(s, os.Stderr, isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()))
}

func initLogger(s Settings, w io.Writer, terminal bool) error {
	if err := s.Validate(); err != nil {
		return err
	}
	level, _ := parseLevel(s.Level)
	zerolog.SetGlobalLevel(level)

	out := w
	switch strings.ToLower(s.Format) {
	case FormatConsole:
		out = zerolog.ConsoleWriter{Out: w, NoColor: !terminal}
	case FormatJSON:
	default:
		if terminal {
			out = zerolog.ConsoleWriter{Out: w}
		}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if s.WithCaller {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()
	return nil
}

func parseLevel(s string) (zerolog.Level, error) {
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zerolog.NoLevel, errors.Wrapf(err, "invalid log level %q", s)
	}
	return level, nil
}
