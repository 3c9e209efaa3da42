package cmds

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/streamq/pkg/chat"
	"github.com/go-go-golems/streamq/pkg/config"
	"github.com/go-go-golems/streamq/pkg/logging"
	"github.com/go-go-golems/streamq/pkg/qbusiness"
)

// App holds the state shared by all subcommands once flags are parsed.
type App struct {
	Settings config.Settings

	configPath string
	viper      *viper.Viper
	newClient  func(ctx context.Context, s qbusiness.Settings) (chat.Client, error)
}

func defaultClientFactory(ctx context.Context, s qbusiness.Settings) (chat.Client, error) {
	c, err := qbusiness.NewClient(ctx, s)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func NewRootCommand() (*cobra.Command, *App) {
	app := &App{
		Settings:  config.Default(),
		viper:     config.NewViper(),
		newClient: defaultClientFactory,
	}

	rootCmd := &cobra.Command{
		Use:           "streamq",
		Short:         "streamq streams chat replies from an Amazon Q Business application",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.load(cmd)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&app.configPath, "config", "", "Path to a YAML config file (default $XDG_CONFIG_HOME/streamq/config.yaml)")
	pf.String("application-id", "", "Q Business application id")
	pf.String("aws.region", "", "AWS region")
	pf.String("aws.profile", "", "AWS shared config profile")
	pf.String("aws.endpoint", "", "Override the Q Business endpoint")
	pf.String("log.level", "info", "Log level (trace, debug, info, warn, error)")
	pf.String("log.format", logging.FormatAuto, "Log format (auto, console, json)")
	pf.Bool("log.with-caller", false, "Include caller in log lines")
	pf.Bool("events.enabled", false, "Publish chat outputs to the event bus")
	pf.String("events.topic", "", "Event bus topic")
	pf.Bool("events.redis.enabled", false, "Use Redis Streams instead of the in-memory bus")
	pf.String("events.redis.addr", "", "Redis address")
	pf.String("transcript.dsn", "", "SQLite DSN of the transcript database")

	rootCmd.AddCommand(app.newChatCommand())
	rootCmd.AddCommand(app.newListApplicationsCommand())
	rootCmd.AddCommand(app.newTranscriptCommand())

	return rootCmd, app
}

// load resolves settings from defaults, the config file, the environment and
// flags, and reinitializes the logger.
func (a *App) load(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("could not load .env")
	}

	s := config.Default()
	path, required := a.configPath, a.configPath != ""
	if path == "" {
		path = os.Getenv(config.EnvPrefix + "_CONFIG")
		required = path != ""
	}
	if path == "" {
		path = config.DefaultPath()
	}
	if path != "" {
		if err := config.LoadFile(&s, path, required); err != nil {
			return err
		}
	}

	if err := a.viper.BindPFlags(cmd.Flags()); err != nil {
		return errors.Wrap(err, "bind flags")
	}
	config.ApplyOverrides(&s, a.viper)

	if err := s.Validate(); err != nil {
		return err
	}
	if err := logging.InitLogger(s.Log); err != nil {
		return err
	}
	a.Settings = s
	log.Debug().Str("config", path).Msg("settings loaded")
	return nil
}
