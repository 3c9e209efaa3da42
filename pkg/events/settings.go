package events

// RedisSettings holds Redis Streams transport configuration for Watermill.
type RedisSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Group    string `yaml:"group"`
	Consumer string `yaml:"consumer"`
}

// Settings configures where chat outputs are published.
type Settings struct {
	Enabled bool          `yaml:"enabled"`
	Topic   string        `yaml:"topic"`
	Redis   RedisSettings `yaml:"redis"`
}

const DefaultTopic = "streamq.chat.outputs"

// DefaultSettings returns in-memory publishing on DefaultTopic, disabled.
func DefaultSettings() Settings {
	return Settings{
		Topic: DefaultTopic,
		Redis: RedisSettings{
			Addr:     "localhost:6379",
			Group:    "streamq",
			Consumer: "streamq-1",
		},
	}
}
