package config

// DB holds database connection settings. An empty URL selects the in-memory
// event store.
type DB struct {
	Url string `envconfig:"URL"`
}

// Log holds logger settings.
type Log struct {
	Level      int    `envconfig:"LEVEL" default:"0"`
	Format     string `envconfig:"FORMAT" default:"text"`
	TimeFormat string `envconfig:"TIME_FORMAT" default:"2006-01-02 15:04:05"`
	Prefix     string `envconfig:"PREFIX" default:"[ledger]"`
}

// Ledger holds ledger service tuning.
type Ledger struct {
	// MaxRetries bounds the reload-revalidate loop on version conflicts.
	MaxRetries int `envconfig:"MAX_RETRIES" default:"3"`
}

// App is the root application configuration, populated from the environment.
type App struct {
	Env    string  `envconfig:"APP_ENV" default:"development"`
	Log    *Log    `envconfig:"LOG"`
	DB     *DB     `envconfig:"DATABASE"`
	Ledger *Ledger `envconfig:"LEDGER"`
}
