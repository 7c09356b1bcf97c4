package internal

type application struct {
	cfg *Config
}

// Option configures the application.
type Option func(*application)

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(app *application) {
		app.cfg = cfg
	}
}
