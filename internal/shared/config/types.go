package config

// AppConfig holds the settings read from the user's .env file. It is loaded
// once at startup and treated as read-only afterwards.
type AppConfig struct {
	SecretKey                string
	Algorithm                string
	AccessTokenExpireMinutes int

	OpenAIAPIKey  string
	OpenAIBaseURL string
	PolishModel   string
	EnhanceModel  string

	AdminUsername     string
	AdminPassword     string
	DefaultUsageLimit int

	// DatabaseURL defaults to a sqlite URL for StorePath.
	DatabaseURL string
	// StorePath is the datastore file location; it never comes from the file.
	StorePath string

	Host        string
	Port        int
	OpenBrowser bool
	LogLevel    string

	// SourceFile is the .env path the values were read from.
	SourceFile string
}

// Address returns host:port for the listener.
func (c AppConfig) Address() string {
	return joinHostPort(c.Host, c.Port)
}

// URL returns the address the browser should open.
func (c AppConfig) URL() string {
	return "http://" + joinHostPort(browserHost(c.Host), c.Port) + "/"
}

// Redacted returns a copy safe for logging.
func (c AppConfig) Redacted() AppConfig {
	clone := c
	clone.SecretKey = redact(c.SecretKey)
	clone.OpenAIAPIKey = redact(c.OpenAIAPIKey)
	clone.AdminPassword = redact(c.AdminPassword)
	return clone
}

func redact(value string) string {
	if value == "" || value == PlaceholderValue {
		return value
	}
	return "********"
}
