package config

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// PlaceholderValue marks template fields the user still has to fill in.
	PlaceholderValue = "CHANGE_ME"

	DefaultHost                     = "127.0.0.1"
	DefaultPort                     = 8000
	DefaultAlgorithm                = "HS256"
	DefaultAccessTokenExpireMinutes = 1440
	DefaultOpenAIBaseURL            = "https://api.openai.com/v1"
	DefaultPolishModel              = "gpt-4o-mini"
	DefaultEnhanceModel             = "gpt-4o-mini"
	DefaultAdminUsername            = "admin"
	DefaultUsageLimit               = 1000
	DefaultLogLevel                 = "info"

	// EnvOverridePrefix namespaces process environment overrides so stray
	// variables such as PORT or HOST never leak into the config.
	EnvOverridePrefix = "AIPOLISH_"
)

// Keys as they appear in the .env file.
const (
	KeySecretKey                = "SECRET_KEY"
	KeyAlgorithm                = "ALGORITHM"
	KeyAccessTokenExpireMinutes = "ACCESS_TOKEN_EXPIRE_MINUTES"
	KeyOpenAIAPIKey             = "OPENAI_API_KEY"
	KeyOpenAIBaseURL            = "OPENAI_BASE_URL"
	KeyPolishModel              = "POLISH_MODEL"
	KeyEnhanceModel             = "ENHANCE_MODEL"
	KeyAdminUsername            = "ADMIN_USERNAME"
	KeyAdminPassword            = "ADMIN_PASSWORD"
	KeyDefaultUsageLimit        = "DEFAULT_USAGE_LIMIT"
	KeyDatabaseURL              = "DATABASE_URL"
	KeyHost                     = "HOST"
	KeyPort                     = "PORT"
	KeyOpenBrowser              = "OPEN_BROWSER"
	KeyLogLevel                 = "LOG_LEVEL"
)

// RequiredKeys must be present and non-empty.
var RequiredKeys = []string{KeySecretKey, KeyAdminUsername, KeyAdminPassword, KeyOpenAIAPIKey}

var allKeys = []string{
	KeySecretKey, KeyAlgorithm, KeyAccessTokenExpireMinutes,
	KeyOpenAIAPIKey, KeyOpenAIBaseURL, KeyPolishModel, KeyEnhanceModel,
	KeyAdminUsername, KeyAdminPassword, KeyDefaultUsageLimit,
	KeyDatabaseURL, KeyHost, KeyPort, KeyOpenBrowser, KeyLogLevel,
}

// EnvLookup mirrors os.LookupEnv.
type EnvLookup func(string) (string, bool)

// DefaultEnvLookup reads the process environment.
var DefaultEnvLookup EnvLookup = os.LookupEnv

// SQLiteURL builds the DATABASE_URL default for a datastore file.
func SQLiteURL(path string) string {
	return "sqlite:///" + filepath.ToSlash(path)
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// browserHost maps wildcard binds to loopback so the opened URL is reachable.
func browserHost(host string) string {
	switch strings.TrimSpace(host) {
	case "", "0.0.0.0", "::", "[::]":
		return "127.0.0.1"
	default:
		return host
	}
}
