package database

import (
	"net"
	"net/url"
	"strconv"

	"github.com/domocarroll/dannicraft/internal/config"
)

// BuildConnString renders the catch log DSN. Credentials are escaped by
// net/url, so passwords may contain any character.
func BuildConnString(cfg config.DBConfig) string {
	mode := cfg.SSLMode
	if mode == "" {
		mode = config.DefaultDBSSLMode
	}

	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: url.Values{"sslmode": {mode}}.Encode(),
	}
	return dsn.String()
}
