package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// PostgresConnectionString builds a PostgreSQL key/value DSN from the
// configured fields. Values are quoted so passwords containing spaces or
// quotes survive.
func (c *Config) PostgresConnectionString() string {
	parts := []string{
		"host=" + quoteDSNValue(c.PostgresHost),
		"port=" + strconv.Itoa(c.PostgresPort),
		"user=" + quoteDSNValue(c.PostgresUser),
		"dbname=" + quoteDSNValue(c.PostgresDBName),
		"sslmode=" + quoteDSNValue(c.PostgresSSLMode),
	}
	if c.PostgresPassword != "" {
		parts = append(parts, "password="+quoteDSNValue(c.PostgresPassword))
	}
	return strings.Join(parts, " ")
}

// PostgresURL builds a postgres:// URL, suitable for golang-migrate and
// other URL-based consumers.
func (c *Config) PostgresURL() string {
	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", c.PostgresHost, c.PostgresPort),
		Path:   "/" + c.PostgresDBName,
	}
	if c.PostgresPassword != "" {
		u.User = url.UserPassword(c.PostgresUser, c.PostgresPassword)
	} else {
		u.User = url.User(c.PostgresUser)
	}
	q := url.Values{}
	q.Set("sslmode", c.PostgresSSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// quoteDSNValue quotes a DSN value if it contains characters that would
// break key/value parsing. Backslashes and single quotes are escaped.
func quoteDSNValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " '\\") {
		return v
	}
	escaped := strings.ReplaceAll(v, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `'`, `\'`)
	return "'" + escaped + "'"
}

// parseDatabaseURL applies DATABASE_URL, when present, over the individual
// postgres_* fields. This keeps parity with hosted environments that hand
// out a single connection URL.
func (c *Config) parseDatabaseURL() error {
	raw := os.Getenv("DATABASE_URL")
	if raw == "" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("%w: DATABASE_URL scheme %q", ErrInvalidPostgresHost, u.Scheme)
	}

	if host := u.Hostname(); host != "" {
		c.PostgresHost = host
	}
	if port := u.Port(); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("%w: DATABASE_URL port %q", ErrInvalidPostgresPort, port)
		}
		c.PostgresPort = p
	}
	if u.User != nil {
		if name := u.User.Username(); name != "" {
			c.PostgresUser = name
		}
		if pass, ok := u.User.Password(); ok {
			c.PostgresPassword = pass
		}
	}
	if db := strings.TrimPrefix(u.Path, "/"); db != "" {
		c.PostgresDBName = db
	}
	if mode := u.Query().Get("sslmode"); mode != "" {
		c.PostgresSSLMode = mode
	}

	return nil
}
