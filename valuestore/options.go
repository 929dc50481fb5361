package valuestore

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Options describes how to reach the relational store.
type Options struct {
	Driver   string
	Path     string
	Hostname string
	Port     int
	Username string
	Password string
	Database string
}

// Name is the human readable name of the database, used in log lines.
func (o Options) Name() string {
	if o.Driver == DriverSQLite {
		return o.Path
	}
	return o.Database
}

// DSN builds the driver specific data source name.
func (o Options) DSN() (string, error) {
	switch o.Driver {
	case DriverSQLite:
		if strings.TrimSpace(o.Path) == "" {
			return "", fmt.Errorf("sqlite path is required")
		}
		return o.Path, nil
	case DriverPostgres:
		if o.Hostname == "" || o.Username == "" || o.Database == "" {
			return "", fmt.Errorf("postgres hostname, username and database are required")
		}
		host := o.Hostname
		if o.Port > 0 {
			host = net.JoinHostPort(o.Hostname, strconv.Itoa(o.Port))
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(o.Username, o.Password),
			Host:     host,
			Path:     "/" + o.Database,
			RawQuery: "sslmode=disable",
		}
		return u.String(), nil
	default:
		return "", fmt.Errorf("unsupported driver %q", o.Driver)
	}
}
