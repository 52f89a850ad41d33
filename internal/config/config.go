package config

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/go-sql-driver/mysql"
)

const (
	// DefaultMySQLPort is the default port for MySQL/MariaDB connections
	DefaultMySQLPort = 3306
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
	// DefaultDataFile is where the coverage profile is saved
	DefaultDataFile = ".coverprofile"
)

type Config struct {
	DataFile string
	History  *Database
}

// Database holds the history store connection settings.
type Database struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// NewConfig reads the GOCOVRUN_* environment. History recording is only
// configured when GOCOVRUN_DB_HOST is set, and then every other database
// variable except the port is required.
func NewConfig() (Config, error) {
	cfg := Config{
		DataFile: os.Getenv("GOCOVRUN_DATA_FILE"),
	}
	if cfg.DataFile == "" {
		cfg.DataFile = DefaultDataFile
	}

	host := os.Getenv("GOCOVRUN_DB_HOST")
	if host == "" {
		return cfg, nil
	}

	db, err := newDatabase(host)
	if err != nil {
		return cfg, err
	}
	cfg.History = &db
	return cfg, nil
}

func newDatabase(host string) (Database, error) {
	db := Database{Host: host}
	var err error

	portStr := os.Getenv("GOCOVRUN_DB_PORT")
	if portStr == "" {
		db.Port = DefaultMySQLPort
	} else {
		db.Port, err = strconv.Atoi(portStr)
		if err != nil {
			return db, fmt.Errorf("invalid GOCOVRUN_DB_PORT: %w", err)
		}
		if db.Port < MinPort || db.Port > MaxPort {
			return db, fmt.Errorf("GOCOVRUN_DB_PORT must be between %d and %d", MinPort, MaxPort)
		}
	}

	db.User = os.Getenv("GOCOVRUN_DB_USER")
	if db.User == "" {
		return db, fmt.Errorf("GOCOVRUN_DB_USER environment variable is required")
	}

	db.Password = os.Getenv("GOCOVRUN_DB_PASSWORD")
	if db.Password == "" {
		return db, fmt.Errorf("GOCOVRUN_DB_PASSWORD environment variable is required")
	}

	db.Database = os.Getenv("GOCOVRUN_DB_DATABASE")
	if db.Database == "" {
		return db, fmt.Errorf("GOCOVRUN_DB_DATABASE environment variable is required")
	}

	return db, nil
}

// DSN builds a go-sql-driver/mysql DSN. parseTime lets DATETIME columns
// scan into time.Time.
func (d Database) DSN() string {
	c := mysql.NewConfig()
	c.User = d.User
	c.Passwd = d.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
	c.DBName = d.Database
	c.ParseTime = true
	return c.FormatDSN()
}
