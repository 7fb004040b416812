package pgward

import (
	"fmt"
	"strconv"
	"strings"
)

// Config is the base configuration used by library mode via New().
type Config struct {
	Pool           PoolConfig      `json:"pool"`
	Query          QueryConfig     `json:"query"`
	Redaction      []RedactionRule `json:"redaction"`
	Guidance       []GuidanceRule  `json:"guidance"`
	AllowDangerous bool            `json:"allow_dangerous"`
}

// ServerConfig embeds Config and adds server-only fields for CLI mode.
type ServerConfig struct {
	Config
	Connection ConnectionConfig `json:"connection"`
	Server     ServerSettings   `json:"server"`
	Logging    LoggingConfig    `json:"logging"`
}

// ConnectionConfig holds database connection parameters used by CLI mode.
// Credentials are never stored here; the CLI prompts for them or reads the
// PG_* environment variables.
type ConnectionConfig struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	DBName  string `json:"dbname"`
	SSLMode string `json:"sslmode"`
}

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	MaxConns          int    `json:"max_conns"`
	MinConns          int    `json:"min_conns"`
	MaxConnLifetime   string `json:"max_conn_lifetime"`
	MaxConnIdleTime   string `json:"max_conn_idle_time"`
	HealthCheckPeriod string `json:"health_check_period"`
}

// ServerSettings holds transport settings for CLI mode. Transport is
// "stdio" (default) or "http".
type ServerSettings struct {
	Transport          string `json:"transport"`
	Port               int    `json:"port"`
	HealthCheckEnabled bool   `json:"health_check_enabled"`
	HealthCheckPath    string `json:"health_check_path"`
}

// LoggingConfig holds logging settings for CLI mode.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stderr, stdout, or file path
}

// QueryConfig holds query execution settings.
type QueryConfig struct {
	DefaultTimeoutSeconds       int           `json:"default_timeout_seconds"`
	ListDatabasesTimeoutSeconds int           `json:"list_databases_timeout_seconds"`
	ListTablesTimeoutSeconds    int           `json:"list_tables_timeout_seconds"`
	DescribeTableTimeoutSeconds int           `json:"describe_table_timeout_seconds"`
	MaxSQLLength                int           `json:"max_sql_length"`
	MaxResultLength             int           `json:"max_result_length"`
	TimeoutRules                []TimeoutRule `json:"timeout_rules"`
}

// TimeoutRule maps a SQL pattern to a specific timeout duration.
type TimeoutRule struct {
	Pattern        string `json:"pattern"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// RedactionRule defines a regex-based result field redaction rule.
type RedactionRule struct {
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
	Description string `json:"description"`
}

// GuidanceRule maps an error message pattern to a guidance message appended
// to matching errors.
type GuidanceRule struct {
	Pattern string `json:"pattern"`
	Message string `json:"message"`
}

// EnvConnection holds connection parameters read from the PG_* environment
// variables at process start.
type EnvConnection struct {
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	AllowDangerous bool
}

// ConnectionFromEnv reads PG_HOST, PG_USER, PG_PASSWORD, PG_DATABASE and
// PG_ALLOW_DANGEROUS via getenv. PG_HOST accepts "host" or "host:port";
// the port defaults to 5432. All connection variables are required.
func ConnectionFromEnv(getenv func(string) string) (*EnvConnection, error) {
	host := getenv("PG_HOST")
	if host == "" {
		return nil, fmt.Errorf("PG_HOST environment variable is not set")
	}

	port := 5432
	if i := strings.Index(host, ":"); i >= 0 {
		p, err := strconv.Atoi(host[i+1:])
		if err != nil {
			return nil, fmt.Errorf("invalid port in PG_HOST %q: %v", host, err)
		}
		port = p
		host = host[:i]
	}

	user := getenv("PG_USER")
	if user == "" {
		return nil, fmt.Errorf("PG_USER environment variable is not set")
	}
	password := getenv("PG_PASSWORD")
	if password == "" {
		return nil, fmt.Errorf("PG_PASSWORD environment variable is not set")
	}
	database := getenv("PG_DATABASE")
	if database == "" {
		return nil, fmt.Errorf("PG_DATABASE environment variable is not set")
	}

	return &EnvConnection{
		Host:           host,
		Port:           port,
		User:           user,
		Password:       password,
		Database:       database,
		AllowDangerous: strings.EqualFold(getenv("PG_ALLOW_DANGEROUS"), "true"),
	}, nil
}

// ConnString renders the environment connection as a pgx key/value
// connection string.
func (e *EnvConnection) ConnString() string {
	parts := []string{
		fmt.Sprintf("host=%s", e.Host),
		fmt.Sprintf("port=%d", e.Port),
		fmt.Sprintf("user=%s", e.User),
		fmt.Sprintf("password=%s", e.Password),
		fmt.Sprintf("dbname=%s", e.Database),
	}
	return strings.Join(parts, " ")
}
