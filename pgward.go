package pgward

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/pgward/pgward/internal/diag"
	"github.com/pgward/pgward/internal/limits"
	"github.com/pgward/pgward/internal/redact"
	"github.com/pgward/pgward/internal/safety"
)

// Pgward is the core engine that provides the Query, ListDatabases,
// ListTables, and DescribeTable tools. All exported methods are safe for
// concurrent use from multiple goroutines.
type Pgward struct {
	config    Config
	pool      *pgxpool.Pool
	semaphore chan struct{}
	policy    safety.Policy
	limits    *limits.Manager
	redactor  *redact.Redactor
	diag      *diag.Formatter
	logger    zerolog.Logger
}

// New creates a new Pgward instance.
// connString is the PostgreSQL connection string (must include credentials).
// In library mode, connString is required — Config.Connection fields are ignored
// (the CLI is responsible for building connString from the environment or
// prompted credentials).
// Panics on invalid config. Returns error only for runtime failures (e.g., pool creation).
func New(ctx context.Context, connString string, config Config, logger zerolog.Logger) (*Pgward, error) {
	// --- Config validation (panics on invalid config) ---

	if connString == "" {
		panic("pgward: connString must be non-empty")
	}
	if config.Pool.MaxConns <= 0 {
		panic("pgward: pool.max_conns must be > 0")
	}
	if config.Query.DefaultTimeoutSeconds <= 0 {
		panic("pgward: query.default_timeout_seconds must be > 0")
	}
	if config.Query.ListDatabasesTimeoutSeconds <= 0 {
		panic("pgward: query.list_databases_timeout_seconds must be > 0")
	}
	if config.Query.ListTablesTimeoutSeconds <= 0 {
		panic("pgward: query.list_tables_timeout_seconds must be > 0")
	}
	if config.Query.DescribeTableTimeoutSeconds <= 0 {
		panic("pgward: query.describe_table_timeout_seconds must be > 0")
	}

	// Apply defaults for zero values
	if config.Query.MaxSQLLength == 0 {
		config.Query.MaxSQLLength = 100000
	}
	if config.Query.MaxResultLength == 0 {
		config.Query.MaxResultLength = 100000
	}
	if config.Query.MaxSQLLength < 0 {
		panic("pgward: query.max_sql_length must be > 0")
	}
	if config.Query.MaxResultLength < 0 {
		panic("pgward: query.max_result_length must be > 0")
	}

	// Validate timeout rules
	for _, rule := range config.Query.TimeoutRules {
		if rule.TimeoutSeconds <= 0 {
			panic(fmt.Sprintf("pgward: timeout_rule with pattern %q has timeout_seconds <= 0", rule.Pattern))
		}
	}

	// Compile redaction and guidance rules up front so a broken pattern is a
	// startup failure, not a query-time one.
	redactor, err := redact.New(mapRedactionRules(config.Redaction))
	if err != nil {
		panic(fmt.Sprintf("pgward: %v", err))
	}
	formatter, err := diag.NewFormatter(mapGuidanceRules(config.Guidance))
	if err != nil {
		panic(fmt.Sprintf("pgward: %v", err))
	}

	// --- Configure pgxpool ---

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(config.Pool.MaxConns)
	poolConfig.MinConns = int32(config.Pool.MinConns)
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	// Parse pool duration strings
	if config.Pool.MaxConnLifetime != "" {
		d, err := time.ParseDuration(config.Pool.MaxConnLifetime)
		if err != nil {
			panic(fmt.Sprintf("pgward: invalid pool.max_conn_lifetime %q: %v", config.Pool.MaxConnLifetime, err))
		}
		poolConfig.MaxConnLifetime = d
	}
	if config.Pool.MaxConnIdleTime != "" {
		d, err := time.ParseDuration(config.Pool.MaxConnIdleTime)
		if err != nil {
			panic(fmt.Sprintf("pgward: invalid pool.max_conn_idle_time %q: %v", config.Pool.MaxConnIdleTime, err))
		}
		poolConfig.MaxConnIdleTime = d
	}
	if config.Pool.HealthCheckPeriod != "" {
		d, err := time.ParseDuration(config.Pool.HealthCheckPeriod)
		if err != nil {
			panic(fmt.Sprintf("pgward: invalid pool.health_check_period %q: %v", config.Pool.HealthCheckPeriod, err))
		}
		poolConfig.HealthCheckPeriod = d
	}

	// --- Create pool ---

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// --- Initialize internal components ---

	mode := safety.Enforced
	if config.AllowDangerous {
		mode = safety.Permissive
	}
	policy := safety.NewPolicy(mode, poolConfig.ConnConfig.Database)

	timeoutRules := make([]limits.Rule, len(config.Query.TimeoutRules))
	for i, r := range config.Query.TimeoutRules {
		timeoutRules[i] = limits.Rule{
			Pattern: r.Pattern,
			Timeout: time.Duration(r.TimeoutSeconds) * time.Second,
		}
	}
	mgr := limits.NewManager(limits.Config{
		MaxSQLBytes:    config.Query.MaxSQLLength,
		MaxResultChars: config.Query.MaxResultLength,
		DefaultTimeout: time.Duration(config.Query.DefaultTimeoutSeconds) * time.Second,
		Rules:          timeoutRules,
	})

	return &Pgward{
		config:    config,
		pool:      pool,
		semaphore: make(chan struct{}, config.Pool.MaxConns),
		policy:    policy,
		limits:    mgr,
		redactor:  redactor,
		diag:      formatter,
		logger:    logger,
	}, nil
}

// Close closes the connection pool. Accepts context for API forward-compatibility,
// but does not currently use it — pgxpool.Pool.Close() does not support context-based shutdown.
func (p *Pgward) Close(ctx context.Context) {
	p.pool.Close()
}

// Ping verifies database connectivity.
func (p *Pgward) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// mapRedactionRules converts pgward RedactionRules to internal redact.Rules.
func mapRedactionRules(rules []RedactionRule) []redact.Rule {
	result := make([]redact.Rule, len(rules))
	for i, r := range rules {
		result[i] = redact.Rule{
			Pattern:     r.Pattern,
			Replacement: r.Replacement,
			Description: r.Description,
		}
	}
	return result
}

// mapGuidanceRules converts pgward GuidanceRules to internal diag.GuidanceRules.
func mapGuidanceRules(rules []GuidanceRule) []diag.GuidanceRule {
	result := make([]diag.GuidanceRule, len(rules))
	for i, r := range rules {
		result[i] = diag.GuidanceRule{
			Pattern: r.Pattern,
			Message: r.Message,
		}
	}
	return result
}
