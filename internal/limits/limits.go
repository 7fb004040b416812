// Package limits enforces the resource budgets around query execution:
// maximum SQL input length, maximum result payload size, and per-query
// timeouts resolved from SQL pattern rules.
package limits

import (
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"
)

// Rule maps a SQL pattern to a specific timeout.
type Rule struct {
	Pattern string
	Timeout time.Duration
}

// Config holds the manager's budgets. Zero MaxSQLBytes or MaxResultChars
// mean "no cap".
type Config struct {
	MaxSQLBytes    int
	MaxResultChars int
	DefaultTimeout time.Duration
	Rules          []Rule
}

type compiledRule struct {
	pattern *regexp.Regexp
	timeout time.Duration
}

// Manager resolves budgets for individual queries. Immutable after
// construction, safe for concurrent use.
type Manager struct {
	maxSQLBytes    int
	maxResultChars int
	defaultTimeout time.Duration
	rules          []compiledRule
}

// NewManager creates a Manager. Panics on invalid regex patterns — rule
// patterns come from startup configuration, and a broken pattern must not
// be discovered at query time.
func NewManager(config Config) *Manager {
	compiled := make([]compiledRule, len(config.Rules))
	for i, r := range config.Rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			panic(fmt.Sprintf("limits: invalid timeout pattern %q: %v", r.Pattern, err))
		}
		compiled[i] = compiledRule{pattern: re, timeout: r.Timeout}
	}
	return &Manager{
		maxSQLBytes:    config.MaxSQLBytes,
		maxResultChars: config.MaxResultChars,
		defaultTimeout: config.DefaultTimeout,
		rules:          compiled,
	}
}

// CheckSQL rejects input that exceeds the SQL byte budget. Runs before any
// parsing so oversized input never reaches the lexer.
func (m *Manager) CheckSQL(sql string) error {
	if m.maxSQLBytes > 0 && len(sql) > m.maxSQLBytes {
		return fmt.Errorf("SQL query too long: %d bytes exceeds maximum of %d bytes", len(sql), m.maxSQLBytes)
	}
	return nil
}

// TimeoutFor returns the timeout for the given SQL and the pattern that
// selected it. First matching rule wins; the empty pattern means the
// default applied.
func (m *Manager) TimeoutFor(sql string) (time.Duration, string) {
	for _, rule := range m.rules {
		if rule.pattern.MatchString(sql) {
			return rule.timeout, rule.pattern.String()
		}
	}
	return m.defaultTimeout, ""
}

// TruncateResult caps a rendered result payload at the result character
// budget. Returns the (possibly truncated) payload and whether truncation
// happened.
func (m *Manager) TruncateResult(payload string) (string, bool) {
	if m.maxResultChars <= 0 || utf8.RuneCountInString(payload) <= m.maxResultChars {
		return payload, false
	}
	runes := []rune(payload)
	return string(runes[:m.maxResultChars]), true
}
