// Package diag renders safety gate decisions into human-readable messages
// and appends configurable guidance to error output.
//
// The gate itself emits only stable, locale-independent error kinds; every
// string an agent or operator sees is produced here, at the boundary.
package diag

import (
	"fmt"
	"regexp"

	"github.com/pgward/pgward/internal/safety"
)

// GuidanceRule maps an error message pattern to a steering message that is
// appended to matching errors.
type GuidanceRule struct {
	Pattern string
	Message string
}

type compiledRule struct {
	pattern *regexp.Regexp
	message string
}

// Formatter renders rejection reasons and matches guidance rules.
type Formatter struct {
	rules []compiledRule
}

// NewFormatter creates a Formatter. Returns an error on invalid regex
// patterns.
func NewFormatter(rules []GuidanceRule) (*Formatter, error) {
	compiled := make([]compiledRule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("diag: invalid guidance pattern %q: %v", r.Pattern, err)
		}
		compiled[i] = compiledRule{pattern: re, message: r.Message}
	}
	return &Formatter{rules: compiled}, nil
}

// Render produces the message for a rejection reason. The wording is stable
// per kind; only the detail varies.
func (f *Formatter) Render(r *safety.Reason) string {
	if r == nil {
		return ""
	}
	switch r.Kind {
	case safety.ParseFailure:
		if r.Detail != "" {
			return fmt.Sprintf("failed to parse SQL, query rejected: %s", r.Detail)
		}
		return "failed to parse SQL, query rejected"
	case safety.EmptyStatement:
		return "empty SQL statement"
	case safety.DisallowedVerb:
		return fmt.Sprintf("disallowed SQL command: %s. Only SELECT, SHOW, DESCRIBE, EXPLAIN queries are allowed unless dangerous operations are enabled.", r.Detail)
	case safety.DangerousConstruct:
		return fmt.Sprintf("detected dangerous %s operation, query rejected", r.Detail)
	case safety.UnionRejected:
		return "detected UNION operation, potential security risk, query rejected"
	case safety.EmbeddedMutation:
		return fmt.Sprintf("detected dangerous %s operation nested in SELECT statement", r.Detail)
	case safety.DatabaseSwitchRejected:
		return fmt.Sprintf("switching databases is not allowed; queries may only run against the configured database '%s'", r.Detail)
	case safety.UnauthorizedSchema:
		return fmt.Sprintf("access to schema '%s' is not allowed; only the public schema of the configured database may be queried", r.Detail)
	default:
		return fmt.Sprintf("query rejected: %s", r.Kind)
	}
}

// WithGuidance appends every matching guidance message to errMsg, separated
// by blank lines. Returns errMsg unchanged when nothing matches.
func (f *Formatter) WithGuidance(errMsg string) string {
	out := errMsg
	for _, rule := range f.rules {
		if rule.pattern.MatchString(errMsg) {
			out = out + "\n\n" + rule.message
		}
	}
	return out
}

// MatchedPatterns returns the guidance patterns that matched errMsg, for
// logging. Returns nil if none matched.
func (f *Formatter) MatchedPatterns(errMsg string) []string {
	var patterns []string
	for _, rule := range f.rules {
		if rule.pattern.MatchString(errMsg) {
			patterns = append(patterns, rule.pattern.String())
		}
	}
	return patterns
}
