// Package redact applies regex-based redaction to result field values
// before they leave the server, recursing into JSONB objects and arrays.
package redact

import (
	"fmt"
	"regexp"
)

// Rule defines one redaction: every match of Pattern in a string field is
// replaced with Replacement. Description is informational only.
type Rule struct {
	Pattern     string
	Replacement string
	Description string
}

type compiledRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Redactor applies a fixed rule set to result rows.
type Redactor struct {
	rules []compiledRule
}

// New creates a Redactor. Returns an error on invalid regex patterns.
func New(rules []Rule) (*Redactor, error) {
	compiled := make([]compiledRule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("redact: invalid pattern %q: %v", r.Pattern, err)
		}
		compiled[i] = compiledRule{pattern: re, replacement: r.Replacement}
	}
	return &Redactor{rules: compiled}, nil
}

// Active reports whether any rules are configured.
func (r *Redactor) Active() bool {
	return len(r.rules) > 0
}

// Rows redacts every field value in the given rows in place and returns
// them. Non-string scalars pass through untouched.
func (r *Redactor) Rows(rows []map[string]interface{}) []map[string]interface{} {
	if !r.Active() {
		return rows
	}
	for _, row := range rows {
		for k, v := range row {
			row[k] = r.value(v)
		}
	}
	return rows
}

func (r *Redactor) value(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		out := val
		for _, rule := range r.rules {
			out = rule.pattern.ReplaceAllString(out, rule.replacement)
		}
		return out
	case map[string]interface{}:
		for k, item := range val {
			val[k] = r.value(item)
		}
		return val
	case []interface{}:
		for i, item := range val {
			val[i] = r.value(item)
		}
		return val
	default:
		return v
	}
}
