// Package safety decides, before any network round-trip, whether a SQL
// query is safe to run under a read-only-by-default policy.
//
// The gate is layered. CheckSafety classifies each statement's leading verb
// against a static allow list, then deep-scans SELECT/WITH statements for
// dangerous text constructs and for mutating verbs nested anywhere in the
// token tree. CheckDatabaseContext is a separate, mandatory gate over the
// raw text that blocks database switching and cross-schema access; callers
// must apply it to every query even in permissive mode, which bypasses
// everything else.
//
// Known, deliberate gaps: SHOW, DESCRIBE and EXPLAIN pass on the verb alone
// without deep scanning, although EXPLAIN can wrap a mutating statement in
// many dialects; and the schema guard is a raw-text heuristic that quoted
// or escaped identifiers can evade. Both match the behavior this gate
// reproduces.
//
// Every check is pure and stateless beyond the immutable Policy, so the
// package is safe for unlimited concurrent use. Errors are returned as
// Decision data, never as Go errors or panics; anything indeterminate fails
// closed.
package safety

import (
	"regexp"
	"strings"

	"github.com/pgward/pgward/internal/sqltok"
)

// Mode selects whether the verb/construct/nesting checks apply.
type Mode int

const (
	// Enforced applies the full gate. This is the default.
	Enforced Mode = iota

	// Permissive disables CheckSafety entirely — an explicit operator
	// opt-in. CheckDatabaseContext still applies.
	Permissive
)

// Policy is the static per-process safety policy. Build it once with
// NewPolicy and treat it as immutable afterwards.
type Policy struct {
	Mode           Mode
	AllowedVerbs   map[string]struct{}
	AllowedSchemas map[string]struct{}
	Database       string
}

// NewPolicy returns a Policy for the given mode and configured database,
// with the default verb and schema allow sets.
func NewPolicy(mode Mode, database string) Policy {
	return Policy{
		Mode: mode,
		AllowedVerbs: map[string]struct{}{
			"SELECT":   {},
			"SHOW":     {},
			"DESCRIBE": {},
			"DESC":     {},
			"EXPLAIN":  {},
			"WITH":     {},
		},
		AllowedSchemas: map[string]struct{}{
			"public":             {},
			"pg_catalog":         {},
			"information_schema": {},
		},
		Database: database,
	}
}

// mutatingVerbs are rejected wherever they appear inside a deep-scanned
// statement, not just in leading position.
var mutatingVerbs = map[string]struct{}{
	"INSERT":   {},
	"UPDATE":   {},
	"DELETE":   {},
	"DROP":     {},
	"ALTER":    {},
	"CREATE":   {},
	"TRUNCATE": {},
	"COPY":     {},
}

// dangerousConstructs are fixed substrings scanned, in order, over the
// uppercased text of a SELECT-class statement.
var dangerousConstructs = []string{
	"INTO OUTFILE",
	"COPY ",
	"PG_READ_FILE(",
	"PG_LS_DIR(",
	"@@",
}

// schemaRefPattern captures the qualifier of a schema-qualified table
// reference. A text heuristic, not a resolver: quoted identifiers evade it.
var schemaRefPattern = regexp.MustCompile(`(?i)\b(?:FROM|JOIN|INTO|UPDATE)\s+([^\s.]+)\.`)

// CheckSafety decides whether rawQuery may run under pol. In Permissive
// mode it allows immediately without parsing. Otherwise every statement in
// the batch must pass; the first rejection short-circuits.
func CheckSafety(rawQuery string, pol Policy) Decision {
	if pol.Mode == Permissive {
		return allowed()
	}

	stmts, err := sqltok.Parse(rawQuery)
	if err != nil {
		return rejected(ParseFailure, err.Error())
	}
	if len(stmts) == 0 {
		return rejected(ParseFailure, "no statements found")
	}

	for _, stmt := range stmts {
		if d := checkStatement(stmt, pol); !d.Allowed {
			return d
		}
	}
	return allowed()
}

// checkStatement applies the verb gate and, for SELECT-class statements,
// the deep scans.
func checkStatement(stmt sqltok.Statement, pol Policy) Decision {
	verb := leadingVerb(stmt)
	if verb == "" {
		return rejected(EmptyStatement, "")
	}
	if _, ok := pol.AllowedVerbs[verb]; !ok {
		return rejected(DisallowedVerb, verb)
	}

	// SHOW/DESCRIBE/EXPLAIN pass on the verb alone. Only SELECT and WITH
	// carry arbitrary sub-expressions worth deep-scanning.
	if verb != "SELECT" && verb != "WITH" {
		return allowed()
	}

	if d := scanConstructs(stmt.Text()); !d.Allowed {
		return d
	}
	return scanNested(stmt)
}

// leadingVerb extracts a statement's command verb: the uppercased text of
// the first non-whitespace token, descending into composites. Returns ""
// for a statement with no non-whitespace tokens.
func leadingVerb(tokens []sqltok.Token) string {
	for _, tok := range tokens {
		switch t := tok.(type) {
		case sqltok.Whitespace:
			continue
		case sqltok.DmlKeyword:
			return strings.ToUpper(t.Value)
		case sqltok.PlainKeyword:
			return strings.ToUpper(t.Value)
		case sqltok.CteKeyword:
			return strings.ToUpper(t.Value)
		case sqltok.Composite:
			if v := leadingVerb(t.Children); v != "" {
				return v
			}
			return strings.ToUpper(strings.TrimSpace(t.Text()))
		default:
			return strings.ToUpper(strings.TrimSpace(tok.Text()))
		}
	}
	return ""
}

// scanConstructs scans the statement's rendered text for dangerous
// constructs, then for UNION. Every UNION is rejected — including a union
// of a table with itself — because telling benign unions from injected
// ones by text alone is unreliable.
func scanConstructs(text string) Decision {
	upper := strings.ToUpper(text)
	for _, construct := range dangerousConstructs {
		if strings.Contains(upper, construct) {
			return rejected(DangerousConstruct, strings.TrimSpace(construct))
		}
	}
	if strings.Contains(upper, "UNION") {
		return rejected(UnionRejected, "")
	}
	return allowed()
}

// scanNested walks the token tree pre-order, rejecting on the first
// mutating verb found at any depth. This catches statements smuggled into
// subqueries, CTEs, or function arguments that the leading-verb check
// never sees.
func scanNested(tokens []sqltok.Token) Decision {
	for _, tok := range tokens {
		switch t := tok.(type) {
		case sqltok.DmlKeyword:
			verb := strings.ToUpper(t.Value)
			if _, ok := mutatingVerbs[verb]; ok {
				return rejected(EmbeddedMutation, verb)
			}
		case sqltok.Composite:
			if d := scanNested(t.Children); !d.Allowed {
				return d
			}
		}
	}
	return allowed()
}

// CheckDatabaseContext verifies that rawQuery stays inside the configured
// database and its allowed schemas. It operates on the raw text,
// independent of the token tree, and applies in every policy mode.
func CheckDatabaseContext(rawQuery string, pol Policy) Decision {
	upper := strings.ToUpper(strings.TrimSpace(rawQuery))
	if strings.Contains(upper, `\C `) || strings.Contains(upper, "USE ") {
		return rejected(DatabaseSwitchRejected, pol.Database)
	}

	// Match against the original text so the reported identifier keeps its
	// source casing; the comparison itself is case-insensitive.
	for _, match := range schemaRefPattern.FindAllStringSubmatch(rawQuery, -1) {
		schema := match[1]
		if _, ok := pol.AllowedSchemas[strings.ToLower(schema)]; !ok {
			return rejected(UnauthorizedSchema, schema)
		}
	}
	return allowed()
}
