package safety

// ErrorKind is a stable, locale-independent identifier for a rejection
// cause. Rendering a kind into a human-readable message is the caller's
// concern, never this package's.
type ErrorKind string

const (
	// ParseFailure: the query could not be tokenized, or produced no
	// statements. Indeterminate input is always rejected.
	ParseFailure ErrorKind = "parse_failure"

	// EmptyStatement: a statement contained no non-whitespace tokens.
	EmptyStatement ErrorKind = "empty_statement"

	// DisallowedVerb: the statement's leading verb is not on the allow
	// list. Detail carries the verb.
	DisallowedVerb ErrorKind = "disallowed_verb"

	// DangerousConstruct: a SELECT-class statement contains a known
	// dangerous construct. Detail carries the construct.
	DangerousConstruct ErrorKind = "dangerous_construct"

	// UnionRejected: a SELECT-class statement contains UNION anywhere.
	UnionRejected ErrorKind = "union_rejected"

	// EmbeddedMutation: a mutating verb was found nested inside an
	// otherwise-allowed statement. Detail carries the verb.
	EmbeddedMutation ErrorKind = "embedded_mutation"

	// DatabaseSwitchRejected: the query attempts to switch databases.
	// Detail carries the configured database name.
	DatabaseSwitchRejected ErrorKind = "database_switch_rejected"

	// UnauthorizedSchema: the query references a schema outside the allow
	// set. Detail carries the schema name.
	UnauthorizedSchema ErrorKind = "unauthorized_schema"
)

// Reason describes why a query was rejected.
type Reason struct {
	Kind   ErrorKind
	Detail string
}

// Decision is the terminal outcome of a safety check. Reason is non-nil
// exactly when Allowed is false.
type Decision struct {
	Allowed bool
	Reason  *Reason
}

func allowed() Decision {
	return Decision{Allowed: true}
}

func rejected(kind ErrorKind, detail string) Decision {
	return Decision{Allowed: false, Reason: &Reason{Kind: kind, Detail: detail}}
}
