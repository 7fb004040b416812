// Package sqltok turns raw SQL text into per-statement token trees.
//
// Lexing is delegated to PostgreSQL's own lexer via pg_query. On top of the
// flat lexeme stream this package splits statements on top-level semicolons
// and groups parenthesized runs into Composite tokens, so a caller can walk
// nested subexpressions without a grammar parse.
//
// The result is deliberately non-validating: text that lexes but would not
// parse as PostgreSQL grammar (say, a DELETE smuggled into a FROM subquery)
// still produces a token tree. The safety gate depends on that — it must
// name the embedded mutation precisely instead of hiding it behind a
// generic parse error.
package sqltok

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// maxGroupDepth caps parenthesis nesting while building Composite tokens.
// Deeper input is rejected so adversarial nesting cannot drive unbounded
// recursion here or in any downstream tree walk.
const maxGroupDepth = 200

// dmlVerbs are the statement verbs tagged as DmlKeyword. Everything else
// that the lexer knows as a keyword becomes PlainKeyword.
var dmlVerbs = map[string]struct{}{
	"SELECT":   {},
	"INSERT":   {},
	"UPDATE":   {},
	"DELETE":   {},
	"DROP":     {},
	"ALTER":    {},
	"CREATE":   {},
	"TRUNCATE": {},
	"COPY":     {},
	"MERGE":    {},
	"REPLACE":  {},
}

// Parse lexes text and returns one token tree per statement. Statements
// consisting solely of whitespace and comments are dropped. Returns an
// error if the lexer rejects the input or nesting exceeds maxGroupDepth;
// callers treat any error as a parse failure.
func Parse(text string) ([]Statement, error) {
	scanned, err := pg_query.Scan(text)
	if err != nil {
		return nil, fmt.Errorf("sqltok: lexing failed: %w", err)
	}

	flat := flatten(text, scanned)

	var stmts []Statement
	for _, segment := range splitStatements(flat) {
		if Statement(segment).IsWhitespaceOnly() {
			continue
		}
		grouped, _, err := groupTokens(segment, 0, 0)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, Statement(grouped))
	}
	return stmts, nil
}

// flatten converts the lexer's offset-based tokens into a flat Token slice,
// reconstructing the gaps between lexemes as Whitespace tokens so the
// original text is fully preserved.
func flatten(text string, scanned *pg_query.ScanResult) []Token {
	var flat []Token
	pos := 0
	for _, st := range scanned.Tokens {
		start, end := int(st.Start), int(st.End)
		if start < pos || end > len(text) || start > end {
			continue
		}
		if start > pos {
			flat = append(flat, Whitespace{Value: text[pos:start]})
		}
		flat = append(flat, classify(text[start:end], st.KeywordKind))
		pos = end
	}
	if pos < len(text) {
		flat = append(flat, Whitespace{Value: text[pos:]})
	}
	return flat
}

// classify tags a single lexeme. Comments count as whitespace: they carry
// no syntactic weight and must not become a statement's leading token.
func classify(lexeme string, kind pg_query.KeywordKind) Token {
	if strings.HasPrefix(lexeme, "--") || strings.HasPrefix(lexeme, "/*") {
		return Whitespace{Value: lexeme}
	}
	if kind == pg_query.KeywordKind_NO_KEYWORD {
		return Leaf{Value: lexeme}
	}
	upper := strings.ToUpper(lexeme)
	if upper == "WITH" {
		return CteKeyword{Value: lexeme}
	}
	if _, ok := dmlVerbs[upper]; ok {
		return DmlKeyword{Value: lexeme}
	}
	return PlainKeyword{Value: lexeme}
}

// splitStatements splits the flat token stream on semicolons that sit
// outside any parenthesized group. The terminating semicolon stays attached
// to the statement it ends.
func splitStatements(flat []Token) [][]Token {
	var segments [][]Token
	var current []Token
	depth := 0
	for _, tok := range flat {
		if leaf, ok := tok.(Leaf); ok {
			switch leaf.Value {
			case "(":
				depth++
			case ")":
				if depth > 0 {
					depth--
				}
			case ";":
				if depth == 0 {
					current = append(current, tok)
					segments = append(segments, current)
					current = nil
					continue
				}
			}
		}
		current = append(current, tok)
	}
	if len(current) > 0 {
		segments = append(segments, current)
	}
	return segments
}

// groupTokens builds the token tree for one statement segment, turning each
// parenthesized run into a Composite. It consumes tokens from flat starting
// at start and returns the grouped tokens together with the index of the
// first unconsumed token (an unmatched closing paren, or len(flat)).
//
// Unbalanced input is handled leniently — a stray closing paren at the top
// level stays a Leaf, an unclosed group ends at the end of input — because
// the gate downstream must still see and judge malformed-but-lexable text.
func groupTokens(flat []Token, start, depth int) ([]Token, int, error) {
	var out []Token
	i := start
	for i < len(flat) {
		leaf, ok := flat[i].(Leaf)
		if !ok {
			out = append(out, flat[i])
			i++
			continue
		}
		switch leaf.Value {
		case "(":
			if depth+1 > maxGroupDepth {
				return nil, 0, fmt.Errorf("sqltok: nesting exceeds maximum depth %d", maxGroupDepth)
			}
			children := []Token{leaf}
			inner, next, err := groupTokens(flat, i+1, depth+1)
			if err != nil {
				return nil, 0, err
			}
			children = append(children, inner...)
			i = next
			if i < len(flat) {
				// Consume the matching closing paren.
				children = append(children, flat[i])
				i++
			}
			out = append(out, Composite{Children: children})
		case ")":
			if depth > 0 {
				return out, i, nil
			}
			out = append(out, leaf)
			i++
		default:
			out = append(out, leaf)
			i++
		}
	}
	return out, i, nil
}
