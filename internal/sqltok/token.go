package sqltok

import "strings"

// Token is one lexical element of a parsed SQL statement. It is a closed
// set: the only implementations are the types in this file.
type Token interface {
	// Text returns the token's original source text. For Composite tokens
	// this is the concatenation of all children, so joining the tokens of a
	// Statement reproduces the statement's source exactly.
	Text() string

	isToken()
}

// DmlKeyword is a statement verb that selects or mutates data
// (SELECT, INSERT, UPDATE, DELETE, DROP, ALTER, CREATE, TRUNCATE, COPY,
// MERGE, REPLACE).
type DmlKeyword struct {
	Value string
}

// CteKeyword is the WITH keyword introducing a common table expression.
type CteKeyword struct {
	Value string
}

// PlainKeyword is any other SQL keyword (FROM, WHERE, SHOW, ...).
type PlainKeyword struct {
	Value string
}

// Leaf is a non-keyword lexeme: identifier, literal, operator, punctuation.
type Leaf struct {
	Value string
}

// Whitespace is a run of spaces, newlines, or comments between lexemes.
type Whitespace struct {
	Value string
}

// Composite is a parenthesized group. Children include the opening and
// closing parentheses as Leaf tokens.
type Composite struct {
	Children []Token
}

func (t DmlKeyword) Text() string   { return t.Value }
func (t CteKeyword) Text() string   { return t.Value }
func (t PlainKeyword) Text() string { return t.Value }
func (t Leaf) Text() string         { return t.Value }
func (t Whitespace) Text() string   { return t.Value }

func (t Composite) Text() string {
	var sb strings.Builder
	for _, child := range t.Children {
		sb.WriteString(child.Text())
	}
	return sb.String()
}

func (DmlKeyword) isToken()   {}
func (CteKeyword) isToken()   {}
func (PlainKeyword) isToken() {}
func (Leaf) isToken()         {}
func (Whitespace) isToken()   {}
func (Composite) isToken()    {}

// Statement is one parsed SQL statement as an ordered token sequence.
type Statement []Token

// Text reproduces the statement's original source text.
func (s Statement) Text() string {
	var sb strings.Builder
	for _, tok := range s {
		sb.WriteString(tok.Text())
	}
	return sb.String()
}

// IsWhitespaceOnly reports whether the statement contains no tokens other
// than whitespace.
func (s Statement) IsWhitespaceOnly() bool {
	for _, tok := range s {
		if _, ok := tok.(Whitespace); !ok {
			return false
		}
	}
	return true
}
