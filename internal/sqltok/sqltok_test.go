package sqltok

import (
	"strings"
	"testing"
)

// firstNonWhitespace returns the first token of s that is not Whitespace.
func firstNonWhitespace(t *testing.T, s Statement) Token {
	t.Helper()
	for _, tok := range s {
		if _, ok := tok.(Whitespace); !ok {
			return tok
		}
	}
	t.Fatal("statement has only whitespace tokens")
	return nil
}

func mustParse(t *testing.T, sql string) []Statement {
	t.Helper()
	stmts, err := Parse(sql)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", sql, err)
	}
	return stmts
}

func TestParse_SingleStatement(t *testing.T) {
	t.Parallel()
	stmts := mustParse(t, "SELECT 1")
	if len(stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(stmts))
	}
}

func TestParse_SplitsOnSemicolon(t *testing.T) {
	t.Parallel()
	stmts := mustParse(t, "SELECT 1; DELETE FROM orders")
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(stmts))
	}
}

func TestParse_TrailingSemicolonIsOneStatement(t *testing.T) {
	t.Parallel()
	stmts := mustParse(t, "SELECT 1;")
	if len(stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(stmts))
	}
}

func TestParse_EmptyInput(t *testing.T) {
	t.Parallel()
	stmts := mustParse(t, "")
	if len(stmts) != 0 {
		t.Fatalf("expected 0 statements for empty input, got %d", len(stmts))
	}
}

func TestParse_WhitespaceOnlyInput(t *testing.T) {
	t.Parallel()
	stmts := mustParse(t, "   \n\t  ")
	if len(stmts) != 0 {
		t.Fatalf("expected 0 statements for whitespace input, got %d", len(stmts))
	}
}

func TestParse_SelectIsDmlKeyword(t *testing.T) {
	t.Parallel()
	stmts := mustParse(t, "SELECT a FROM t")
	tok := firstNonWhitespace(t, stmts[0])
	dml, ok := tok.(DmlKeyword)
	if !ok {
		t.Fatalf("expected DmlKeyword, got %T", tok)
	}
	if !strings.EqualFold(dml.Value, "SELECT") {
		t.Fatalf("expected SELECT, got %q", dml.Value)
	}
}

func TestParse_LowercaseVerbKeepsSourceCasing(t *testing.T) {
	t.Parallel()
	stmts := mustParse(t, "select 1")
	tok := firstNonWhitespace(t, stmts[0])
	dml, ok := tok.(DmlKeyword)
	if !ok {
		t.Fatalf("expected DmlKeyword, got %T", tok)
	}
	if dml.Value != "select" {
		t.Fatalf("expected source casing preserved, got %q", dml.Value)
	}
}

func TestParse_WithIsCteKeyword(t *testing.T) {
	t.Parallel()
	stmts := mustParse(t, "WITH x AS (SELECT 1) SELECT * FROM x")
	tok := firstNonWhitespace(t, stmts[0])
	if _, ok := tok.(CteKeyword); !ok {
		t.Fatalf("expected CteKeyword, got %T", tok)
	}
}

func TestParse_FromIsPlainKeyword(t *testing.T) {
	t.Parallel()
	stmts := mustParse(t, "SELECT a FROM t")
	var sawFrom bool
	for _, tok := range stmts[0] {
		if kw, ok := tok.(PlainKeyword); ok && strings.EqualFold(kw.Value, "FROM") {
			sawFrom = true
		}
	}
	if !sawFrom {
		t.Fatal("expected FROM to be tagged PlainKeyword")
	}
}

func TestParse_IdentifierIsLeaf(t *testing.T) {
	t.Parallel()
	stmts := mustParse(t, "SELECT col_a FROM t")
	var sawIdent bool
	for _, tok := range stmts[0] {
		if leaf, ok := tok.(Leaf); ok && leaf.Value == "col_a" {
			sawIdent = true
		}
	}
	if !sawIdent {
		t.Fatal("expected identifier to be tagged Leaf")
	}
}

func TestParse_ParenthesesBecomeComposite(t *testing.T) {
	t.Parallel()
	stmts := mustParse(t, "SELECT * FROM (SELECT 1) x")
	var composite *Composite
	for _, tok := range stmts[0] {
		if c, ok := tok.(Composite); ok {
			composite = &c
			break
		}
	}
	if composite == nil {
		t.Fatal("expected a Composite token for the parenthesized subquery")
	}
	var sawInnerSelect bool
	for _, child := range composite.Children {
		if dml, ok := child.(DmlKeyword); ok && strings.EqualFold(dml.Value, "SELECT") {
			sawInnerSelect = true
		}
	}
	if !sawInnerSelect {
		t.Fatal("expected the inner SELECT inside the Composite")
	}
}

func TestParse_NestedComposites(t *testing.T) {
	t.Parallel()
	stmts := mustParse(t, "SELECT * FROM (SELECT a FROM (SELECT 1) y) z")
	var outer *Composite
	for _, tok := range stmts[0] {
		if c, ok := tok.(Composite); ok {
			outer = &c
			break
		}
	}
	if outer == nil {
		t.Fatal("expected an outer Composite")
	}
	var sawInner bool
	for _, child := range outer.Children {
		if _, ok := child.(Composite); ok {
			sawInner = true
		}
	}
	if !sawInner {
		t.Fatal("expected a nested Composite inside the outer one")
	}
}

func TestParse_SemicolonInsideParensDoesNotSplit(t *testing.T) {
	t.Parallel()
	// Not meaningful SQL, but lexes fine; the split must ignore the inner
	// semicolon.
	stmts := mustParse(t, "SELECT f('a;b'), (1; 2) FROM t")
	if len(stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(stmts))
	}
}

func TestParse_TextRoundTrip(t *testing.T) {
	t.Parallel()
	src := "SELECT  a,\n\tb FROM (SELECT 1) x  WHERE a > 2"
	stmts := mustParse(t, src)
	if len(stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(stmts))
	}
	if got := stmts[0].Text(); got != src {
		t.Fatalf("Text() does not round-trip:\n got: %q\nwant: %q", got, src)
	}
}

func TestParse_CommentsCountAsWhitespace(t *testing.T) {
	t.Parallel()
	stmts := mustParse(t, "/* leading */ SELECT 1")
	tok := firstNonWhitespace(t, stmts[0])
	if _, ok := tok.(DmlKeyword); !ok {
		t.Fatalf("expected DmlKeyword after comment, got %T", tok)
	}
}

func TestParse_LineCommentOnlyInput(t *testing.T) {
	t.Parallel()
	stmts := mustParse(t, "-- just a comment\n")
	if len(stmts) != 0 {
		t.Fatalf("expected 0 statements for comment-only input, got %d", len(stmts))
	}
}

func TestParse_BareSemicolonIsAStatement(t *testing.T) {
	t.Parallel()
	stmts := mustParse(t, ";")
	if len(stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(stmts))
	}
	if _, ok := firstNonWhitespace(t, stmts[0]).(Leaf); !ok {
		t.Fatal("expected the bare semicolon to be a Leaf")
	}
}

func TestParse_UnterminatedStringFails(t *testing.T) {
	t.Parallel()
	if _, err := Parse("SELECT 'abc"); err == nil {
		t.Fatal("expected lexing error for unterminated string")
	}
}

func TestParse_ExcessiveNestingFails(t *testing.T) {
	t.Parallel()
	sql := "SELECT " + strings.Repeat("(", maxGroupDepth+1) + "1" + strings.Repeat(")", maxGroupDepth+1)
	if _, err := Parse(sql); err == nil {
		t.Fatalf("expected depth error beyond %d levels", maxGroupDepth)
	}
}

func TestParse_NestingAtLimitSucceeds(t *testing.T) {
	t.Parallel()
	sql := "SELECT " + strings.Repeat("(", maxGroupDepth) + "1" + strings.Repeat(")", maxGroupDepth)
	if _, err := Parse(sql); err != nil {
		t.Fatalf("expected nesting at the limit to parse, got %v", err)
	}
}

func TestParse_UnbalancedClosingParenStaysLeaf(t *testing.T) {
	t.Parallel()
	stmts := mustParse(t, "SELECT 1 )")
	var sawParen bool
	for _, tok := range stmts[0] {
		if leaf, ok := tok.(Leaf); ok && leaf.Value == ")" {
			sawParen = true
		}
	}
	if !sawParen {
		t.Fatal("expected stray closing paren to remain a Leaf")
	}
}

func TestParse_UnclosedGroupEndsAtInput(t *testing.T) {
	t.Parallel()
	stmts := mustParse(t, "SELECT (1 + 2")
	var sawComposite bool
	for _, tok := range stmts[0] {
		if _, ok := tok.(Composite); ok {
			sawComposite = true
		}
	}
	if !sawComposite {
		t.Fatal("expected unclosed group to still form a Composite")
	}
}
