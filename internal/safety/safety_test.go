package safety

import (
	"strings"
	"testing"
)

func enforced() Policy {
	return NewPolicy(Enforced, "appdb")
}

func permissive() Policy {
	return NewPolicy(Permissive, "appdb")
}

func assertRejected(t *testing.T, d Decision, kind ErrorKind, detailContains string) {
	t.Helper()
	if d.Allowed {
		t.Fatalf("expected rejection with kind %q, got allowed", kind)
	}
	if d.Reason == nil {
		t.Fatal("rejected decision must carry a reason")
	}
	if d.Reason.Kind != kind {
		t.Fatalf("expected kind %q, got %q (detail: %q)", kind, d.Reason.Kind, d.Reason.Detail)
	}
	if detailContains != "" && !strings.Contains(d.Reason.Detail, detailContains) {
		t.Fatalf("expected detail containing %q, got %q", detailContains, d.Reason.Detail)
	}
}

func assertAllowed(t *testing.T, d Decision) {
	t.Helper()
	if !d.Allowed {
		t.Fatalf("expected allowed, got rejection %q (detail: %q)", d.Reason.Kind, d.Reason.Detail)
	}
	if d.Reason != nil {
		t.Fatal("allowed decision must not carry a reason")
	}
}

// --- Verb gate ---

func TestVerbGate_SelectAllowed(t *testing.T) {
	t.Parallel()
	assertAllowed(t, CheckSafety("SELECT id, name FROM users", enforced()))
}

func TestVerbGate_ShowAllowed(t *testing.T) {
	t.Parallel()
	assertAllowed(t, CheckSafety("SHOW search_path", enforced()))
}

func TestVerbGate_ExplainAllowed(t *testing.T) {
	t.Parallel()
	assertAllowed(t, CheckSafety("EXPLAIN SELECT 1", enforced()))
}

func TestVerbGate_WithAllowed(t *testing.T) {
	t.Parallel()
	assertAllowed(t, CheckSafety("WITH x AS (SELECT 1) SELECT * FROM x", enforced()))
}

func TestVerbGate_MutatingVerbsRejected(t *testing.T) {
	t.Parallel()
	queries := map[string]string{
		"INSERT":   "INSERT INTO t VALUES (1)",
		"UPDATE":   "UPDATE t SET a = 1",
		"DELETE":   "DELETE FROM t",
		"DROP":     "DROP TABLE t",
		"ALTER":    "ALTER TABLE t ADD COLUMN b int",
		"CREATE":   "CREATE TABLE t (a int)",
		"TRUNCATE": "TRUNCATE t",
		"GRANT":    "GRANT SELECT ON t TO alice",
		"REVOKE":   "REVOKE SELECT ON t FROM alice",
	}
	for verb, sql := range queries {
		assertRejected(t, CheckSafety(sql, enforced()), DisallowedVerb, verb)
	}
}

func TestVerbGate_CaseInsensitive(t *testing.T) {
	t.Parallel()
	assertRejected(t, CheckSafety("delete from t", enforced()), DisallowedVerb, "DELETE")
	assertAllowed(t, CheckSafety("select 1", enforced()))
}

func TestVerbGate_LeadingWhitespaceAndComments(t *testing.T) {
	t.Parallel()
	assertAllowed(t, CheckSafety("   \n SELECT 1", enforced()))
	assertRejected(t, CheckSafety("/* hi */ DROP TABLE t", enforced()), DisallowedVerb, "DROP")
}

// --- Multi-statement batches ---

func TestBatch_SecondStatementRejectsWholeBatch(t *testing.T) {
	t.Parallel()
	assertRejected(t, CheckSafety("SELECT 1; DELETE FROM orders", enforced()), DisallowedVerb, "DELETE")
}

func TestBatch_AllSelectsAllowed(t *testing.T) {
	t.Parallel()
	assertAllowed(t, CheckSafety("SELECT 1; SELECT 2; SELECT 3", enforced()))
}

func TestBatch_FirstRejectionWins(t *testing.T) {
	t.Parallel()
	// DROP is hit before the later UNION would be.
	assertRejected(t, CheckSafety("DROP TABLE t; SELECT 1 UNION SELECT 2", enforced()), DisallowedVerb, "DROP")
}

// --- Parse failures ---

func TestParseFailure_EmptyInput(t *testing.T) {
	t.Parallel()
	assertRejected(t, CheckSafety("", enforced()), ParseFailure, "")
}

func TestParseFailure_WhitespaceOnly(t *testing.T) {
	t.Parallel()
	assertRejected(t, CheckSafety("   \n  ", enforced()), ParseFailure, "")
}

func TestParseFailure_UnterminatedString(t *testing.T) {
	t.Parallel()
	assertRejected(t, CheckSafety("SELECT 'abc", enforced()), ParseFailure, "")
}

func TestParseFailure_ExcessiveNesting(t *testing.T) {
	t.Parallel()
	sql := "SELECT " + strings.Repeat("(", 300) + "1" + strings.Repeat(")", 300)
	assertRejected(t, CheckSafety(sql, enforced()), ParseFailure, "")
}

// --- Dangerous constructs ---

func TestConstructs_IntoOutfile(t *testing.T) {
	t.Parallel()
	assertRejected(t, CheckSafety("SELECT * FROM t INTO OUTFILE '/tmp/x'", enforced()), DangerousConstruct, "INTO OUTFILE")
}

func TestConstructs_PgReadFile(t *testing.T) {
	t.Parallel()
	assertRejected(t, CheckSafety("SELECT pg_read_file('/etc/passwd')", enforced()), DangerousConstruct, "PG_READ_FILE(")
}

func TestConstructs_PgLsDir(t *testing.T) {
	t.Parallel()
	assertRejected(t, CheckSafety("SELECT pg_ls_dir('/etc')", enforced()), DangerousConstruct, "PG_LS_DIR(")
}

func TestConstructs_SystemVariable(t *testing.T) {
	t.Parallel()
	assertRejected(t, CheckSafety("SELECT a @@ b FROM t", enforced()), DangerousConstruct, "@@")
}

func TestConstructs_OnlyScannedForSelectClass(t *testing.T) {
	t.Parallel()
	// SHOW is accepted on the verb alone; its text is never construct-scanned.
	assertAllowed(t, CheckSafety("SHOW all", enforced()))
}

// --- UNION ---

func TestUnion_SameTableStillRejected(t *testing.T) {
	t.Parallel()
	assertRejected(t, CheckSafety("SELECT a FROM t UNION SELECT a FROM t", enforced()), UnionRejected, "")
}

func TestUnion_UnionAllRejected(t *testing.T) {
	t.Parallel()
	assertRejected(t, CheckSafety("SELECT a FROM t UNION ALL SELECT b FROM u", enforced()), UnionRejected, "")
}

func TestUnion_InsideWithRejected(t *testing.T) {
	t.Parallel()
	assertRejected(t, CheckSafety("WITH x AS (SELECT 1 UNION SELECT 2) SELECT * FROM x", enforced()), UnionRejected, "")
}

// --- Nested mutations ---

func TestNested_DeleteInDoubleSubquery(t *testing.T) {
	t.Parallel()
	sql := "SELECT * FROM (SELECT 1 FROM (DELETE FROM t RETURNING 1) x) y"
	assertRejected(t, CheckSafety(sql, enforced()), EmbeddedMutation, "DELETE")
}

func TestNested_InsertInSubquery(t *testing.T) {
	t.Parallel()
	sql := "SELECT * FROM (INSERT INTO t VALUES (1) RETURNING id) x"
	assertRejected(t, CheckSafety(sql, enforced()), EmbeddedMutation, "INSERT")
}

func TestNested_DropInFunctionArgument(t *testing.T) {
	t.Parallel()
	sql := "SELECT f((DROP TABLE t)) FROM u"
	assertRejected(t, CheckSafety(sql, enforced()), EmbeddedMutation, "DROP")
}

func TestNested_MutationInsideCte(t *testing.T) {
	t.Parallel()
	sql := "WITH doomed AS (DELETE FROM orders RETURNING id) SELECT * FROM doomed"
	assertRejected(t, CheckSafety(sql, enforced()), EmbeddedMutation, "DELETE")
}

func TestNested_UpdateDeepInCte(t *testing.T) {
	t.Parallel()
	sql := "WITH x AS (SELECT * FROM (UPDATE t SET a = 1 RETURNING a) y) SELECT * FROM x"
	assertRejected(t, CheckSafety(sql, enforced()), EmbeddedMutation, "UPDATE")
}

func TestNested_PlainSubqueryAllowed(t *testing.T) {
	t.Parallel()
	assertAllowed(t, CheckSafety("SELECT * FROM (SELECT a FROM t) x WHERE x.a > 1", enforced()))
}

// --- EXPLAIN gap (documented, not corrected) ---

func TestExplain_WrappedMutationNotDeepScanned(t *testing.T) {
	t.Parallel()
	// EXPLAIN passes on the verb alone; the wrapped DELETE is not seen by
	// the nested scanner. The schema guard still applies separately.
	assertAllowed(t, CheckSafety("EXPLAIN DELETE FROM t", enforced()))
}

// --- Permissive mode ---

func TestPermissive_AllowsMutations(t *testing.T) {
	t.Parallel()
	for _, sql := range []string{
		"DROP TABLE t",
		"DELETE FROM orders",
		"SELECT a FROM t UNION SELECT a FROM t",
		"not even sql '", // no parsing happens at all
	} {
		assertAllowed(t, CheckSafety(sql, permissive()))
	}
}

func TestPermissive_SchemaGuardStillApplies(t *testing.T) {
	t.Parallel()
	assertRejected(t, CheckDatabaseContext("SELECT * FROM secret.users", permissive()), UnauthorizedSchema, "secret")
}

// --- Database context guard ---

func TestContext_PublicSchemaAllowed(t *testing.T) {
	t.Parallel()
	assertAllowed(t, CheckDatabaseContext("SELECT * FROM public.users", enforced()))
}

func TestContext_CatalogSchemasAllowed(t *testing.T) {
	t.Parallel()
	assertAllowed(t, CheckDatabaseContext("SELECT * FROM pg_catalog.pg_tables", enforced()))
	assertAllowed(t, CheckDatabaseContext("SELECT * FROM information_schema.columns", enforced()))
}

func TestContext_ForeignSchemaRejected(t *testing.T) {
	t.Parallel()
	assertRejected(t, CheckDatabaseContext("SELECT * FROM secret.users", enforced()), UnauthorizedSchema, "secret")
}

func TestContext_ReportedSchemaKeepsSourceCasing(t *testing.T) {
	t.Parallel()
	d := CheckDatabaseContext("SELECT * FROM Secret.users", enforced())
	assertRejected(t, d, UnauthorizedSchema, "Secret")
}

func TestContext_SchemaAllowSetIsCaseInsensitive(t *testing.T) {
	t.Parallel()
	assertAllowed(t, CheckDatabaseContext("SELECT * FROM PUBLIC.users", enforced()))
}

func TestContext_JoinQualifierChecked(t *testing.T) {
	t.Parallel()
	sql := "SELECT * FROM public.a JOIN hidden.b ON a.id = b.id"
	assertRejected(t, CheckDatabaseContext(sql, enforced()), UnauthorizedSchema, "hidden")
}

func TestContext_UseRejected(t *testing.T) {
	t.Parallel()
	d := CheckDatabaseContext("USE otherdb", enforced())
	assertRejected(t, d, DatabaseSwitchRejected, "appdb")
}

func TestContext_PsqlConnectMetaRejected(t *testing.T) {
	t.Parallel()
	assertRejected(t, CheckDatabaseContext(`\c otherdb`, enforced()), DatabaseSwitchRejected, "appdb")
}

func TestContext_UnqualifiedTableAllowed(t *testing.T) {
	t.Parallel()
	assertAllowed(t, CheckDatabaseContext("SELECT * FROM users", enforced()))
}

// --- Decision invariants ---

func TestInvariant_ReasonPresentIffRejected(t *testing.T) {
	t.Parallel()
	queries := []string{
		"SELECT 1",
		"DROP TABLE t",
		"SELECT a FROM t UNION SELECT a FROM t",
		"",
		"SELECT * FROM secret.users",
	}
	for _, sql := range queries {
		for _, d := range []Decision{CheckSafety(sql, enforced()), CheckDatabaseContext(sql, enforced())} {
			if d.Allowed && d.Reason != nil {
				t.Fatalf("query %q: allowed decision carries a reason", sql)
			}
			if !d.Allowed && d.Reason == nil {
				t.Fatalf("query %q: rejected decision carries no reason", sql)
			}
		}
	}
}

func TestInvariant_Deterministic(t *testing.T) {
	t.Parallel()
	pol := enforced()
	sql := "SELECT a FROM t UNION SELECT a FROM t"
	first := CheckSafety(sql, pol)
	for i := 0; i < 10; i++ {
		d := CheckSafety(sql, pol)
		if d.Allowed != first.Allowed || d.Reason.Kind != first.Reason.Kind || d.Reason.Detail != first.Reason.Detail {
			t.Fatal("identical inputs produced different decisions")
		}
	}
}
