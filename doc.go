// Package pgward provides safe, read-only-by-default PostgreSQL access for
// AI agents through the Model Context Protocol (MCP).
//
// It exposes four tools — Query, ListDatabases, ListTables, and
// DescribeTable. Query runs a layered safety gate before any statement
// reaches the database: a verb allow list, a dangerous-construct scan, a
// recursive token-tree walk that catches mutations smuggled into
// subqueries and CTEs, and a schema/database context guard that applies
// even when the rest of the gate is disabled via PG_ALLOW_DANGEROUS.
//
// # Library Usage
//
//	p, err := pgward.New(ctx, connString, pgward.Config{
//		Pool: pgward.PoolConfig{MaxConns: 5},
//		Query: pgward.QueryConfig{
//			DefaultTimeoutSeconds:       30,
//			ListDatabasesTimeoutSeconds: 10,
//			ListTablesTimeoutSeconds:    10,
//			DescribeTableTimeoutSeconds: 10,
//		},
//	}, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer p.Close(ctx)
//
//	// Use directly
//	output := p.Query(ctx, pgward.QueryInput{SQL: "SELECT * FROM users LIMIT 10"})
//
//	// Or register as MCP tools
//	pgward.RegisterMCPTools(mcpServer, p)
//
// The safety gate itself lives in internal/safety and is pure: the same
// query and policy always produce the same decision, and rejections are
// returned as data with a stable error kind rather than raised as errors.
package pgward
