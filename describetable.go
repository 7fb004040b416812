package pgward

import (
	"context"
	"fmt"
	"regexp"
	"time"
)

// Table names are interpolated nowhere; the identifier check exists so an
// obviously malformed name fails fast with a clear message instead of a
// Postgres error.
var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const describeColumnsSQL = `
SELECT
    c.column_name,
    c.data_type,
    c.is_nullable,
    c.column_default,
    c.character_maximum_length,
    CASE WHEN pk.column_name IS NOT NULL THEN true ELSE false END AS is_primary_key
FROM information_schema.columns c
LEFT JOIN (
    SELECT kcu.column_name
    FROM information_schema.table_constraints tc
    JOIN information_schema.key_column_usage kcu
        ON tc.constraint_name = kcu.constraint_name
        AND tc.table_schema = kcu.table_schema
    WHERE tc.constraint_type = 'PRIMARY KEY'
        AND tc.table_schema = 'public'
        AND tc.table_name = $1
) pk ON pk.column_name = c.column_name
WHERE c.table_schema = 'public'
  AND c.table_name = $1
ORDER BY c.ordinal_position;
`

// DescribeTable returns the column layout of a table in the public schema.
// Does NOT go through the safety gate pipeline.
func (p *Pgward) DescribeTable(ctx context.Context, input DescribeTableInput) (*DescribeTableOutput, error) {
	startTime := time.Now()

	if !identPattern.MatchString(input.Table) {
		return nil, fmt.Errorf("invalid table name: %q", input.Table)
	}

	// 1. Acquire semaphore
	select {
	case p.semaphore <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("DescribeTable: failed to acquire query slot: all %d connection slots are in use, context cancelled while waiting: %w", cap(p.semaphore), ctx.Err())
	}
	defer func() { <-p.semaphore }()

	// 2. Apply configurable timeout
	queryCtx, cancel := context.WithTimeout(ctx, time.Duration(p.config.Query.DescribeTableTimeoutSeconds)*time.Second)
	defer cancel()

	// 3. Acquire connection and execute
	conn, err := p.pool.Acquire(queryCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(queryCtx, describeColumnsSQL, input.Table)
	if err != nil {
		return nil, fmt.Errorf("DescribeTable query failed: %w", err)
	}
	defer rows.Close()

	var columns []ColumnInfo
	for rows.Next() {
		var (
			name       string
			dataType   string
			isNullable string
			colDefault *string
			charMaxLen *int32
			isPK       bool
		)
		if err := rows.Scan(&name, &dataType, &isNullable, &colDefault, &charMaxLen, &isPK); err != nil {
			return nil, fmt.Errorf("DescribeTable scan failed: %w", err)
		}

		col := ColumnInfo{
			Name:         name,
			Type:         dataType,
			Nullable:     isNullable == "YES",
			IsPrimaryKey: isPK,
		}
		if charMaxLen != nil {
			col.Type = fmt.Sprintf("%s(%d)", dataType, *charMaxLen)
		}
		if colDefault != nil {
			col.Default = *colDefault
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("DescribeTable rows error: %w", err)
	}

	if columns == nil {
		return nil, fmt.Errorf("table not found: %s", input.Table)
	}

	p.logger.Info().
		Str("table", input.Table).
		Dur("duration", time.Since(startTime)).
		Int("column_count", len(columns)).
		Msg("DescribeTable executed")

	return &DescribeTableOutput{Table: input.Table, Columns: columns}, nil
}
