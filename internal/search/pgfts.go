package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; without Postgres nothing else works either.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search runs plainto_tsquery against the generated fts columns of tasks and
// reports, ranked by ts_rank, with ts_headline snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	const tsQuery = "plainto_tsquery('english', $1)"
	args := []any{q.Text}

	var subQueries []string
	if (q.Type == "" || q.Type == ResultTask) && q.AuthorID == "" {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'task'::text AS type, t.id, t.title,
				ts_headline('english', t.search_text, %[1]s, 'MaxFragments=1,MaxWords=30') AS snippet,
				''::text AS author_id,
				ts_rank(t.fts, %[1]s) AS rank
			FROM tasks t
			WHERE t.fts @@ %[1]s`, tsQuery))
	}
	if q.Type == "" || q.Type == ResultReport {
		where := "r.fts @@ " + tsQuery
		if q.AuthorID != "" {
			args = append(args, strings.ToLower(q.AuthorID))
			where += fmt.Sprintf(" AND r.author_id = $%d", len(args))
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'report'::text AS type, r.id, split_part(r.search_text, E'\n', 1) AS title,
				ts_headline('english', r.search_text, %[1]s, 'MaxFragments=1,MaxWords=30') AS snippet,
				r.author_id,
				ts_rank(r.fts, %[1]s) AS rank
			FROM reports r
			WHERE %[2]s`, tsQuery, where))
	}
	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	union := strings.Join(subQueries, " UNION ALL ")
	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub", union)
	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, author_id
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`, union, limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.AuthorID); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords returns every searchable record for a full reindex.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]TaskRecord, []ReportRecord, error) {
	taskRows, err := p.db.QueryContext(ctx, `SELECT id, title, search_text FROM tasks`)
	if err != nil {
		return nil, nil, fmt.Errorf("load tasks: %w", err)
	}
	defer taskRows.Close()

	tasks := make([]TaskRecord, 0)
	for taskRows.Next() {
		var t TaskRecord
		if err := taskRows.Scan(&t.ID, &t.Title, &t.Body); err != nil {
			return nil, nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := taskRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate tasks: %w", err)
	}

	reportRows, err := p.db.QueryContext(ctx, `
		SELECT id, author_id, search_text, EXTRACT(EPOCH FROM updated_at)::bigint
		FROM reports
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load reports: %w", err)
	}
	defer reportRows.Close()

	reports := make([]ReportRecord, 0)
	for reportRows.Next() {
		var r ReportRecord
		if err := reportRows.Scan(&r.ID, &r.AuthorID, &r.Body, &r.UpdatedAt); err != nil {
			return nil, nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, r)
	}
	if err := reportRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate reports: %w", err)
	}
	return tasks, reports, nil
}
