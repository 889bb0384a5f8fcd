// Package search finds tasks and reports by their text. Meilisearch is used
// while it is healthy; Postgres full-text search covers the rest.
package search

// ResultType identifies the kind of record in a search result.
type ResultType string

const (
	ResultTask   ResultType = "task"
	ResultReport ResultType = "report"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type     ResultType `json:"type"`
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Snippet  string     `json:"snippet"`
	AuthorID string     `json:"authorId,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text     string
	Type     ResultType // empty = all types
	AuthorID string
	Limit    int
	Offset   int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push records into a search index.
type Indexer interface {
	IndexTasks(tasks []TaskRecord) error
	IndexReports(reports []ReportRecord) error
}

// TaskRecord is the data indexed for a task. Body is the description as
// readable text, with references shown by name.
type TaskRecord struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// ReportRecord is the data indexed for a report.
type ReportRecord struct {
	ID        string `json:"id"`
	AuthorID  string `json:"authorId"`
	Body      string `json:"body"`
	UpdatedAt int64  `json:"updatedAt"`
}
