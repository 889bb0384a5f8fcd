package search

import (
	"context"

	"github.com/rs/zerolog"
)

// Backend is a search engine that also accepts index updates.
type Backend interface {
	Searcher
	Indexer
}

// Service tries the primary backend while it is healthy and falls back to
// the secondary searcher.
type Service struct {
	primary  Backend
	fallback Searcher
	loader   func(context.Context) ([]TaskRecord, []ReportRecord, error)
	logger   zerolog.Logger
}

// NewService wires Meilisearch (may be nil) in front of Postgres FTS.
func NewService(meili *Meili, pgfts *PgFTS, logger zerolog.Logger) *Service {
	s := &Service{logger: logger}
	if meili != nil {
		s.primary = meili
	}
	if pgfts != nil {
		s.fallback = pgfts
		s.loader = pgfts.LoadAllRecords
	}
	return s
}

func (s *Service) Search(q Query) Response {
	if s.primary != nil && s.primary.Healthy() {
		results, total, err := s.primary.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.Warn().Err(err).Msg("search: primary failed, falling back")
	}

	if s.fallback == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}
	results, total, err := s.fallback.Search(q)
	if err != nil {
		s.logger.Error().Err(err).Msg("search: fallback failed")
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexTask pushes a task to the primary index in the background.
func (s *Service) IndexTask(t TaskRecord) {
	s.async("index task", t.ID, func(b Backend) error { return b.IndexTasks([]TaskRecord{t}) })
}

// IndexReport pushes a report to the primary index in the background.
func (s *Service) IndexReport(r ReportRecord) {
	s.async("index report", r.ID, func(b Backend) error { return b.IndexReports([]ReportRecord{r}) })
}

func (s *Service) async(op, id string, fn func(Backend) error) {
	if s.primary == nil || !s.primary.Healthy() {
		return
	}
	go func() {
		if err := fn(s.primary); err != nil {
			s.logger.Warn().Err(err).Str("id", id).Msg("search: " + op)
		}
	}()
}

// ReindexAll reloads every record from Postgres into the primary index.
func (s *Service) ReindexAll(ctx context.Context) {
	if s.primary == nil || !s.primary.Healthy() || s.loader == nil {
		return
	}
	tasks, reports, err := s.loader(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("search: reindex load failed")
		return
	}
	if err := s.primary.IndexTasks(tasks); err != nil {
		s.logger.Error().Err(err).Msg("search: reindex tasks")
	}
	if err := s.primary.IndexReports(reports); err != nil {
		s.logger.Error().Err(err).Msg("search: reindex reports")
	}
	s.logger.Info().Int("tasks", len(tasks)).Int("reports", len(reports)).Msg("search: reindexed")
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
