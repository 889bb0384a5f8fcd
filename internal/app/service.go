package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"huddle/api/internal/content"
	"huddle/api/internal/export"
	"huddle/api/internal/history"
	"huddle/api/internal/search"
	"huddle/api/internal/shortid"
	"huddle/api/internal/store"
	"huddle/api/internal/util"
)

const (
	kindReport = "reports"
	kindTask   = "tasks"

	defaultHistoryLimit = 50
	maxTitleLength      = 200
)

type dataStore interface {
	Ping(context.Context) error
	InsertUser(context.Context, store.User) (store.User, error)
	GetUser(context.Context, string) (store.User, error)
	InsertTask(context.Context, store.Task) (store.Task, error)
	GetTask(context.Context, string) (store.Task, error)
	UpdateTaskDescription(context.Context, string, string, string) error
	TaskByShortID(context.Context, string) (store.Task, error)
	InsertReport(context.Context, store.Report) (store.Report, error)
	GetReport(context.Context, string) (store.Report, error)
	UpdateReport(context.Context, string, string, string) error
}

type historyService interface {
	Record(kind, id, content, author string) (history.Commit, error)
	History(kind, id string, limit int) ([]history.Commit, error)
	ContentAt(kind, id, hash string) (string, error)
}

type searchService interface {
	Search(search.Query) search.Response
	IndexTask(search.TaskRecord)
	IndexReport(search.ReportRecord)
}

type renderCache interface {
	Get(ctx context.Context, format, raw string) (string, bool, error)
	Put(ctx context.Context, format, raw, html string) error
}

// taskInvalidator drops cached task lookups. Short ids can start resolving
// to a new task once it exists.
type taskInvalidator interface {
	Forget(ctx context.Context, taskID string)
}

// Dependencies are the collaborators of a Service. Store, Parser and History
// are required.
type Dependencies struct {
	Store   dataStore
	Parser  *content.Parser
	History historyService
	Search  searchService
	Renders renderCache
	Tasks   taskInvalidator
	PDF     export.PDFRenderer
	Logger  zerolog.Logger
}

type Service struct {
	store   dataStore
	parser  *content.Parser
	history historyService
	search  searchService
	renders renderCache
	tasks   taskInvalidator
	export  *export.Service
	logger  zerolog.Logger
}

func New(deps Dependencies) *Service {
	s := &Service{
		store:   deps.Store,
		parser:  deps.Parser,
		history: deps.History,
		search:  deps.Search,
		renders: deps.Renders,
		tasks:   deps.Tasks,
		logger:  deps.Logger,
	}
	if s.search == nil {
		s.search = search.NewService(nil, nil, deps.Logger)
	}
	s.export = export.NewService(s, deps.Parser, deps.PDF)
	return s
}

type CreateUserInput struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarKey string `json:"avatarKey"`
}

type CreateTaskInput struct {
	Title string        `json:"title"`
	Doc   *content.Node `json:"doc"`
}

type CreateReportInput struct {
	AuthorID string        `json:"authorId"`
	Doc      *content.Node `json:"doc"`
}

// Rendered is stored canonical text together with its markup.
type Rendered struct {
	Content  string `json:"content"`
	HTML     string `json:"html"`
	Degraded bool   `json:"degraded"`
}

type TaskView struct {
	ID        string    `json:"id"`
	ShortID   string    `json:"shortId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Rendered
}

type ReportView struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Rendered
}

type UserView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	AvatarKey string    `json:"avatarKey,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type ShortIDInfo struct {
	Token   string `json:"token"`
	ShortID string `json:"shortId"`
	FullID  string `json:"fullId,omitempty"`
	Prefix  string `json:"prefix"`
	IsShort bool   `json:"isShort"`
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Render parses raw content. Non-degraded results are kept in the render
// cache when one is configured; degraded results are never cached.
func (s *Service) Render(ctx context.Context, raw, format string) content.Result {
	cacheFormat := strings.ToLower(strings.TrimSpace(format))
	if cacheFormat == "" {
		cacheFormat = "auto"
	}
	if s.renders != nil {
		html, ok, err := s.renders.Get(ctx, cacheFormat, raw)
		if err != nil {
			s.logger.Warn().Err(err).Msg("render cache read failed")
		} else if ok {
			return content.Result{Status: content.StatusRendered, HTML: html}
		}
	}

	res := s.parser.ParseDocument(ctx, content.ParseFormat(format, raw))
	if s.renders != nil && !res.Degraded() {
		if err := s.renders.Put(ctx, cacheFormat, raw, res.HTML); err != nil {
			s.logger.Warn().Err(err).Msg("render cache write failed")
		}
	}
	return res
}

// Serialize turns an editor tree into canonical stored text.
func (s *Service) Serialize(doc *content.Node) string {
	return content.Serialize(doc)
}

// NewBinding starts a live render session for one editor.
func (s *Service) NewBinding(publish func(generation uint64, res content.Result)) *content.Binding {
	return content.NewBinding(s.parser, publish)
}

func (s *Service) DescribeShortID(token string) ShortIDInfo {
	token = strings.TrimSpace(token)
	info := ShortIDInfo{Token: token, IsShort: shortid.IsShortForm(token)}
	if info.IsShort {
		info.ShortID = token
		info.Prefix = shortid.Decode(token)
		return info
	}
	info.ShortID = shortid.Encode(token)
	info.Prefix = shortid.Prefix(token)
	if info.ShortID != "" {
		info.FullID = strings.ToLower(token)
	}
	return info
}

func (s *Service) TaskByShortID(ctx context.Context, short string) (TaskView, error) {
	if !shortid.IsShortForm(short) || shortid.Decode(short) == "" {
		return TaskView{}, validationError("shortId must be a decimal short id")
	}
	task, err := s.store.TaskByShortID(ctx, short)
	if err != nil {
		return TaskView{}, err
	}
	return s.taskView(ctx, task), nil
}

func (s *Service) CreateUser(ctx context.Context, input CreateUserInput) (UserView, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return UserView{}, validationError("name is required")
	}
	user, err := s.store.InsertUser(ctx, store.User{
		ID:        util.NewID(),
		Name:      name,
		Email:     strings.TrimSpace(input.Email),
		AvatarKey: strings.TrimSpace(input.AvatarKey),
	})
	if err != nil {
		return UserView{}, fmt.Errorf("insert user: %w", err)
	}
	return userView(user), nil
}

func (s *Service) GetUser(ctx context.Context, userID string) (UserView, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return UserView{}, err
	}
	return userView(user), nil
}

func (s *Service) CreateTask(ctx context.Context, input CreateTaskInput) (TaskView, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return TaskView{}, validationError("title is required")
	}
	if len([]rune(title)) > maxTitleLength {
		return TaskView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is too long", map[string]any{"max": maxTitleLength})
	}

	description := content.Serialize(input.Doc)
	task, err := s.store.InsertTask(ctx, store.Task{
		ID:          util.NewID(),
		Title:       title,
		Description: description,
		SearchText:  s.searchText(ctx, description),
	})
	if err != nil {
		return TaskView{}, fmt.Errorf("insert task: %w", err)
	}
	if s.tasks != nil {
		s.tasks.Forget(ctx, task.ID)
	}
	s.recordHistory(kindTask, task.ID, description, "")
	s.search.IndexTask(search.TaskRecord{ID: task.ID, Title: task.Title, Body: task.SearchText})
	return s.taskView(ctx, task), nil
}

func (s *Service) GetTask(ctx context.Context, taskID string) (TaskView, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return TaskView{}, err
	}
	return s.taskView(ctx, task), nil
}

func (s *Service) UpdateTaskDescription(ctx context.Context, taskID string, doc *content.Node) (TaskView, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return TaskView{}, err
	}
	description := content.Serialize(doc)
	searchText := s.searchText(ctx, description)
	if err := s.store.UpdateTaskDescription(ctx, task.ID, description, searchText); err != nil {
		return TaskView{}, fmt.Errorf("update task description: %w", err)
	}
	task.Description = description
	task.SearchText = searchText
	task.UpdatedAt = time.Now().UTC()

	s.recordHistory(kindTask, task.ID, description, "")
	s.search.IndexTask(search.TaskRecord{ID: task.ID, Title: task.Title, Body: searchText})
	return s.taskView(ctx, task), nil
}

func (s *Service) CreateReport(ctx context.Context, input CreateReportInput) (ReportView, error) {
	authorID := strings.TrimSpace(input.AuthorID)
	if authorID == "" {
		return ReportView{}, validationError("authorId is required")
	}
	author, err := s.store.GetUser(ctx, authorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ReportView{}, domainError(http.StatusUnprocessableEntity, "UNKNOWN_AUTHOR", "authorId does not name a user", nil)
		}
		return ReportView{}, fmt.Errorf("get author: %w", err)
	}

	body := content.Serialize(input.Doc)
	report, err := s.store.InsertReport(ctx, store.Report{
		ID:         util.NewID(),
		AuthorID:   author.ID,
		Content:    body,
		SearchText: s.searchText(ctx, body),
	})
	if err != nil {
		return ReportView{}, fmt.Errorf("insert report: %w", err)
	}
	s.recordHistory(kindReport, report.ID, body, author.Name)
	s.indexReport(report)
	return s.reportView(ctx, report), nil
}

func (s *Service) GetReport(ctx context.Context, reportID string) (ReportView, error) {
	report, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return ReportView{}, err
	}
	return s.reportView(ctx, report), nil
}

// UpdateReport replaces a report's content. Concurrent saves are not merged;
// the last one wins and every save is kept in history.
func (s *Service) UpdateReport(ctx context.Context, reportID string, doc *content.Node) (ReportView, error) {
	report, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return ReportView{}, err
	}
	body := content.Serialize(doc)
	searchText := s.searchText(ctx, body)
	if err := s.store.UpdateReport(ctx, report.ID, body, searchText); err != nil {
		return ReportView{}, fmt.Errorf("update report: %w", err)
	}
	report.Content = body
	report.SearchText = searchText
	report.UpdatedAt = time.Now().UTC()

	s.recordHistory(kindReport, report.ID, body, s.authorName(ctx, report.AuthorID))
	s.indexReport(report)
	return s.reportView(ctx, report), nil
}

func (s *Service) ReportHistory(ctx context.Context, reportID string, limit int) ([]history.Commit, error) {
	report, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	commits, err := s.history.History(kindReport, report.ID, limit)
	if errors.Is(err, history.ErrNoHistory) {
		return []history.Commit{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("report history: %w", err)
	}
	return commits, nil
}

// ReportVersion renders the report as it was saved in the given version.
func (s *Service) ReportVersion(ctx context.Context, reportID, hash string) (Rendered, error) {
	report, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return Rendered{}, err
	}
	body, err := s.history.ContentAt(kindReport, report.ID, hash)
	if errors.Is(err, history.ErrNoHistory) || errors.Is(err, history.ErrUnknownVersion) {
		return Rendered{}, domainError(http.StatusNotFound, "VERSION_NOT_FOUND", "Version not found", nil)
	}
	if err != nil {
		return Rendered{}, fmt.Errorf("report version: %w", err)
	}
	return s.render(ctx, body), nil
}

func (s *Service) ExportReport(ctx context.Context, reportID string, format export.Format) (*export.Result, error) {
	res, err := s.export.Export(ctx, export.Request{ReportID: reportID, Format: format})
	switch {
	case errors.Is(err, export.ErrPDFDependencyMissing):
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF export is not available on this server", nil)
	case errors.Is(err, export.ErrUnsupportedFormat):
		return nil, domainError(http.StatusBadRequest, "UNSUPPORTED_FORMAT", err.Error(), nil)
	case err != nil:
		return nil, fmt.Errorf("export report: %w", err)
	}
	return res, nil
}

// ReportForExport satisfies export.ReportSource.
func (s *Service) ReportForExport(ctx context.Context, reportID string) (export.Report, error) {
	report, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return export.Report{}, err
	}
	return export.Report{
		ID:         report.ID,
		AuthorName: s.authorName(ctx, report.AuthorID),
		Content:    report.Content,
		UpdatedAt:  report.UpdatedAt,
	}, nil
}

func (s *Service) Search(q search.Query) search.Response {
	return s.search.Search(q)
}

// searchText is the indexed form of canonical text: references shown by
// their titles and names, markup stripped.
func (s *Service) searchText(ctx context.Context, canonical string) string {
	res := s.parser.Parse(ctx, canonical)
	if res.Degraded() {
		return canonical
	}
	return search.TextFromMarkup(res.HTML)
}

func (s *Service) authorName(ctx context.Context, userID string) string {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("author lookup failed")
		}
		return ""
	}
	return user.Name
}

// recordHistory is best effort: a failed commit never fails the save.
func (s *Service) recordHistory(kind, id, body, author string) {
	if s.history == nil {
		return
	}
	if author == "" {
		author = "huddle"
	}
	if _, err := s.history.Record(kind, id, body, author); err != nil {
		s.logger.Error().Err(err).Str("kind", kind).Str("id", id).Msg("history record failed")
	}
}

func (s *Service) indexReport(report store.Report) {
	s.search.IndexReport(search.ReportRecord{
		ID:        report.ID,
		AuthorID:  report.AuthorID,
		Body:      report.SearchText,
		UpdatedAt: report.UpdatedAt.Unix(),
	})
}

func (s *Service) render(ctx context.Context, canonical string) Rendered {
	res := s.Render(ctx, canonical, "")
	return Rendered{Content: canonical, HTML: res.HTML, Degraded: res.Degraded()}
}

func (s *Service) taskView(ctx context.Context, task store.Task) TaskView {
	return TaskView{
		ID:        task.ID,
		ShortID:   shortid.Encode(task.ID),
		Title:     task.Title,
		CreatedAt: task.CreatedAt,
		UpdatedAt: task.UpdatedAt,
		Rendered:  s.render(ctx, task.Description),
	}
}

func (s *Service) reportView(ctx context.Context, report store.Report) ReportView {
	return ReportView{
		ID:        report.ID,
		AuthorID:  report.AuthorID,
		CreatedAt: report.CreatedAt,
		UpdatedAt: report.UpdatedAt,
		Rendered:  s.render(ctx, report.Content),
	}
}

func userView(user store.User) UserView {
	return UserView{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		AvatarKey: user.AvatarKey,
		CreatedAt: user.CreatedAt,
	}
}
