package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"huddle/api/internal/content"
	"huddle/api/internal/export"
	"huddle/api/internal/history"
	"huddle/api/internal/search"
	"huddle/api/internal/shortid"
	"huddle/api/internal/store"
)

// memStore is an in-memory dataStore that also serves as the parser's
// directory.
type memStore struct {
	mu      sync.Mutex
	users   map[string]store.User
	tasks   map[string]store.Task
	reports map[string]store.Report

	pingFn  func(context.Context) error
	tasksFn func(context.Context, []string) ([]content.TaskRecord, error)
}

func newMemStore() *memStore {
	return &memStore{
		users:   make(map[string]store.User),
		tasks:   make(map[string]store.Task),
		reports: make(map[string]store.Report),
	}
}

func (m *memStore) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

func (m *memStore) InsertUser(_ context.Context, user store.User) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.CreatedAt = time.Now().UTC()
	m.users[user.ID] = user
	return user, nil
}

func (m *memStore) GetUser(_ context.Context, userID string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[strings.ToLower(userID)]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (m *memStore) InsertTask(_ context.Context, task store.Task) (store.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task.CreatedAt = time.Now().UTC()
	task.UpdatedAt = task.CreatedAt
	m.tasks[task.ID] = task
	return task, nil
}

func (m *memStore) GetTask(_ context.Context, taskID string) (store.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[strings.ToLower(taskID)]
	if !ok {
		return store.Task{}, sql.ErrNoRows
	}
	return task, nil
}

func (m *memStore) UpdateTaskDescription(_ context.Context, taskID, description, searchText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return sql.ErrNoRows
	}
	task.Description = description
	task.SearchText = searchText
	m.tasks[taskID] = task
	return nil
}

func (m *memStore) TaskByShortID(_ context.Context, short string) (store.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := shortid.Decode(short)
	for _, task := range m.tasks {
		if shortid.Prefix(task.ID) == prefix {
			return task, nil
		}
	}
	return store.Task{}, sql.ErrNoRows
}

func (m *memStore) InsertReport(_ context.Context, report store.Report) (store.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	report.CreatedAt = time.Now().UTC()
	report.UpdatedAt = report.CreatedAt
	m.reports[report.ID] = report
	return report, nil
}

func (m *memStore) GetReport(_ context.Context, reportID string) (store.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	report, ok := m.reports[strings.ToLower(reportID)]
	if !ok {
		return store.Report{}, sql.ErrNoRows
	}
	return report, nil
}

func (m *memStore) UpdateReport(_ context.Context, reportID, body, searchText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	report, ok := m.reports[reportID]
	if !ok {
		return sql.ErrNoRows
	}
	report.Content = body
	report.SearchText = searchText
	m.reports[reportID] = report
	return nil
}

func (m *memStore) TasksByIDs(ctx context.Context, ids []string) ([]content.TaskRecord, error) {
	if m.tasksFn != nil {
		return m.tasksFn(ctx, ids)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []content.TaskRecord
	for _, id := range ids {
		if task, ok := m.tasks[strings.ToLower(id)]; ok {
			out = append(out, content.TaskRecord{ID: task.ID, Title: task.Title})
		}
	}
	return out, nil
}

func (m *memStore) UsersByIDs(_ context.Context, ids []string) ([]content.UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []content.UserRecord
	for _, id := range ids {
		if user, ok := m.users[strings.ToLower(id)]; ok {
			out = append(out, content.UserRecord{ID: user.ID, Name: user.Name})
		}
	}
	return out, nil
}

func (m *memStore) TasksByPrefix(_ context.Context, prefixes []string) ([]content.TaskRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []content.TaskRecord
	for _, prefix := range prefixes {
		for _, task := range m.tasks {
			if shortid.Prefix(task.ID) == prefix {
				out = append(out, content.TaskRecord{ID: task.ID, Title: task.Title})
				break
			}
		}
	}
	return out, nil
}

type fakeSearch struct {
	mu      sync.Mutex
	tasks   []search.TaskRecord
	reports []search.ReportRecord
	queries []search.Query
}

func (f *fakeSearch) Search(q search.Query) search.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return search.Response{Results: []search.Result{{Type: search.ResultReport, ID: "r1", Title: "hit"}}, Total: 1, Query: q.Text}
}

func (f *fakeSearch) IndexTask(t search.TaskRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, t)
}

func (f *fakeSearch) IndexReport(r search.ReportRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
}

type fakeRenders struct {
	entries map[string]string
	hits    int
}

func (f *fakeRenders) Get(_ context.Context, format, raw string) (string, bool, error) {
	html, ok := f.entries[format+"\x00"+raw]
	if ok {
		f.hits++
	}
	return html, ok, nil
}

func (f *fakeRenders) Put(_ context.Context, format, raw, html string) error {
	f.entries[format+"\x00"+raw] = html
	return nil
}

type fakeInvalidator struct {
	forgotten []string
}

func (f *fakeInvalidator) Forget(_ context.Context, taskID string) {
	f.forgotten = append(f.forgotten, taskID)
}

type testEnv struct {
	store   *memStore
	search  *fakeSearch
	renders *fakeRenders
	tasks   *fakeInvalidator
	service *Service
	server  *HTTPServer
	logs    *lockedBuffer
}

// lockedBuffer collects log lines written from server goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestEnv(t *testing.T, pdf export.PDFRenderer) *testEnv {
	t.Helper()
	env := &testEnv{
		store:   newMemStore(),
		search:  &fakeSearch{},
		renders: &fakeRenders{entries: make(map[string]string)},
		tasks:   &fakeInvalidator{},
		logs:    &lockedBuffer{},
	}
	logger := zerolog.New(env.logs)
	env.service = New(Dependencies{
		Store:   env.store,
		Parser:  content.NewParser(env.store, logger),
		History: history.New(t.TempDir()),
		Search:  env.search,
		Renders: env.renders,
		Tasks:   env.tasks,
		PDF:     pdf,
		Logger:  logger,
	})
	env.server = NewHTTPServer(env.service, "*", logger)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), "body: %s", rr.Body.String())
	return out
}

func requireStatus(t *testing.T, rr *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, rr.Code, "body: %s", rr.Body.String())
}

func paragraphDoc(children ...content.Node) *content.Node {
	return &content.Node{Type: "doc", Content: []content.Node{{Type: "paragraph", Content: children}}}
}

func textNode(s string) content.Node {
	return content.Node{Type: "text", Text: s}
}

func taskChipNode(id string) content.Node {
	return content.Node{Type: "taskChip", Attrs: map[string]any{content.AttrTaskID: id}}
}

func mentionNode(id string) content.Node {
	return content.Node{Type: "mention", Attrs: map[string]any{"id": id}}
}
