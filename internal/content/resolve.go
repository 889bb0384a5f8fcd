package content

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"huddle/api/internal/shortid"
)

// TaskRecord is the part of a task a chip needs.
type TaskRecord struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// UserRecord is the part of a user profile a chip needs.
type UserRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
}

// Directory resolves referenced entities in batches. Implementations return
// only the records they find; missing ids are not an error.
type Directory interface {
	TasksByIDs(ctx context.Context, ids []string) ([]TaskRecord, error)
	UsersByIDs(ctx context.Context, ids []string) ([]UserRecord, error)
}

// PrefixDirectory is implemented by directories that can resolve short ids.
// Each prefix is six lowercase hex digits; the first task whose dashless id
// starts with it is returned.
type PrefixDirectory interface {
	Directory
	TasksByPrefix(ctx context.Context, prefixes []string) ([]TaskRecord, error)
}

type lookup struct {
	tasks map[string]TaskRecord
	users map[string]UserRecord
}

func (l lookup) task(id string) (TaskRecord, bool) {
	rec, ok := l.tasks[strings.ToLower(id)]
	return rec, ok
}

func (l lookup) user(id string) (UserRecord, bool) {
	rec, ok := l.users[strings.ToLower(id)]
	return rec, ok
}

// resolve issues at most one lookup per id class and runs them concurrently.
func resolve(ctx context.Context, dir Directory, tokens []Token) (lookup, error) {
	result := lookup{
		tasks: make(map[string]TaskRecord),
		users: make(map[string]UserRecord),
	}
	if dir == nil || len(tokens) == 0 {
		return result, nil
	}

	var taskIDs, shortTaskIDs, userIDs []string
	seen := make(map[string]struct{})
	for _, tok := range tokens {
		key := strings.ToLower(tok.ID)
		if tok.Kind.IsTask() {
			key = "t:" + key
		} else {
			key = "u:" + key
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		switch {
		case !tok.Kind.IsTask():
			if IsFullID(tok.ID) {
				userIDs = append(userIDs, strings.ToLower(tok.ID))
			}
		case shortid.IsShortForm(tok.ID):
			shortTaskIDs = append(shortTaskIDs, tok.ID)
		default:
			// Full ids and legacy ids are both looked up as written.
			taskIDs = append(taskIDs, strings.ToLower(tok.ID))
		}
	}

	var (
		foundTasks  []TaskRecord
		prefixTasks []TaskRecord
		foundUsers  []UserRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	if len(taskIDs) > 0 {
		g.Go(guarded(func() error {
			records, err := dir.TasksByIDs(gctx, taskIDs)
			if err != nil {
				return fmt.Errorf("lookup tasks: %w", err)
			}
			foundTasks = records
			return nil
		}))
	}
	if pd, ok := dir.(PrefixDirectory); ok && len(shortTaskIDs) > 0 {
		prefixes := make([]string, 0, len(shortTaskIDs))
		for _, short := range shortTaskIDs {
			if prefix := shortid.Decode(short); prefix != "" {
				prefixes = append(prefixes, prefix)
			}
		}
		if len(prefixes) > 0 {
			g.Go(guarded(func() error {
				records, err := pd.TasksByPrefix(gctx, prefixes)
				if err != nil {
					return fmt.Errorf("lookup tasks by prefix: %w", err)
				}
				prefixTasks = records
				return nil
			}))
		}
	}
	if len(userIDs) > 0 {
		g.Go(guarded(func() error {
			records, err := dir.UsersByIDs(gctx, userIDs)
			if err != nil {
				return fmt.Errorf("lookup users: %w", err)
			}
			foundUsers = records
			return nil
		}))
	}
	if err := g.Wait(); err != nil {
		return lookup{}, err
	}

	for _, rec := range foundTasks {
		result.tasks[strings.ToLower(rec.ID)] = rec
	}
	byPrefix := make(map[string]TaskRecord, len(prefixTasks))
	for _, rec := range prefixTasks {
		prefix := shortid.Prefix(rec.ID)
		if _, taken := byPrefix[prefix]; prefix == "" || taken {
			continue
		}
		byPrefix[prefix] = rec
	}
	for _, short := range shortTaskIDs {
		if rec, ok := byPrefix[shortid.Decode(short)]; ok {
			result.tasks[short] = rec
		}
	}
	for _, rec := range foundUsers {
		result.users[strings.ToLower(rec.ID)] = rec
	}
	return result, nil
}

// guarded turns a panic in a lookup into an error so it reaches the parse
// fallback instead of crashing the process.
func guarded(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("lookup panic: %v", r)
			}
		}()
		return fn()
	}
}
