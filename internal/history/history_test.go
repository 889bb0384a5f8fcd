package history

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reportID = "44444444-4444-4444-4444-444444444444"

func TestRecordAndHistory(t *testing.T) {
	svc := New(t.TempDir())

	first, err := svc.Record("report", reportID, "Fixed #TASK-99\n- Reviewed PR", "Dana Scully")
	require.NoError(t, err)
	assert.Len(t, first.Hash, 7)
	assert.Equal(t, "Dana Scully", first.Author)
	assert.Equal(t, 2, first.Added)

	second, err := svc.Record("report", reportID, "Fixed #TASK-99\n- Reviewed PR\n- Deployed", "Dana Scully")
	require.NoError(t, err)
	assert.NotEqual(t, first.Hash, second.Hash)
	assert.Positive(t, second.Added)

	history, err := svc.History("report", reportID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.Hash, history[0].Hash)
	assert.Equal(t, first.Hash, history[1].Hash)

	limited, err := svc.History("report", reportID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	old, err := svc.ContentAt("report", reportID, first.Hash)
	require.NoError(t, err)
	assert.Equal(t, "Fixed #TASK-99\n- Reviewed PR", old)
}

func TestRecordUnchangedContentKeepsHead(t *testing.T) {
	svc := New(t.TempDir())

	first, err := svc.Record("task", "t1", "same", "ana")
	require.NoError(t, err)
	again, err := svc.Record("task", "t1", "same", "ana")
	require.NoError(t, err)
	assert.Equal(t, first.Hash, again.Hash)

	history, err := svc.History("task", "t1", 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestHistoryOfUnknownRecord(t *testing.T) {
	svc := New(t.TempDir())
	_, err := svc.History("report", "missing", 0)
	assert.ErrorIs(t, err, ErrNoHistory)
	_, err = svc.ContentAt("report", "missing", "abc1234")
	assert.ErrorIs(t, err, ErrNoHistory)
}

func TestContentAtUnknownVersion(t *testing.T) {
	svc := New(t.TempDir())
	_, err := svc.Record("report", "r1", "text", "ana")
	require.NoError(t, err)

	_, err = svc.ContentAt("report", "r1", "deadbee")
	assert.ErrorIs(t, err, ErrUnknownVersion)
}

func TestRecordRejectsPathTraversal(t *testing.T) {
	svc := New(t.TempDir())
	_, err := svc.Record("report", "../escape", "x", "ana")
	assert.Error(t, err)
	_, err = svc.Record("..", "id", "x", "ana")
	assert.Error(t, err)
}

func TestConcurrentSavesLastWriteWins(t *testing.T) {
	svc := New(t.TempDir())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Record("report", reportID, fmt.Sprintf("version %d", i), "ana")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	history, err := svc.History("report", reportID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 8)
}

func TestSanitizeEmail(t *testing.T) {
	tests := map[string]string{
		"Dana Scully": "Dana.Scully",
		"a_b-c":       "a.b.c",
		"!!!":         "user",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeEmail(in), in)
	}
}
