package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppend_WritesNullsAndUTC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()

	loc := time.FixedZone("X", 3600)
	require.NoError(t, l.Append(Entry{
		SourcePath: "docs/report.docx",
		IngestedAt: time.Date(2026, 1, 2, 3, 4, 5, 6, loc),
		Status:     StatusFailed,
		Error:      Ptr("unsupported format: .docx"),
	}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Nil(t, m["doc_id"])
	assert.Nil(t, m["parser"])
	assert.Equal(t, "failed", m["status"])
	assert.Equal(t, "2026-01-02T02:04:05.000000006Z", m["ingested_at"])
	assert.Equal(t, float64(0), m["chunk_count"])
}

func TestAppend_ConcurrentLinesStayWhole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	l, err := Open(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, l.Append(Entry{
				DocID:      Ptr(fmt.Sprintf("doc-%d", i)),
				SourcePath: fmt.Sprintf("f%d.md", i),
				ChunkCount: i,
				Status:     StatusSuccess,
			}))
		}(i)
	}
	wg.Wait()
	require.NoError(t, l.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	sc := bufio.NewScanner(f)
	lines := 0
	for sc.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e), "line %q", sc.Text())
		lines++
	}
	assert.Equal(t, 50, lines)
}

func TestAppend_ReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	for i := 0; i < 2; i++ {
		l, err := Open(path)
		require.NoError(t, err)
		require.NoError(t, l.Append(Entry{SourcePath: "a.md", Status: StatusSuccess}))
		require.NoError(t, l.Close())
	}
	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()
	entries, err := l.Tail(10)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Append(Entry{SourcePath: fmt.Sprintf("f%d", i), Status: StatusSuccess}))
	}

	entries, err := l.Tail(3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "f2", entries[0].SourcePath)
	assert.Equal(t, "f4", entries[2].SourcePath)

	entries, err = l.Tail(0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAppend_AfterClose(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "ledger.jsonl"))
	require.NoError(t, err)
	require.NoError(t, l.Close())
	assert.Error(t, l.Append(Entry{}))
	assert.NoError(t, l.Close())
}
