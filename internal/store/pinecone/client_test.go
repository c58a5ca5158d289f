package pinecone

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgallion1/vecingest/internal/remote"
	"github.com/dgallion1/vecingest/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records(n int) []store.Record {
	out := make([]store.Record, n)
	for i := range out {
		out[i] = store.Record{
			ID:       "doc-" + string(rune('a'+i%26)),
			Vector:   []float32{float32(i), 1},
			Metadata: store.Metadata{DocID: "doc", ChunkIndex: i},
		}
	}
	return out
}

func TestUpsert_BatchesAndNamespace(t *testing.T) {
	var mu sync.Mutex
	var batches []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vectors/upsert", r.URL.Path)
		assert.Equal(t, "pc-key", r.Header.Get("Api-Key"))
		var req upsertRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "docs", req.Namespace)
		mu.Lock()
		batches = append(batches, len(req.Vectors))
		mu.Unlock()
		w.Write([]byte(`{"upsertedCount":1}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "pc-key", IndexName: "idx", Host: srv.URL, Namespace: "docs"}, nil)
	defer c.Close()

	require.NoError(t, c.Upsert(context.Background(), records(250)))
	assert.Equal(t, []int{100, 100, 50}, batches)
}

func TestUpsert_SplitsLargeVectorsBySize(t *testing.T) {
	var mu sync.Mutex
	var sizes, counts []int
	seen := map[string]bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req struct {
			Vectors []struct {
				ID     string    `json:"id"`
				Values []float32 `json:"values"`
			} `json:"vectors"`
		}
		require.NoError(t, json.Unmarshal(body, &req))
		mu.Lock()
		sizes = append(sizes, len(body))
		counts = append(counts, len(req.Vectors))
		for _, v := range req.Vectors {
			assert.Len(t, v.Values, 3072)
			seen[v.ID] = true
		}
		mu.Unlock()
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	recs := make([]store.Record, 100)
	for i := range recs {
		vec := make([]float32, 3072)
		for j := range vec {
			vec[j] = -0.012345678 * float32(j%97+1)
		}
		recs[i] = store.Record{
			ID:       fmt.Sprintf("doc-%d", i),
			Vector:   vec,
			Metadata: store.Metadata{DocID: "doc", ChunkIndex: i, Text: strings.Repeat("text ", 200)},
		}
	}

	c := NewClient(Config{APIKey: "k", IndexName: "idx", Host: srv.URL, Namespace: "docs"}, nil)
	require.NoError(t, c.Upsert(context.Background(), recs))

	require.Greater(t, len(sizes), 1)
	total := 0
	for i, n := range sizes {
		assert.LessOrEqual(t, n, maxUpsertBytes, "request %d", i)
		total += counts[i]
	}
	assert.Equal(t, 100, total)
	assert.Len(t, seen, 100)
}

func TestUpsert_Errors(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusBadRequest)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
		w.Write([]byte(`{"message":"nope"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", IndexName: "idx", Host: srv.URL}, nil)

	err := c.Upsert(context.Background(), records(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
	var re *remote.RetryableError
	assert.False(t, errors.As(err, &re))

	status.Store(http.StatusServiceUnavailable)
	err = c.Upsert(context.Background(), records(1))
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusServiceUnavailable, re.StatusCode)
}

func TestUpsert_EmptyIsNoop(t *testing.T) {
	c := NewClient(Config{APIKey: "k", IndexName: "idx"}, nil)
	assert.NoError(t, c.Upsert(context.Background(), nil))
}

func TestUpsert_DiscoversHost(t *testing.T) {
	data := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer data.Close()

	control := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/indexes/idx", r.URL.Path)
		json.NewEncoder(w).Encode(indexDescription{Name: "idx", Host: data.URL, Status: indexStatus{Ready: true}})
	}))
	defer control.Close()

	c := NewClient(Config{APIKey: "k", IndexName: "idx", ControlURL: control.URL}, nil)
	require.NoError(t, c.Upsert(context.Background(), records(2)))
}

func TestEnsureIndex_CreatesAndWaits(t *testing.T) {
	var created atomic.Bool
	var describes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/indexes/idx":
			if !created.Load() {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			n := describes.Add(1)
			json.NewEncoder(w).Encode(indexDescription{
				Name: "idx", Dimension: 8, Host: "idx-abc.svc.pinecone.io",
				Status: indexStatus{Ready: n >= 2, State: "Initializing"},
			})
		case r.Method == http.MethodPost && r.URL.Path == "/indexes":
			var req createIndexRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "idx", req.Name)
			assert.Equal(t, 8, req.Dimension)
			assert.Equal(t, "cosine", req.Metric)
			assert.Equal(t, "aws", req.Spec.Serverless.Cloud)
			assert.Equal(t, "us-east-1", req.Spec.Serverless.Region)
			created.Store(true)
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{}`))
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", IndexName: "idx", ControlURL: srv.URL}, nil)
	c.pollInterval = 5 * time.Millisecond

	require.NoError(t, c.EnsureIndex(context.Background(), 8))
	assert.True(t, created.Load())
	host, err := c.dataHost(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://idx-abc.svc.pinecone.io", host)
}

func TestEnsureIndex_DimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(indexDescription{Name: "idx", Dimension: 1536, Status: indexStatus{Ready: true}})
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", IndexName: "idx", ControlURL: srv.URL}, nil)
	err := c.EnsureIndex(context.Background(), 3072)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension 1536")
}
