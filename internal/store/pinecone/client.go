// Package pinecone is a REST client for a Pinecone serverless index.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/vecingest/internal/remote"
	"github.com/dgallion1/vecingest/internal/store"
)

const (
	DefaultControlURL = "https://api.pinecone.io"
	apiVersion        = "2024-07"
	upsertBatchSize   = 100
	// Pinecone rejects upsert requests larger than 2 MiB.
	maxUpsertBytes = 2 << 20
)

// Config describes one index.
type Config struct {
	APIKey     string
	IndexName  string
	Host       string // data plane host; discovered from the control plane when empty
	Namespace  string
	Cloud      string
	Region     string
	ControlURL string
	Timeout    time.Duration
}

// Client implements store.VectorStore and store.Bootstrapper.
type Client struct {
	cfg          Config
	httpClient   *http.Client
	log          *slog.Logger
	pollInterval time.Duration
	readyTimeout time.Duration

	mu   sync.Mutex
	host string
}

var (
	_ store.VectorStore  = (*Client)(nil)
	_ store.Bootstrapper = (*Client)(nil)
)

func NewClient(cfg Config, log *slog.Logger) *Client {
	if cfg.ControlURL == "" {
		cfg.ControlURL = DefaultControlURL
	}
	if cfg.Cloud == "" {
		cfg.Cloud = "aws"
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		cfg:          cfg,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		log:          log.With("component", "pinecone", "index", cfg.IndexName),
		pollInterval: 2 * time.Second,
		readyTimeout: 5 * time.Minute,
		host:         normalizeHost(cfg.Host),
	}
}

type vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata store.Metadata `json:"metadata"`
}

type upsertRequest struct {
	Vectors   []json.RawMessage `json:"vectors"`
	Namespace string            `json:"namespace,omitempty"`
}

// Upsert writes records in batches of at most 100 vectors whose encoded
// request stays under maxUpsertBytes. A single oversized vector is still
// sent alone and the API error is returned.
func (c *Client) Upsert(ctx context.Context, records []store.Record) error {
	if len(records) == 0 {
		return nil
	}
	host, err := c.dataHost(ctx)
	if err != nil {
		return err
	}

	ns, _ := json.Marshal(c.cfg.Namespace)
	overhead := len(`{"vectors":[],"namespace":}`) + len(ns)
	batch := make([]json.RawMessage, 0, upsertBatchSize)
	size := overhead

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		req := upsertRequest{Namespace: c.cfg.Namespace, Vectors: batch}
		if err := c.do(ctx, http.MethodPost, host+"/vectors/upsert", req, nil, "upsert"); err != nil {
			return err
		}
		c.log.Debug("upserted batch", "count", len(batch), "bytes", size)
		batch = make([]json.RawMessage, 0, upsertBatchSize)
		size = overhead
		return nil
	}

	for _, r := range records {
		b, err := json.Marshal(vector{ID: r.ID, Values: r.Vector, Metadata: r.Metadata})
		if err != nil {
			return fmt.Errorf("marshal vector %s: %w", r.ID, err)
		}
		if len(batch) == upsertBatchSize || (len(batch) > 0 && size+1+len(b) > maxUpsertBytes) {
			if err := flush(); err != nil {
				return err
			}
		}
		if len(batch) > 0 {
			size++
		}
		batch = append(batch, b)
		size += len(b)
	}
	return flush()
}

type indexStatus struct {
	Ready bool   `json:"ready"`
	State string `json:"state"`
}

type indexDescription struct {
	Name      string      `json:"name"`
	Dimension int         `json:"dimension"`
	Metric    string      `json:"metric"`
	Host      string      `json:"host"`
	Status    indexStatus `json:"status"`
}

type createIndexRequest struct {
	Name      string    `json:"name"`
	Dimension int       `json:"dimension"`
	Metric    string    `json:"metric"`
	Spec      indexSpec `json:"spec"`
}

type indexSpec struct {
	Serverless serverlessSpec `json:"serverless"`
}

type serverlessSpec struct {
	Cloud  string `json:"cloud"`
	Region string `json:"region"`
}

var errIndexNotFound = errors.New("index not found")

// EnsureIndex creates the serverless index if it does not exist and waits
// until it reports ready.
func (c *Client) EnsureIndex(ctx context.Context, dimension int) error {
	desc, err := c.describeIndex(ctx)
	switch {
	case errors.Is(err, errIndexNotFound):
		c.log.Info("creating index", "dimension", dimension, "cloud", c.cfg.Cloud, "region", c.cfg.Region)
		req := createIndexRequest{
			Name:      c.cfg.IndexName,
			Dimension: dimension,
			Metric:    "cosine",
			Spec:      indexSpec{Serverless: serverlessSpec{Cloud: c.cfg.Cloud, Region: c.cfg.Region}},
		}
		if err := c.do(ctx, http.MethodPost, c.cfg.ControlURL+"/indexes", req, nil, "create index"); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		if desc.Dimension != 0 && desc.Dimension != dimension {
			return fmt.Errorf("index %s has dimension %d, want %d", c.cfg.IndexName, desc.Dimension, dimension)
		}
		if desc.Status.Ready {
			c.setHost(desc.Host)
			c.log.Info("index ready", "host", desc.Host)
			return nil
		}
	}
	return c.waitReady(ctx)
}

func (c *Client) waitReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.readyTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		desc, err := c.describeIndex(ctx)
		if err != nil && !errors.Is(err, errIndexNotFound) {
			return err
		}
		if err == nil && desc.Status.Ready {
			c.setHost(desc.Host)
			c.log.Info("index ready", "host", desc.Host)
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for index %s: %w", c.cfg.IndexName, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) describeIndex(ctx context.Context) (*indexDescription, error) {
	u := c.cfg.ControlURL + "/indexes/" + url.PathEscape(c.cfg.IndexName)
	var desc indexDescription
	if err := c.do(ctx, http.MethodGet, u, nil, &desc, "describe index"); err != nil {
		return nil, err
	}
	return &desc, nil
}

func (c *Client) dataHost(ctx context.Context) (string, error) {
	c.mu.Lock()
	host := c.host
	c.mu.Unlock()
	if host != "" {
		return host, nil
	}
	desc, err := c.describeIndex(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve index host: %w", err)
	}
	if desc.Host == "" {
		return "", fmt.Errorf("index %s has no host yet", c.cfg.IndexName)
	}
	c.setHost(desc.Host)
	return normalizeHost(desc.Host), nil
}

func (c *Client) setHost(h string) {
	c.mu.Lock()
	c.host = normalizeHost(h)
	c.mu.Unlock()
}

func (c *Client) do(ctx context.Context, method, u string, in, out any, op string) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", op, err)
		}
		body = bytes.NewReader(b)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Api-Key", c.cfg.APIKey)
	httpReq.Header.Set("X-Pinecone-API-Version", apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return &remote.RetryableError{Message: fmt.Sprintf("%s: %v", op, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && method == http.MethodGet {
		return errIndexNotFound
	}
	if err := remote.CheckResponse(resp, op); err != nil {
		return err
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s: %w", op, err)
		}
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func normalizeHost(h string) string {
	h = strings.TrimRight(strings.TrimSpace(h), "/")
	if h == "" {
		return ""
	}
	if !strings.HasPrefix(h, "http://") && !strings.HasPrefix(h, "https://") {
		h = "https://" + h
	}
	return h
}
