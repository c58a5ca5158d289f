package remote

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckResponse(t *testing.T) {
	tests := []struct {
		status    int
		wantErr   bool
		retryable bool
	}{
		{http.StatusOK, false, false},
		{http.StatusCreated, false, false},
		{http.StatusBadRequest, true, false},
		{http.StatusUnauthorized, true, false},
		{http.StatusTooManyRequests, true, true},
		{http.StatusInternalServerError, true, true},
		{http.StatusServiceUnavailable, true, true},
	}
	for _, tt := range tests {
		resp := &http.Response{StatusCode: tt.status, Body: http.NoBody}
		err := CheckResponse(resp, "upsert")
		if !tt.wantErr {
			assert.NoError(t, err, "status %d", tt.status)
			continue
		}
		require.Error(t, err, "status %d", tt.status)
		var re *RetryableError
		assert.Equal(t, tt.retryable, errors.As(err, &re), "status %d", tt.status)
	}
}

func TestDoer_ClassifiesThrottling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/busy" {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("slow down"))
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	d := NewDoer(0)
	defer d.CloseIdleConnections()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/busy", nil)
	resp, err := d.Do(req)
	assert.Nil(t, resp)
	var re *RetryableError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusTooManyRequests, re.StatusCode)
	assert.Contains(t, re.Error(), "slow down")

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/fine", nil)
	resp, err = d.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRetryableError_Truncates(t *testing.T) {
	err := &RetryableError{StatusCode: 503, Message: strings.Repeat("x", 500)}
	assert.Less(t, len(err.Error()), 300)
	assert.True(t, strings.HasSuffix(err.Error(), "..."))
}
