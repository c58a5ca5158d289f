package api

import (
	"net/http"
	"strconv"

	"github.com/dgallion1/vecingest/internal/ledger"
)

const (
	defaultLedgerLimit = 50
	maxLedgerLimit     = 1000
)

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ledger == nil {
		jsonError(w, "ledger unavailable", http.StatusServiceUnavailable)
		return
	}
	limit := defaultLedgerLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxLedgerLimit)
	}

	entries, err := s.deps.Ledger.Tail(limit)
	if err != nil {
		s.log.Error("read ledger", "error", err)
		jsonError(w, "failed to read ledger", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

func (s *Server) handleEmbedStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Stats == nil {
		jsonError(w, "embed stats unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": s.deps.Stats.Snapshot()})
}
