package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/markforest/internal/analysis"
	"github.com/dgallion1/markforest/internal/idalloc"
	"github.com/dgallion1/markforest/internal/metrics"
)

// NextIDRequest is the body of POST /api/ids/next. Text is the current
// document content; the cache rescans it whenever its length changes.
type NextIDRequest struct {
	DocumentID string `json:"document_id" validate:"required,max=256"`
	Text       string `json:"text"`
	Seed       string `json:"seed" validate:"max=256"`
}

// idRegistry keeps one identifier cache per document. Each cache is used
// by one request at a time.
type idRegistry struct {
	mu     sync.Mutex
	ttl    time.Duration
	caches map[string]*idEntry
}

type idEntry struct {
	mu    sync.Mutex
	cache *idalloc.Cache
	used  time.Time
}

func newIDRegistry(ttl time.Duration) *idRegistry {
	return &idRegistry{ttl: ttl, caches: make(map[string]*idEntry)}
}

// idleEviction is how long an unused document cache is kept.
const idleEviction = 30 * time.Minute

func (r *idRegistry) entry(docID string) *idEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.caches[docID]
	if !ok {
		r.evictIdleLocked(time.Now())
		e = &idEntry{cache: idalloc.NewCache(r.ttl), used: time.Now()}
		r.caches[docID] = e
	}
	return e
}

func (r *idRegistry) evictIdleLocked(now time.Time) {
	for id, e := range r.caches {
		e.mu.Lock()
		idle := now.Sub(e.used) > idleEviction
		e.mu.Unlock()
		if idle {
			delete(r.caches, id)
		}
	}
}

// next allocates an id for the document and reports whether the cached
// identifier set was reused.
func (r *idRegistry) next(docID, text, seed string) (string, bool) {
	e := r.entry(docID)
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := analysis.TextSnapshot(text)
	hit := !e.cache.Stale(snap)
	id := e.cache.Next(snap, seed)
	e.used = time.Now()
	return id, hit
}

// invalidate drops the document's cache and reports whether one existed.
func (r *idRegistry) invalidate(docID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.caches[docID]
	delete(r.caches, docID)
	return ok
}

func (s *Server) handleNextID(w http.ResponseWriter, r *http.Request) {
	var req NextIDRequest
	if err := decodeJSON(w, r, s.cfg.MaxUploadBytes, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, hit := s.ids.next(req.DocumentID, req.Text, req.Seed)
	metrics.RecordIDAllocated(hit)
	writeJSON(w, http.StatusOK, map[string]any{
		"id":     id,
		"cached": hit,
	})
}

func (s *Server) handleInvalidateIDs(w http.ResponseWriter, r *http.Request) {
	if !s.ids.invalidate(chi.URLParam(r, "docID")) {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
