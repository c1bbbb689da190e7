package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	herrors "github.com/adverant/nexus/ocr-highlight-worker/internal/errors"
	"github.com/adverant/nexus/ocr-highlight-worker/internal/highlight"
	"github.com/adverant/nexus/ocr-highlight-worker/internal/queue"
	"github.com/go-chi/chi/v5"
)

// TierHeader carries the matching tier that produced a highlight.
const TierHeader = "X-Highlight-Tier"

type resolveRequest struct {
	Value    string `json:"value"`
	PromptID string `json:"promptId"`
	Key      string `json:"key,omitempty"`
}

// documentRef parses the path ids, writing a 400 on failure.
func documentRef(w http.ResponseWriter, r *http.Request) (highlight.DocumentRef, bool) {
	ref, err := highlight.ParseDocumentRef(chi.URLParam(r, "orgID"), chi.URLParam(r, "docID"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return highlight.DocumentRef{}, false
	}
	return ref, true
}

// writeLoadError maps a cache load failure to a response.
func (s *Server) writeLoadError(w http.ResponseWriter, ref highlight.DocumentRef, err error) {
	s.log.Warn("ocr load failed", "document", ref.DocumentID, "error", err)
	var he *herrors.HighlightError
	if herrors.IsOCRLoadError(err) && errors.As(err, &he) {
		writeJSON(w, http.StatusBadGateway, he.ToMap())
		return
	}
	jsonError(w, err.Error(), http.StatusServiceUnavailable)
}

// handleWarm loads a document's OCR blocks into the cache.
func (s *Server) handleWarm(w http.ResponseWriter, r *http.Request) {
	ref, ok := documentRef(w, r)
	if !ok {
		return
	}
	if err := s.engine.Warm(r.Context(), ref); err != nil {
		s.writeLoadError(w, ref, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListBlocks returns the cached blocks of a loaded document.
func (s *Server) handleListBlocks(w http.ResponseWriter, r *http.Request) {
	ref, ok := documentRef(w, r)
	if !ok {
		return
	}
	blocks, ok := s.engine.Cache().Blocks(ref.OrganizationID, ref.DocumentID)
	if !ok {
		jsonError(w, "document not loaded", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocks": blocks})
}

// handleEvict drops a document from the local and shared caches.
func (s *Server) handleEvict(w http.ResponseWriter, r *http.Request) {
	ref, ok := documentRef(w, r)
	if !ok {
		return
	}
	s.engine.Cache().Invalidate(ref.OrganizationID, ref.DocumentID)
	if s.shared != nil {
		if err := s.shared.InvalidateBlocks(r.Context(), ref.OrganizationID, ref.DocumentID); err != nil {
			s.log.Warn("shared cache invalidation failed", "document", ref.DocumentID, "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleResolve resolves one extracted value to highlight blocks. With
// ?async=true the request is queued and a task id is returned instead.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	ref, ok := documentRef(w, r)
	if !ok {
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.PromptID == "" {
		jsonError(w, "promptId is required", http.StatusBadRequest)
		return
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		if s.enqueuer == nil {
			jsonError(w, "async resolution is not enabled", http.StatusNotImplemented)
			return
		}
		taskID, err := s.enqueuer.Enqueue(r.Context(), queue.ResolvePayload{
			OrganizationID: ref.OrganizationID,
			DocumentID:     ref.DocumentID,
			PromptID:       req.PromptID,
			Key:            req.Key,
			Value:          req.Value,
		})
		if err != nil {
			jsonError(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"taskId": taskID})
		return
	}

	info, tier, err := s.engine.Resolve(r.Context(), ref, req.Value, highlight.Provenance{
		PromptID: req.PromptID,
		Key:      req.Key,
	})
	if err != nil {
		s.writeLoadError(w, ref, err)
		return
	}
	w.Header().Set(TierHeader, string(tier))
	writeJSON(w, http.StatusOK, info)
}
