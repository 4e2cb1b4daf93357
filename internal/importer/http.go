package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/geo-challenges/internal/challenge"
	"github.com/gokatarajesh/geo-challenges/internal/challenge/external"
	httperrors "github.com/gokatarajesh/geo-challenges/pkg/http/errors"
)

// TokenHeader carries a per-request game session token.
const TokenHeader = "X-Geoguessr-Token"

const maxBodyBytes = 16 << 20

// HTTPHandler exposes the challenge cache and importer over JSON.
type HTTPHandler struct {
	svc    *Service
	jobs   *Jobs
	logger zerolog.Logger
}

// NewHTTPHandler constructs the importer HTTP handler.
func NewHTTPHandler(svc *Service, jobs *Jobs, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:    svc,
		jobs:   jobs,
		logger: logger.With().Str("component", "importer_http").Logger(),
	}
}

// Register mounts the challenge and import routes on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/challenges", h.withToken(h.List))
	mux.HandleFunc("POST /v1/challenges", h.withToken(h.LoadOne))
	mux.HandleFunc("DELETE /v1/challenges", h.Clear)
	mux.HandleFunc("PUT /v1/challenges/order", h.SetOrder)
	mux.HandleFunc("GET /v1/challenges/{id}", h.Get)
	mux.HandleFunc("PATCH /v1/challenges/{id}", h.Rename)
	mux.HandleFunc("DELETE /v1/challenges/{id}", h.Remove)

	mux.HandleFunc("POST /v1/imports", h.withToken(h.LoadMany))
	mux.HandleFunc("GET /v1/imports/{job_id}", h.GetJob)
	mux.HandleFunc("POST /v1/imports/bookmarklet", h.ImportBookmarklet)
	mux.HandleFunc("POST /v1/imports/discord", h.withToken(h.ImportDiscord))
	mux.HandleFunc("POST /v1/imports/file", h.ImportFile)
	mux.HandleFunc("GET /v1/export", h.Export)
}

// withToken moves the token header into the request context for the fetch client.
func (h *HTTPHandler) withToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if tok := r.Header.Get(TokenHeader); tok != "" {
			r = r.WithContext(external.WithToken(r.Context(), tok))
		}
		next(w, r)
	}
}

type loadOneRequest struct {
	Reference    string `json:"reference"`
	ForceRefresh bool   `json:"force_refresh"`
}

type loadOneResponse struct {
	Challenge *challenge.Record `json:"challenge"`
	Notice    *challenge.Notice `json:"notice,omitempty"`
}

// LoadOne handles POST /v1/challenges
func (h *HTTPHandler) LoadOne(w http.ResponseWriter, r *http.Request) {
	var req loadOneRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, notice, err := h.svc.LoadOneWithNotice(r.Context(), req.Reference, req.ForceRefresh)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, loadOneResponse{Challenge: rec, Notice: notice})
}

// List handles GET /v1/challenges
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.List(r.Context())
	if err != nil {
		h.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"challenges": recs,
		"count":      len(recs),
	})
}

// Get handles GET /v1/challenges/{id}
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, ok, err := h.svc.Store().Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	if !ok {
		httperrors.RespondNotFound(w, httperrors.ErrCodeChallengeMissing, fmt.Sprintf("challenge %s is not cached", id))
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

type renameRequest struct {
	Name string `json:"name"`
}

// Rename handles PATCH /v1/challenges/{id}
func (h *HTTPHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req renameRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidInput, "name is required")
		return
	}
	found, err := h.svc.Store().Rename(r.Context(), id, req.Name)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	if !found {
		httperrors.RespondNotFound(w, httperrors.ErrCodeChallengeMissing, fmt.Sprintf("challenge %s is not cached", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Remove handles DELETE /v1/challenges/{id}
func (h *HTTPHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Store().Remove(r.Context(), r.PathValue("id")); err != nil {
		h.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clear handles DELETE /v1/challenges
func (h *HTTPHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Store().Clear(r.Context()); err != nil {
		h.respondErr(w, err)
		return
	}
	h.logger.Info().Msg("challenge cache cleared")
	w.WriteHeader(http.StatusNoContent)
}

type orderRequest struct {
	IDs []string `json:"ids"`
}

// SetOrder handles PUT /v1/challenges/order
func (h *HTTPHandler) SetOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.Store().SetOrder(r.Context(), req.IDs); err != nil {
		h.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type loadManyRequest struct {
	References   []string `json:"references"`
	Names        []string `json:"names,omitempty"`
	ForceRefresh bool     `json:"force_refresh"`
	Async        bool     `json:"async"`
}

type jobStarted struct {
	JobID      string `json:"job_id"`
	TotalCount int    `json:"totalCount"`
}

// LoadMany handles POST /v1/imports. With async set the import runs as a
// job and the response carries its id.
func (h *HTTPHandler) LoadMany(w http.ResponseWriter, r *http.Request) {
	var req loadManyRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Async {
		h.startJob(w, r, req.References, req.Names, req.ForceRefresh)
		return
	}
	res, err := h.svc.LoadMany(r.Context(), req.References, nil, req.ForceRefresh, req.Names)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// ImportDiscord handles POST /v1/imports/discord. One challenge per posting
// date is imported in the background, named after that date.
func (h *HTTPHandler) ImportDiscord(w http.ResponseWriter, r *http.Request) {
	data, ok := h.readBody(w, r)
	if !ok {
		return
	}
	links, err := challenge.ParseDiscordExport(data)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	if len(links) == 0 {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidInput, "no challenge links found in export")
		return
	}
	force := r.URL.Query().Get("force_refresh") == "true"
	h.startJob(w, r, challenge.References(links), challenge.Names(links), force)
}

func (h *HTTPHandler) startJob(w http.ResponseWriter, r *http.Request, refs, names []string, force bool) {
	id, err := h.jobs.Start(r.Context(), refs, names, force)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, jobStarted{JobID: id.String(), TotalCount: len(refs)})
}

// GetJob handles GET /v1/imports/{job_id}
func (h *HTTPHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("job_id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "invalid job id")
		return
	}
	job, ok := h.jobs.Get(id)
	if !ok {
		httperrors.RespondNotFound(w, httperrors.ErrCodeJobNotFound, "import job not found")
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// ImportBookmarklet handles POST /v1/imports/bookmarklet
func (h *HTTPHandler) ImportBookmarklet(w http.ResponseWriter, r *http.Request) {
	data, ok := h.readBody(w, r)
	if !ok {
		return
	}
	rec, err := h.svc.ImportBookmarklet(r.Context(), data)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

// ImportFile handles POST /v1/imports/file
func (h *HTTPHandler) ImportFile(w http.ResponseWriter, r *http.Request) {
	data, ok := h.readBody(w, r)
	if !ok {
		return
	}
	res, err := h.svc.ImportExportFile(r.Context(), data)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// Export handles GET /v1/export
func (h *HTTPHandler) Export(w http.ResponseWriter, r *http.Request) {
	file, err := h.svc.Export(r.Context())
	if err != nil {
		h.respondErr(w, err)
		return
	}
	name := fmt.Sprintf("geoguessr-challenges-%s.json", h.svc.now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	respondJSON(w, http.StatusOK, file)
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return false
	}
	return true
}

func (h *HTTPHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			httperrors.RespondError(w, http.StatusRequestEntityTooLarge, httperrors.ErrCodeInvalidRequest, "payload too large")
			return nil, false
		}
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "failed to read body")
		return nil, false
	}
	return data, true
}

func (h *HTTPHandler) respondErr(w http.ResponseWriter, err error) {
	status, code := StatusFor(challenge.KindOf(err))
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Msg("request failed")
	}
	httperrors.RespondError(w, status, code, err.Error())
}

// StatusFor maps an error kind to its HTTP status and response code.
func StatusFor(kind challenge.Kind) (int, string) {
	switch kind {
	case challenge.KindAuthentication:
		return http.StatusUnauthorized, httperrors.ErrCodeUnauthorized
	case challenge.KindAccessDenied:
		return http.StatusForbidden, httperrors.ErrCodeForbidden
	case challenge.KindNotFound:
		return http.StatusNotFound, httperrors.ErrCodeNotFound
	case challenge.KindInvalidReference:
		return http.StatusBadRequest, httperrors.ErrCodeInvalidReference
	case challenge.KindMalformedPayload:
		return http.StatusBadRequest, httperrors.ErrCodeMalformedPayload
	case challenge.KindInvalidInput:
		return http.StatusBadRequest, httperrors.ErrCodeInvalidInput
	case challenge.KindStorage:
		return http.StatusInternalServerError, httperrors.ErrCodeStorageError
	default:
		return http.StatusBadGateway, httperrors.ErrCodeUpstreamError
	}
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
