package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Digital-Shane/mediameta/internal/provider"
	"github.com/Digital-Shane/mediameta/internal/store"
)

// maxPayloadBytes bounds action and settings request bodies
const maxPayloadBytes = 1 << 20

type handlers struct {
	registry *provider.Registry
	settings SettingsUpdater
	log      *zap.SugaredLogger
}

// errorResponse is the body of every failed request
type errorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code,omitempty"`
	Provider   string `json:"provider,omitempty"`
	Retry      bool   `json:"retry,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

// sourceUpdate is the body of a settings change; absent fields are kept
type sourceUpdate struct {
	IsAuxSearchEnabled *bool `json:"isAuxSearchEnabled"`
	UseProxy           *bool `json:"useProxy"`
	DisplayOrder       *int  `json:"displayOrder"`
}

// WriteJSONResponse writes a JSON response with the given data
func WriteJSONResponse(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// WriteErrorResponse maps err to a status code and writes it as JSON.
// Provider errors carry their own status and retry hints.
func WriteErrorResponse(w http.ResponseWriter, err error) {
	var perr *provider.ProviderError
	if errors.As(err, &perr) {
		if perr.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(perr.RetryAfter))
		}
		WriteJSONResponse(w, errorResponse{
			Error:      perr.Error(),
			Code:       perr.Code,
			Provider:   perr.Provider,
			Retry:      perr.Retry,
			RetryAfter: perr.RetryAfter,
		}, perr.HTTPStatus())
		return
	}
	WriteJSONResponse(w, errorResponse{Error: err.Error()}, http.StatusInternalServerError)
}

func badRequest(w http.ResponseWriter, message string) {
	WriteJSONResponse(w, errorResponse{Error: message, Code: provider.CodeInvalidRequest}, http.StatusBadRequest)
}

// userFromRequest reads the caller identity headers. Missing or malformed
// ids yield the anonymous user.
func userFromRequest(r *http.Request) provider.User {
	id, _ := strconv.ParseInt(r.Header.Get(HeaderUserID), 10, 64)
	return provider.User{ID: id, Username: r.Header.Get(HeaderUsername)}
}

func mediaTypeParam(r *http.Request) (provider.MediaType, bool) {
	mt := provider.MediaType(strings.ToLower(r.URL.Query().Get("type")))
	return mt, mt == provider.MediaTypeAny || mt.Valid()
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	WriteJSONResponse(w, map[string]any{
		"status":  "ok",
		"sources": h.registry.LoadedNames(),
	}, http.StatusOK)
}

func (h *handlers) listSources(w http.ResponseWriter, r *http.Request) {
	WriteJSONResponse(w, h.registry.SourcesWithStatus(r.Context()), http.StatusOK)
}

func (h *handlers) reload(w http.ResponseWriter, r *http.Request) {
	h.registry.Reload(r.Context())
	WriteJSONResponse(w, h.registry.Settings(), http.StatusOK)
}

func (h *handlers) updateSource(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := h.registry.Get(name); !ok {
		WriteErrorResponse(w, provider.NotFound(name))
		return
	}

	var update sourceUpdate
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPayloadBytes)).Decode(&update); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}
	if update.DisplayOrder != nil && *update.DisplayOrder < 0 {
		badRequest(w, "displayOrder must not be negative")
		return
	}

	ctx := r.Context()
	var err error
	if update.IsAuxSearchEnabled != nil {
		err = errors.Join(err, h.settings.SetAuxSearchEnabled(ctx, name, *update.IsAuxSearchEnabled))
	}
	if update.UseProxy != nil {
		err = errors.Join(err, h.settings.SetUseProxy(ctx, name, *update.UseProxy))
	}
	if update.DisplayOrder != nil {
		err = errors.Join(err, h.settings.SetDisplayOrder(ctx, name, *update.DisplayOrder))
	}
	if errors.Is(err, store.ErrUnknownSource) {
		WriteErrorResponse(w, provider.NotFound(name))
		return
	}
	if err != nil {
		h.log.Errorw("failed to update source settings", "provider", name, "error", err)
		WriteErrorResponse(w, err)
		return
	}

	h.registry.Reload(ctx)
	h.log.Infow("source settings updated", "provider", name)
	for _, s := range h.registry.Settings() {
		if s.ProviderName == name {
			WriteJSONResponse(w, s, http.StatusOK)
			return
		}
	}
	WriteErrorResponse(w, provider.NotFound(name))
}

func (h *handlers) sourceConfig(w http.ResponseWriter, r *http.Request) {
	values, err := h.registry.ProviderConfig(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	WriteJSONResponse(w, values, http.StatusOK)
}

func (h *handlers) search(w http.ResponseWriter, r *http.Request) {
	keyword := strings.TrimSpace(r.URL.Query().Get("q"))
	if keyword == "" {
		badRequest(w, "query parameter q is required")
		return
	}
	mediaType, ok := mediaTypeParam(r)
	if !ok {
		badRequest(w, "type must be tv or movie")
		return
	}

	records, err := h.registry.Search(r.Context(), chi.URLParam(r, "name"), keyword, userFromRequest(r), mediaType)
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	WriteJSONResponse(w, records, http.StatusOK)
}

func (h *handlers) details(w http.ResponseWriter, r *http.Request) {
	mediaType, ok := mediaTypeParam(r)
	if !ok {
		badRequest(w, "type must be tv or movie")
		return
	}
	name, id := chi.URLParam(r, "name"), chi.URLParam(r, "id")
	record, err := h.registry.Details(r.Context(), name, id, userFromRequest(r), mediaType)
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	if record == nil {
		WriteJSONResponse(w, errorResponse{Error: "item not found", Code: provider.CodeNotFound, Provider: name}, http.StatusNotFound)
		return
	}
	WriteJSONResponse(w, record, http.StatusOK)
}

func (h *handlers) action(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{}
	if r.ContentLength != 0 {
		err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPayloadBytes)).Decode(&payload)
		if err != nil && !errors.Is(err, io.EOF) {
			badRequest(w, "invalid action payload: "+err.Error())
			return
		}
	}

	result, err := h.registry.ExecuteAction(r.Context(), chi.URLParam(r, "name"), chi.URLParam(r, "action"), payload, userFromRequest(r), r)
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	WriteJSONResponse(w, result, http.StatusOK)
}

func (h *handlers) aliases(w http.ResponseWriter, r *http.Request) {
	keyword := strings.TrimSpace(r.URL.Query().Get("q"))
	if keyword == "" {
		badRequest(w, "query parameter q is required")
		return
	}
	aliases := h.registry.SearchAliasesFromEnabled(r.Context(), keyword, userFromRequest(r))
	WriteJSONResponse(w, aliases.Sorted(), http.StatusOK)
}
