package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/tankobon/internal/apperr"
)

// MetadataUpdater pushes series metadata to a remote library server.
type MetadataUpdater interface {
	UpdateSeriesMetadata(ctx context.Context, seriesID string, metadata map[string]any) (json.RawMessage, error)
}

// UpdaterFactory builds an updater at request time so that a missing
// credential is reported on use rather than at startup.
type UpdaterFactory func() (MetadataUpdater, error)

// Remotes holds the passthrough factories. A nil factory means the
// server is not configured.
type Remotes struct {
	Komga  UpdaterFactory
	Kavita UpdaterFactory
}

// RemoteHandler serves the Komga and Kavita passthroughs.
type RemoteHandler struct {
	remotes Remotes
}

// NewRemoteHandler creates a RemoteHandler.
func NewRemoteHandler(remotes Remotes) *RemoteHandler {
	return &RemoteHandler{remotes: remotes}
}

// UpdateKomga handles POST /api/update/komga.
//
//	@Summary		Update series metadata in Komga
//	@Tags			update
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RemoteUpdateRequest	true	"Series id and metadata"
//	@Success		200		{object}	RemoteUpdateResponse
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/update/komga [post]
func (h *RemoteHandler) UpdateKomga(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, "Komga", h.remotes.Komga)
}

// UpdateKavita handles POST /api/update/kavita.
//
//	@Summary		Update series metadata in Kavita
//	@Tags			update
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RemoteUpdateRequest	true	"Series id and metadata"
//	@Success		200		{object}	RemoteUpdateResponse
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/update/kavita [post]
func (h *RemoteHandler) UpdateKavita(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, "Kavita", h.remotes.Kavita)
}

func (h *RemoteHandler) update(w http.ResponseWriter, r *http.Request, name string, factory UpdaterFactory) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req RemoteUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := validation.ValidateStruct(&req,
		validation.Field(&req.SeriesID, validation.Required),
		validation.Field(&req.Metadata, validation.Required),
	); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	if factory == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody(name+" is not configured"))
		return
	}
	client, err := factory()
	if err != nil {
		if errors.Is(err, apperr.ErrNotConfigured) {
			writeJSON(w, http.StatusServiceUnavailable, errorBody(err.Error()))
			return
		}
		slog.Error("remote client init failed", slog.String("server", name), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	result, err := client.UpdateSeriesMetadata(r.Context(), req.SeriesID, req.Metadata)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrInvalidInput):
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		case errors.Is(err, apperr.ErrUpstream):
			slog.Warn("remote update failed", slog.String("server", name), slog.String("error", err.Error()))
			writeJSON(w, http.StatusBadGateway, errorBody(name+" API error: "+err.Error()))
		default:
			slog.Error("remote update failed", slog.String("server", name), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, RemoteUpdateResponse{
		Success: true,
		Message: name + " metadata updated successfully",
		Result:  result,
	})
}
