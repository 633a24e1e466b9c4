package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tankobon/internal/archiveservice"
	"github.com/starford/tankobon/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	svc *archiveservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *archiveservice.Service) *Handler {
	return &Handler{svc: svc}
}

// archivePath extracts the archive path from the URL wildcard.
// Supports encoded slashes (e.g. Akira%2Fv01.cbz).
func archivePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListArchives handles GET /api/archives.
//
//	@Summary		Scan a directory and classify every archive
//	@Tags			archives
//	@Produce		json
//	@Param			dir	query		string	false	"Directory relative to the library root"
//	@Success		200	{object}	ArchiveListResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/archives [get]
func (h *Handler) ListArchives(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("dir")
	recs, err := h.svc.ListArchives(r.Context(), dir)
	if err != nil {
		writeError(w, "list archives", dir, err)
		return
	}
	writeJSON(w, http.StatusOK, ArchiveListResponse{Archives: recs, Total: len(recs)})
}

// GetArchive handles GET /api/archives/*.
//
//	@Summary		Get the record of one archive
//	@Tags			archives
//	@Produce		json
//	@Param			path	path		string	true	"Archive path"
//	@Success		200		{object}	ArchiveDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/archives/{path} [get]
func (h *Handler) GetArchive(w http.ResponseWriter, r *http.Request) {
	path := archivePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	detail, err := h.svc.GetArchive(r.Context(), path)
	if err != nil {
		writeError(w, "get archive", path, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// GetDate handles GET /api/dates/*.
//
//	@Summary		Read the embedded date of an archive
//	@Tags			dates
//	@Produce		json
//	@Param			path	path		string	true	"Archive path"
//	@Success		200		{object}	DateDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/dates/{path} [get]
func (h *Handler) GetDate(w http.ResponseWriter, r *http.Request) {
	path := archivePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	d, err := h.svc.GetDate(r.Context(), path)
	if err != nil {
		writeError(w, "get date", path, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// SetDate handles PUT /api/dates/*.
//
//	@Summary		Write the embedded date of an archive
//	@Tags			dates
//	@Accept			json
//	@Produce		json
//	@Param			path		path		string			true	"Archive path"
//	@Param			If-Match	header		string			false	"SHA-256 checksum of the archive"
//	@Param			body		body		SetDateRequest	true	"Date to write"
//	@Success		200			{object}	DateDetail
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/dates/{path} [put]
func (h *Handler) SetDate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	path := archivePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req SetDateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Year == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("year is required"))
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	date := models.DateTriple{Year: req.Year, Month: req.Month, Day: req.Day}
	d, err := h.svc.SetDate(r.Context(), path, date, ifMatch)
	if err != nil {
		writeError(w, "set date", path, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Repair handles POST /api/repair.
//
//	@Summary		Rewrite the date of every archive that is not ok
//	@Tags			repair
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RepairRequest	true	"Directory and dry-run flag"
//	@Success		200		{object}	RepairResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/repair [post]
func (h *Handler) Repair(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req RepairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	results, err := h.svc.Repair(r.Context(), req.Dir, req.DryRun)
	if err != nil {
		writeError(w, "repair", req.Dir, err)
		return
	}
	writeJSON(w, http.StatusOK, RepairResponse{Results: results})
}
