package api

import (
	"encoding/json"

	"github.com/starford/tankobon/internal/archiveservice"
	"github.com/starford/tankobon/internal/models"
)

// ArchiveRecord is one scanned archive (aliased from the domain layer).
type ArchiveRecord = models.ArchiveRecord

// ArchiveDetail is an archive record plus its checksum.
type ArchiveDetail = archiveservice.ArchiveDetail

// DateDetail is the embedded date of an archive.
type DateDetail = archiveservice.DateDetail

// RepairResult is the outcome of one archive in a repair run.
type RepairResult = models.RepairResult

// ArchiveListResponse wraps a directory scan.
type ArchiveListResponse struct {
	Archives []ArchiveRecord `json:"archives" validate:"required"`
	Total    int             `json:"total" example:"42" validate:"required"`
}

// SetDateRequest is the request body for writing an embedded date.
// Month and day default to "01".
type SetDateRequest struct {
	Year  string `json:"year" example:"2020" validate:"required"`
	Month string `json:"month" example:"05"`
	Day   string `json:"day" example:"14"`
}

// RepairRequest is the request body for a batch repair.
type RepairRequest struct {
	Dir    string `json:"dir" example:"Akira"`
	DryRun bool   `json:"dry_run"`
}

// RepairResponse wraps per-archive repair outcomes.
type RepairResponse struct {
	Results []RepairResult `json:"results" validate:"required"`
}

// RemoteUpdateRequest is the request body for the Komga/Kavita passthroughs.
type RemoteUpdateRequest struct {
	SeriesID string         `json:"series_id" example:"0A1B2C3D" validate:"required"`
	Metadata map[string]any `json:"metadata" validate:"required"`
}

// RemoteUpdateResponse reports a successful passthrough.
type RemoteUpdateResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result" swaggertype:"object"`
}
