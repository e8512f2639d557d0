package responses

import (
	"github.com/mn-address-parser/app/models"
	"github.com/mn-address-parser/internal/external"
)

// ParseResult is one parsed address as the API reports it.
type ParseResult struct {
	Raw        string               `json:"raw"`
	Normalized string               `json:"normalized"`
	Result     models.ParsedAddress `json:"result"`
	Trusted    bool                 `json:"trusted"`
	CacheHit   bool                 `json:"cache_hit"`
	Trace      *models.ParseTrace   `json:"trace,omitempty"`
}

// ParseAddressResponse answers POST /v1/addresses/parse.
type ParseAddressResponse struct {
	GazetteerVersion string        `json:"gazetteer_version"`
	Results          []ParseResult `json:"results"`
	ProcessingTimeMs int64         `json:"processing_time_ms"`
	CacheHit         bool          `json:"cache_hit"`
}

// BatchParseResponse answers a job submission.
type BatchParseResponse struct {
	JobID            string `json:"job_id"`
	EstimatedSeconds int    `json:"estimated_seconds"`
	TotalAddresses   int    `json:"total_addresses"`
	Message          string `json:"message"`
}

// JobStatusResponse reports job progress.
type JobStatusResponse struct {
	JobID              string  `json:"job_id"`
	Status             string  `json:"status"`
	Progress           float64 `json:"progress"`
	Processed          int     `json:"processed"`
	Total              int     `json:"total"`
	Trusted            int     `json:"trusted"`
	EstimatedRemaining int     `json:"estimated_remaining"`
	Message            string  `json:"message"`
}

// CompareResponse puts both parsers' answers next to each other.
type CompareResponse struct {
	Parser    ParseResult `json:"parser"`
	Libpostal external.LP `json:"libpostal"`
}

// DistrictSuggestion is one search hit.
type DistrictSuggestion struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	LatinName string   `json:"latin_name"`
	Aliases   []string `json:"aliases,omitempty"`
}

// SeedGazetteerResponse answers POST /v1/admin/seed.
type SeedGazetteerResponse struct {
	GazetteerVersion string   `json:"gazetteer_version"`
	ValidationPassed bool     `json:"validation_passed"`
	Warnings         []string `json:"warnings,omitempty"`
	UnitsProcessed   int      `json:"units_processed"`
	IndexesBuilt     int      `json:"indexes_built"`
	ProcessingTimeMs int64    `json:"processing_time_ms"`
	DryRun           bool     `json:"dry_run"`
	Message          string   `json:"message"`
}

// ReviewListResponse pages through the review queue.
type ReviewListResponse struct {
	Reviews  []models.AddressReview `json:"reviews"`
	Total    int64                  `json:"total"`
	Pending  int64                  `json:"pending"`
	Approved int64                  `json:"approved"`
	Limit    int                    `json:"limit"`
	Offset   int                    `json:"offset"`
}

// ReviewActionResponse reports an approve or correct action.
type ReviewActionResponse struct {
	Success   bool                 `json:"success"`
	ReviewID  string               `json:"review_id"`
	Action    string               `json:"action"`
	Result    models.ParsedAddress `json:"result"`
	Message   string               `json:"message"`
	UpdatedAt string               `json:"updated_at"`
}

// ErrorResponse carries an upper-snake error code.
type ErrorResponse struct {
	Error     string      `json:"error"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	Timestamp string      `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// SuccessResponse wraps a payload.
type SuccessResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// HealthCheckResponse answers the health endpoints.
type HealthCheckResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Version   string            `json:"version"`
	Services  map[string]string `json:"services"`
}
