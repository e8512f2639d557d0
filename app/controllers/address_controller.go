package controllers

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mn-address-parser/app/requests"
	"github.com/mn-address-parser/app/responses"
	"github.com/mn-address-parser/app/services"
	"github.com/mn-address-parser/internal/external"
	"go.uber.org/zap"
)

// AddressController serves the parse, job, compare and district endpoints.
type AddressController struct {
	addressService *services.AddressService
	maxBatch       int
	logger         *zap.Logger
}

// NewAddressController creates the controller. maxBatch caps job size.
func NewAddressController(addressService *services.AddressService, maxBatch int, logger *zap.Logger) *AddressController {
	if maxBatch <= 0 {
		maxBatch = 20000
	}
	return &AddressController{
		addressService: addressService,
		maxBatch:       maxBatch,
		logger:         logger,
	}
}

func errorJSON(c *gin.Context, status int, code, message string) {
	c.JSON(status, responses.ErrorResponse{
		Error:     code,
		Message:   message,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func toResult(o *services.ParseOutcome) responses.ParseResult {
	return responses.ParseResult{
		Raw:        o.Raw,
		Normalized: o.Normalized,
		Result:     *o.Result,
		Trusted:    o.Trusted,
		CacheHit:   o.CacheHit,
		Trace:      o.Trace,
	}
}

// ParseAddress parses one address. An empty address yields the default
// result rather than an error.
func (ac *AddressController) ParseAddress(c *gin.Context) {
	req := requests.ParseAddressRequest{Options: requests.DefaultParseOptions()}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request: "+err.Error())
		return
	}

	startTime := time.Now()
	outcome, err := ac.addressService.ParseOne(c.Request.Context(), req.Address, req.Options)
	if err != nil {
		errorJSON(c, http.StatusServiceUnavailable, "PARSE_CANCELLED", err.Error())
		return
	}

	c.JSON(http.StatusOK, responses.ParseAddressResponse{
		GazetteerVersion: ac.addressService.GazetteerVersion(),
		Results:          []responses.ParseResult{toResult(outcome)},
		ProcessingTimeMs: time.Since(startTime).Milliseconds(),
		CacheHit:         outcome.CacheHit,
	})
}

// BatchParse starts a background job.
func (ac *AddressController) BatchParse(c *gin.Context) {
	req := requests.BatchParseRequest{Options: requests.DefaultParseOptions()}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request: "+err.Error())
		return
	}
	if len(req.Addresses) > ac.maxBatch {
		errorJSON(c, http.StatusBadRequest, "TOO_MANY_ADDRESSES",
			"at most "+strconv.Itoa(ac.maxBatch)+" addresses per job")
		return
	}

	estimated := ac.addressService.EstimateBatchProcessingTime(len(req.Addresses))
	job := ac.addressService.SubmitJob(req.Addresses, req.Options)

	c.JSON(http.StatusAccepted, responses.BatchParseResponse{
		JobID:            job.JobID,
		EstimatedSeconds: estimated,
		TotalAddresses:   len(req.Addresses),
		Message:          "job accepted",
	})
}

// GetJobStatus reports job progress.
func (ac *AddressController) GetJobStatus(c *gin.Context) {
	jobID := c.Param("jobID")

	status, err := ac.addressService.GetJobStatus(jobID)
	if err != nil {
		errorJSON(c, http.StatusNotFound, "JOB_NOT_FOUND", err.Error())
		return
	}

	c.JSON(http.StatusOK, responses.JobStatusResponse{
		JobID:              status.JobID,
		Status:             status.Status,
		Progress:           status.Progress,
		Processed:          status.Processed,
		Total:              status.Total,
		Trusted:            status.Trusted,
		EstimatedRemaining: status.EstimatedRemaining,
		Message:            status.Message,
	})
}

// GetJobResults returns a finished job's results as JSON, or as NDJSON with
// ?format=ndjson (gzipped with &gzip=1).
func (ac *AddressController) GetJobResults(c *gin.Context) {
	jobID := c.Param("jobID")

	if c.Query("format") == "ndjson" {
		ac.streamNDJSONResults(c, jobID, c.Query("gzip") == "1")
		return
	}

	results, err := ac.addressService.GetJobResults(jobID)
	if err != nil {
		ac.jobError(c, err)
		return
	}

	out := make([]responses.ParseResult, len(results))
	for i, r := range results {
		out[i] = toResult(r)
	}
	c.JSON(http.StatusOK, responses.SuccessResponse{
		Success:   true,
		Message:   "job results",
		Data:      out,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (ac *AddressController) jobError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrJobNotFound):
		errorJSON(c, http.StatusNotFound, "JOB_NOT_FOUND", err.Error())
	case errors.Is(err, services.ErrJobNotFinished):
		errorJSON(c, http.StatusConflict, "JOB_NOT_FINISHED", err.Error())
	default:
		errorJSON(c, http.StatusInternalServerError, "JOB_ERROR", err.Error())
	}
}

func (ac *AddressController) streamNDJSONResults(c *gin.Context, jobID string, gzipEnabled bool) {
	resultChannel, err := ac.addressService.GetJobResultsStream(c.Request.Context(), jobID)
	if err != nil {
		ac.jobError(c, err)
		return
	}

	c.Header("Content-Type", "application/x-ndjson")
	var writer gin.ResponseWriter = c.Writer
	if gzipEnabled {
		c.Header("Content-Encoding", "gzip")
		gzWriter := gzip.NewWriter(c.Writer)
		defer gzWriter.Close()
		writer = &gzipResponseWriter{ResponseWriter: c.Writer, gzWriter: gzWriter}
	}
	c.Status(http.StatusOK)

	encoder := json.NewEncoder(writer)
	for result := range resultChannel {
		if err := encoder.Encode(toResult(result)); err != nil {
			ac.logger.Error("failed to encode ndjson line", zap.Error(err), zap.String("job_id", jobID))
			return
		}
		writer.Flush()
	}
}

type gzipResponseWriter struct {
	gin.ResponseWriter
	gzWriter *gzip.Writer
}

func (w *gzipResponseWriter) Write(data []byte) (int, error) {
	return w.gzWriter.Write(data)
}

func (w *gzipResponseWriter) Flush() {
	_ = w.gzWriter.Flush()
	w.ResponseWriter.Flush()
}

// Compare shows the parser next to libpostal.
func (ac *AddressController) Compare(c *gin.Context) {
	var req requests.CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request: "+err.Error())
		return
	}

	outcome, lp, err := ac.addressService.Compare(c.Request.Context(), req.Address)
	switch {
	case errors.Is(err, external.ErrLibpostalUnavailable):
		errorJSON(c, http.StatusNotImplemented, "LIBPOSTAL_UNAVAILABLE", err.Error())
		return
	case err != nil:
		errorJSON(c, http.StatusInternalServerError, "COMPARE_ERROR", err.Error())
		return
	}

	c.JSON(http.StatusOK, responses.CompareResponse{
		Parser:    toResult(outcome),
		Libpostal: lp,
	})
}

// SuggestDistricts searches the district index.
func (ac *AddressController) SuggestDistricts(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		errorJSON(c, http.StatusBadRequest, "MISSING_QUERY", "q is required")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))

	units, err := ac.addressService.SuggestDistricts(c.Request.Context(), query, limit)
	if err != nil {
		if errors.Is(err, services.ErrSearchDisabled) {
			errorJSON(c, http.StatusServiceUnavailable, "SEARCH_DISABLED", err.Error())
			return
		}
		ac.logger.Error("district suggest failed", zap.Error(err))
		errorJSON(c, http.StatusBadGateway, "SEARCH_ERROR", err.Error())
		return
	}

	out := make([]responses.DistrictSuggestion, 0, len(units))
	for _, u := range units {
		out = append(out, responses.DistrictSuggestion{
			ID:        u.AdminID,
			Name:      u.Name,
			LatinName: u.LatinName,
			Aliases:   u.Aliases,
		})
	}
	c.JSON(http.StatusOK, gin.H{"query": query, "suggestions": out})
}

// HealthCheck reports liveness.
func (ac *AddressController) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, responses.HealthCheckResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(ac.addressService.GetStartTime()).Round(time.Second).String(),
		Version:   ac.addressService.GazetteerVersion(),
		Services: map[string]string{
			"address_parser": "healthy",
		},
	})
}

// Metrics exposes the parse counters.
func (ac *AddressController) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, ac.addressService.GetStats())
}
