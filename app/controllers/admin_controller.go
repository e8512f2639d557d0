package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mn-address-parser/app/models"
	"github.com/mn-address-parser/app/requests"
	"github.com/mn-address-parser/app/responses"
	"github.com/mn-address-parser/app/services"
	"go.uber.org/zap"
)

// AdminController serves the /v1/admin endpoints and the alias table.
type AdminController struct {
	adminService  *services.AdminService
	reviewService *services.ReviewService
	logger        *zap.Logger
}

// NewAdminController creates the controller. reviewService may be nil when
// the review queue is disabled.
func NewAdminController(adminService *services.AdminService, reviewService *services.ReviewService, logger *zap.Logger) *AdminController {
	return &AdminController{
		adminService:  adminService,
		reviewService: reviewService,
		logger:        logger,
	}
}

func success(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, responses.SuccessResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// ListDistricts returns the alias table in use.
func (ac *AdminController) ListDistricts(c *gin.Context) {
	table := ac.adminService.Table()
	c.JSON(http.StatusOK, gin.H{
		"version":      table.Version(),
		"city":         table.City(),
		"city_markers": table.CityMarkers(),
		"districts":    table.Districts(),
		"alias_count":  table.AliasCount(),
	})
}

// SeedGazetteer pushes the alias table to Mongo and Meilisearch.
// ?dry_run=true only validates.
func (ac *AdminController) SeedGazetteer(c *gin.Context) {
	startTime := time.Now()
	validation := ac.adminService.ValidateGazetteer()

	if c.Query("dry_run") == "true" {
		c.JSON(http.StatusOK, responses.SeedGazetteerResponse{
			GazetteerVersion: ac.adminService.Table().Version(),
			ValidationPassed: validation.Passed,
			Warnings:         validation.Warnings,
			UnitsProcessed:   validation.Units,
			ProcessingTimeMs: time.Since(startTime).Milliseconds(),
			DryRun:           true,
			Message:          "validation finished",
		})
		return
	}

	result, err := ac.adminService.SeedGazetteer(c.Request.Context())
	if err != nil {
		ac.logger.Error("gazetteer seed failed", zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "SEED_ERROR", err.Error())
		return
	}

	c.JSON(http.StatusOK, responses.SeedGazetteerResponse{
		GazetteerVersion: result.GazetteerVersion,
		ValidationPassed: validation.Passed,
		Warnings:         result.Warnings,
		UnitsProcessed:   result.UnitsProcessed,
		IndexesBuilt:     result.IndexesBuilt,
		ProcessingTimeMs: result.ProcessingTimeMs,
		Message:          "gazetteer seeded",
	})
}

// RebuildSynonyms pushes learned aliases to the search index.
func (ac *AdminController) RebuildSynonyms(c *gin.Context) {
	startTime := time.Now()

	groups, err := ac.adminService.RebuildSynonyms(c.Request.Context())
	if err != nil {
		ac.searchError(c, "REBUILD_ERROR", err)
		return
	}

	success(c, "synonyms rebuilt", gin.H{
		"synonym_groups":     groups,
		"processing_time_ms": time.Since(startTime).Milliseconds(),
	})
}

// AddLearnedAlias stores another spelling of a district.
func (ac *AdminController) AddLearnedAlias(c *gin.Context) {
	var req requests.LearnedAliasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request: "+err.Error())
		return
	}

	alias, err := ac.adminService.AddLearnedAlias(c.Request.Context(), req.Alias, req.District, req.Confidence, req.Source)
	if err != nil {
		if errors.Is(err, services.ErrUnknownDistrict) {
			errorJSON(c, http.StatusUnprocessableEntity, "UNKNOWN_DISTRICT", err.Error())
			return
		}
		ac.logger.Error("failed to add learned alias", zap.Error(err))
		errorJSON(c, http.StatusBadRequest, "ALIAS_ERROR", err.Error())
		return
	}

	c.JSON(http.StatusCreated, responses.SuccessResponse{
		Success:   true,
		Message:   "alias stored",
		Data:      alias,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// InvalidateCache drops cache entries of other gazetteer versions.
func (ac *AdminController) InvalidateCache(c *gin.Context) {
	startTime := time.Now()

	version, err := ac.adminService.InvalidateCache(c.Request.Context())
	if err != nil {
		ac.logger.Error("cache invalidation failed", zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "INVALIDATE_ERROR", err.Error())
		return
	}

	ac.logger.Info("cache invalidated",
		zap.String("kept_version", version),
		zap.Duration("duration", time.Since(startTime)))
	success(c, "cache invalidated", gin.H{
		"gazetteer_version":  version,
		"processing_time_ms": time.Since(startTime).Milliseconds(),
	})
}

// GetStats reports the service counters.
func (ac *AdminController) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, ac.adminService.GetSystemStats(c.Request.Context()))
}

// BuildIndexes applies the search index settings.
func (ac *AdminController) BuildIndexes(c *gin.Context) {
	startTime := time.Now()

	if err := ac.adminService.BuildIndexes(c.Request.Context()); err != nil {
		ac.searchError(c, "BUILD_ERROR", err)
		return
	}

	success(c, "indexes built", gin.H{
		"processing_time_ms": time.Since(startTime).Milliseconds(),
	})
}

func (ac *AdminController) searchError(c *gin.Context, code string, err error) {
	if errors.Is(err, services.ErrSearchDisabled) {
		errorJSON(c, http.StatusServiceUnavailable, "SEARCH_DISABLED", err.Error())
		return
	}
	ac.logger.Error("search index operation failed", zap.Error(err))
	errorJSON(c, http.StatusInternalServerError, code, err.Error())
}

// ExportData downloads districts, learned_aliases or address_cache.
func (ac *AdminController) ExportData(c *gin.Context) {
	dataType := c.Param("type")
	format := c.DefaultQuery("format", services.ExportFormatJSON)

	limit := 10000
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 {
		limit = l
	}

	data, contentType, err := ac.adminService.ExportData(c.Request.Context(), dataType, format, limit)
	switch {
	case errors.Is(err, services.ErrUnsupportedExport):
		errorJSON(c, http.StatusBadRequest, "UNSUPPORTED_EXPORT", err.Error())
		return
	case errors.Is(err, services.ErrStorageDisabled):
		errorJSON(c, http.StatusServiceUnavailable, "STORAGE_DISABLED", err.Error())
		return
	case err != nil:
		ac.logger.Error("export failed", zap.Error(err), zap.String("type", dataType))
		errorJSON(c, http.StatusInternalServerError, "EXPORT_ERROR", err.Error())
		return
	}

	filename := fmt.Sprintf("%s_export_%s.%s", dataType, time.Now().Format("20060102_150405"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}

// ListReviews pages through the review queue.
func (ac *AdminController) ListReviews(c *gin.Context) {
	if !ac.reviewsEnabled(c) {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	status := c.DefaultQuery("status", models.ReviewStatusPending)
	if status == "all" {
		status = ""
	}

	reviews, total, err := ac.reviewService.List(c.Request.Context(), status, limit, offset)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "REVIEW_LIST_ERROR", err.Error())
		return
	}
	counts, err := ac.reviewService.Counts(c.Request.Context())
	if err != nil {
		ac.logger.Warn("failed to count reviews", zap.Error(err))
	}

	c.JSON(http.StatusOK, responses.ReviewListResponse{
		Reviews:  reviews,
		Total:    total,
		Pending:  counts[models.ReviewStatusPending],
		Approved: counts[models.ReviewStatusApproved],
		Limit:    limit,
		Offset:   offset,
	})
}

// ApproveReview accepts a review's automatic result.
func (ac *AdminController) ApproveReview(c *gin.Context) {
	if !ac.reviewsEnabled(c) {
		return
	}

	var req requests.ReviewApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request: "+err.Error())
		return
	}

	review, err := ac.reviewService.Approve(c.Request.Context(), c.Param("id"), req.ReviewerID)
	ac.reviewAction(c, "approve", review, err)
}

// CorrectReview stores a manual result for a review.
func (ac *AdminController) CorrectReview(c *gin.Context) {
	if !ac.reviewsEnabled(c) {
		return
	}

	var req requests.ReviewCorrectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request: "+err.Error())
		return
	}

	review, err := ac.reviewService.Correct(c.Request.Context(), c.Param("id"), req.ManualResult, req.ReviewerID)
	ac.reviewAction(c, "correct", review, err)
}

func (ac *AdminController) reviewsEnabled(c *gin.Context) bool {
	if ac.reviewService == nil {
		errorJSON(c, http.StatusServiceUnavailable, "REVIEWS_DISABLED", "review queue is disabled")
		return false
	}
	return true
}

func (ac *AdminController) reviewAction(c *gin.Context, action string, review *models.AddressReview, err error) {
	switch {
	case errors.Is(err, services.ErrReviewNotFound):
		errorJSON(c, http.StatusNotFound, "REVIEW_NOT_FOUND", err.Error())
		return
	case errors.Is(err, services.ErrReviewClosed):
		errorJSON(c, http.StatusConflict, "REVIEW_CLOSED", err.Error())
		return
	case err != nil:
		ac.logger.Error("review action failed", zap.Error(err), zap.String("action", action))
		errorJSON(c, http.StatusInternalServerError, "REVIEW_ERROR", err.Error())
		return
	}

	c.JSON(http.StatusOK, responses.ReviewActionResponse{
		Success:   true,
		ReviewID:  review.ID,
		Action:    action,
		Result:    review.FinalResult(),
		Message:   "review " + review.Status,
		UpdatedAt: review.ReviewedAt.Format(time.RFC3339),
	})
}
