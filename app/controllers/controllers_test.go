package controllers_test

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mn-address-parser/app/controllers"
	"github.com/mn-address-parser/app/models"
	"github.com/mn-address-parser/app/responses"
	"github.com/mn-address-parser/app/services"
	"github.com/mn-address-parser/internal/external"
	"github.com/mn-address-parser/internal/gazetteer"
	"github.com/mn-address-parser/internal/parser"
	"github.com/mn-address-parser/routes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	router  *gin.Engine
	address *services.AddressService
	reviews *services.ReviewService
}

func newTestServer(t *testing.T, withReviews bool, apiMiddleware ...gin.HandlerFunc) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	table := gazetteer.Default()
	p, err := parser.NewAddressParser(table, parser.DefaultOptions(), zap.NewNop())
	require.NoError(t, err)

	cache := services.NewCacheService(0)
	var reviews *services.ReviewService
	if withReviews {
		reviews = services.NewReviewService(services.NewMemoryReviewStore(), cache, table.Version(), zap.NewNop())
	}

	address := services.NewAddressService(p, cache, reviews, nil, services.ServiceOptions{Workers: 2}, zap.NewNop())
	admin := services.NewAdminService(nil, nil, table, cache, reviews, address, zap.NewNop())

	router := gin.New()
	routes.SetupAllRoutes(router,
		controllers.NewAddressController(address, 3, zap.NewNop()),
		controllers.NewAdminController(admin, reviews, zap.NewNop()),
		apiMiddleware...)

	return &testServer{router: router, address: address, reviews: reviews}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestParseAddress(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(http.MethodPost, "/v1/addresses/parse", `{"address":"БЗД 3-р хороо 15-р байр 45 тоот"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp responses.ParseAddressResponse
	decode(t, w, &resp)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, gazetteer.Default().Version(), resp.GazetteerVersion)
	assert.Equal(t, "БАЯНЗҮРХ", resp.Results[0].Result.District)
	assert.True(t, resp.Results[0].Trusted)
	assert.Nil(t, resp.Results[0].Trace)

	w = s.do(http.MethodPost, "/v1/addresses/parse", `{"address":"БЗД 3-р хороо 15-р байр 45 тоот"}`)
	decode(t, w, &resp)
	assert.True(t, resp.CacheHit)
}

func TestParseAddress_Explain(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(http.MethodPost, "/v1/addresses/parse", `{"address":"Bayangol 4h 22 bair 105 toot","options":{"explain":true}}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp responses.ParseAddressResponse
	decode(t, w, &resp)
	require.Len(t, resp.Results, 1)
	assert.NotNil(t, resp.Results[0].Trace)
	assert.Equal(t, "БАЯНГОЛ", resp.Results[0].Result.District)
}

func TestParseAddress_EmptyAddressIsNotAnError(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(http.MethodPost, "/v1/addresses/parse", `{"address":""}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp responses.ParseAddressResponse
	decode(t, w, &resp)
	assert.Equal(t, *models.NewEmptyParsedAddress(), resp.Results[0].Result)
}

func TestParseAddress_BadJSON(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(http.MethodPost, "/v1/addresses/parse", `{"address":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBatchJob(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(http.MethodPost, "/v1/addresses/jobs", `{"addresses":["a","b","c","d"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "TOO_MANY_ADDRESSES")

	w = s.do(http.MethodPost, "/v1/addresses/jobs", `{"addresses":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/v1/addresses/jobs", `{"addresses":["БЗД 3-р хороо 15-р байр 45 тоот","тоот 25"]}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var accepted responses.BatchParseResponse
	decode(t, w, &accepted)
	require.NotEmpty(t, accepted.JobID)
	assert.Equal(t, 2, accepted.TotalAddresses)

	statusPath := "/v1/addresses/jobs/" + accepted.JobID + "/status"
	require.Eventually(t, func() bool {
		w := s.do(http.MethodGet, statusPath, "")
		var status responses.JobStatusResponse
		if json.Unmarshal(w.Body.Bytes(), &status) != nil {
			return false
		}
		return status.Status == services.JobStatusDone
	}, 5*time.Second, 10*time.Millisecond)

	w = s.do(http.MethodGet, "/v1/addresses/jobs/"+accepted.JobID+"/results", "")
	require.Equal(t, http.StatusOK, w.Code)
	var results struct {
		Data []responses.ParseResult `json:"data"`
	}
	decode(t, w, &results)
	require.Len(t, results.Data, 2)
	assert.True(t, results.Data[0].Trusted)
	assert.False(t, results.Data[1].Trusted)

	w = s.do(http.MethodGet, "/v1/addresses/jobs/"+accepted.JobID+"/results?format=ndjson", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))
	assert.Len(t, strings.Split(strings.TrimSpace(w.Body.String()), "\n"), 2)

	w = s.do(http.MethodGet, "/v1/addresses/jobs/"+accepted.JobID+"/results?format=ndjson&gzip=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(plain)), "\n"), 2)
}

func TestJobNotFound(t *testing.T) {
	s := newTestServer(t, false)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/v1/addresses/jobs/nope/status", "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/v1/addresses/jobs/nope/results", "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/v1/addresses/jobs/nope/results?format=ndjson", "").Code)
}

func TestCompare(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(http.MethodPost, "/v1/addresses/compare", `{"address":"БЗД 3-р хороо 15-р байр 45 тоот"}`)
	if external.Available() {
		assert.Equal(t, http.StatusOK, w.Code)
		return
	}
	assert.Equal(t, http.StatusNotImplemented, w.Code)
	assert.Contains(t, w.Body.String(), "LIBPOSTAL_UNAVAILABLE")
}

func TestSuggestDistricts_SearchDisabled(t *testing.T) {
	s := newTestServer(t, false)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/v1/districts/suggest", "").Code)

	w := s.do(http.MethodGet, "/v1/districts/suggest?q=bzd", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "SEARCH_DISABLED")
}

func TestListDistricts(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(http.MethodGet, "/v1/districts", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Version    string `json:"version"`
		AliasCount int    `json:"alias_count"`
		Districts  []struct {
			Name string `json:"name"`
		} `json:"districts"`
	}
	decode(t, w, &body)
	assert.Equal(t, gazetteer.Default().Version(), body.Version)
	assert.Equal(t, gazetteer.Default().AliasCount(), body.AliasCount)
	assert.Len(t, body.Districts, len(gazetteer.Default().Districts()))
}

func TestSeedGazetteer_DryRun(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(http.MethodPost, "/v1/admin/seed?dry_run=true", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp responses.SeedGazetteerResponse
	decode(t, w, &resp)
	assert.True(t, resp.DryRun)
	assert.Equal(t, len(gazetteer.Default().Districts())+1, resp.UnitsProcessed)

	w = s.do(http.MethodPost, "/v1/admin/seed", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAddLearnedAlias(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(http.MethodPost, "/v1/admin/aliases", `{"alias":"бзүрх","district":"БАЯНЗҮРХ"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "БЗҮРХ")

	w = s.do(http.MethodPost, "/v1/admin/aliases", `{"alias":"x","district":"Атлантис"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodPost, "/v1/admin/aliases", `{"district":"БАЯНЗҮРХ"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchAdminEndpoints_Disabled(t *testing.T) {
	s := newTestServer(t, false)

	assert.Equal(t, http.StatusServiceUnavailable, s.do(http.MethodPost, "/v1/admin/meili/synonyms/rebuild", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, s.do(http.MethodPost, "/v1/admin/indexes/build", "").Code)
}

func TestInvalidateCacheAndStats(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(http.MethodPost, "/v1/admin/cache/invalidate", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), gazetteer.Default().Version())

	w = s.do(http.MethodGet, "/v1/admin/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats services.SystemStats
	decode(t, w, &stats)
	assert.Equal(t, gazetteer.Default().Version(), stats.GazetteerVersion)
}

func TestExportData(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(http.MethodGet, "/v1/admin/export/districts?format=yaml", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "districts_export_")

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/v1/admin/export/districts?format=csv", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, s.do(http.MethodGet, "/v1/admin/export/address_cache", "").Code)
}

func TestReviews(t *testing.T) {
	s := newTestServer(t, true)

	w := s.do(http.MethodPost, "/v1/addresses/parse", `{"address":"тоот 25"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/v1/admin/reviews", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list responses.ReviewListResponse
	decode(t, w, &list)
	require.Len(t, list.Reviews, 1)
	assert.Equal(t, int64(1), list.Pending)
	id := list.Reviews[0].ID

	w = s.do(http.MethodGet, "/v1/admin/reviews?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/v1/admin/reviews/"+id+"/correct",
		`{"manual_result":{"district":"БАЯНГОЛ","sub_district_id":4,"building":22,"door":25,"confidence":1},"reviewer_id":"op"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var action responses.ReviewActionResponse
	decode(t, w, &action)
	assert.Equal(t, "БАЯНГОЛ", action.Result.District)
	assert.Equal(t, models.DefaultBlock, action.Result.Block)

	w = s.do(http.MethodPost, "/v1/admin/reviews/"+id+"/approve", `{"reviewer_id":"op"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/v1/admin/reviews/missing/approve", `{"reviewer_id":"op"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// the corrected result now answers from the cache
	w = s.do(http.MethodPost, "/v1/addresses/parse", `{"address":"тоот 25"}`)
	var resp responses.ParseAddressResponse
	decode(t, w, &resp)
	assert.True(t, resp.CacheHit)
	assert.Equal(t, 22, resp.Results[0].Result.Building)
}

func TestReviews_Disabled(t *testing.T) {
	s := newTestServer(t, false)

	assert.Equal(t, http.StatusServiceUnavailable, s.do(http.MethodGet, "/v1/admin/reviews", "").Code)
}

func TestHealthMetricsAndNoRoute(t *testing.T) {
	s := newTestServer(t, false)

	for _, path := range []string{"/health", "/ready", "/live", "/v1/health", "/status"} {
		assert.Equal(t, http.StatusOK, s.do(http.MethodGet, path, "").Code, path)
	}

	w := s.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "total_parsed")

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/nowhere", "").Code)
}

func TestRateLimitCoversAPIOnly(t *testing.T) {
	s := newTestServer(t, false, routes.RateLimit(0.001, 1))

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/v1/districts", "").Code)

	w := s.do(http.MethodGet, "/v1/districts", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")

	for _, path := range []string{"/health", "/v1/health", "/metrics"} {
		assert.Equal(t, http.StatusOK, s.do(http.MethodGet, path, "").Code, path)
	}
}
