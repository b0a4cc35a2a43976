package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/spur.analyzer/internal/config"
	"github.com/banshee-data/spur.analyzer/internal/db"
	"github.com/banshee-data/spur.analyzer/internal/harmonics"
	"github.com/banshee-data/spur.analyzer/internal/monitoring"
	"github.com/banshee-data/spur.analyzer/internal/spur"
	"github.com/banshee-data/spur.analyzer/internal/testutil"
	"github.com/banshee-data/spur.analyzer/internal/version"
)

func setupTestServer(t *testing.T) (*Server, *harmonics.Store, *db.DB) {
	t.Helper()
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	database, err := db.NewDB(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	store := harmonics.NewStore(nil)
	return NewServer(store, database, config.DefaultAnalyzerConfig()), store, database
}

func do(t *testing.T, s *Server, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, r)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func TestHandleScene(t *testing.T) {
	s, _, _ := setupTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/scene?max_harm=2&use_alpha=false", "")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var resp struct {
		Source string        `json:"source"`
		Unit   string        `json:"unit"`
		Params spur.Params   `json:"params"`
		Lines  []spur.Line   `json:"lines"`
		Limits spur.Limits   `json:"limits"`
		Bounds spur.Boundary `json:"boundary"`
	}
	decode(t, rec, &resp)

	assert.Equal(t, harmonics.DefaultSource, resp.Source)
	assert.Equal(t, "MHz", resp.Unit)
	assert.Equal(t, 2, resp.Params.MaxHarm)
	assert.Len(t, resp.Lines, 13)
	for _, l := range resp.Lines {
		assert.Equal(t, 1.0, l.Alpha)
	}
	assert.Equal(t, spur.Limits{XMin: 900, XMax: 1650, YMin: 0, YMax: 550}, resp.Limits)
	assert.Equal(t, "Filter Bounds", resp.Bounds.Label)
}

func TestHandleScene_BadParam(t *testing.T) {
	s, _, _ := setupTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/scene?lo=abc", "")
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)

	var resp map[string]string
	decode(t, rec, &resp)
	assert.Contains(t, resp["error"], "invalid lo")
}

func TestHandleScene_ClampsParams(t *testing.T) {
	s, _, _ := setupTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/scene?lo=-5&max_harm=40", "")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var resp struct {
		Params      spur.Params       `json:"params"`
		Adjustments []spur.Adjustment `json:"adjustments"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, 0.0, resp.Params.LO)
	assert.Equal(t, 10, resp.Params.MaxHarm)
	assert.Len(t, resp.Adjustments, 2)
}

func TestHandleScene_HugeFrequencies(t *testing.T) {
	s, _, _ := setupTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/scene?rf_max=1e308&max_harm=2", "")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var resp struct {
		Params      spur.Params       `json:"params"`
		Lines       []spur.Line       `json:"lines"`
		Adjustments []spur.Adjustment `json:"adjustments"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, spur.MaxFrequency, resp.Params.RFMax)
	assert.Len(t, resp.Lines, 13)
	require.Len(t, resp.Adjustments, 1)
	assert.Equal(t, "rf_max", resp.Adjustments[0].Field)

	rec = do(t, s, http.MethodGet, "/api/plot.png?rf_max=1e308&max_harm=2", "")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
}

func TestHandleCrossings(t *testing.T) {
	s, _, database := setupTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/crossings?if_min=100&if_max=400&max_harm=3", "")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var resp crossingsResponse
	decode(t, rec, &resp)
	require.Len(t, resp.Crossings, 1)
	assert.Equal(t, "2RFx-1LO -60 dBc", resp.Crossings[0].Label)

	rec = do(t, s, http.MethodGet, "/api/crossings?if_min=100&if_max=400&max_harm=2", "")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Contains(t, rec.Body.String(), `"crossings":[]`)

	// Both computations were recorded.
	history, err := database.RecentAnalyses(10)
	require.NoError(t, err)
	require.Len(t, history, 2)
}

func TestHandleLabel(t *testing.T) {
	s, _, _ := setupTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/label?rf=1600&if=400&max_harm=2", "")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var hit spur.Hit
	decode(t, rec, &hit)
	assert.Equal(t, "-1RFx1LO -0 dBc", hit.Label)
	assert.Equal(t, -1, hit.M)
	assert.Equal(t, 1, hit.N)

	rec = do(t, s, http.MethodGet, "/api/label?rf=900&if=275&max_harm=2&max_dist=0.01", "")
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)

	rec = do(t, s, http.MethodGet, "/api/label?rf=900", "")
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)

	rec = do(t, s, http.MethodGet, "/api/label?rf=900&if=x", "")
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestHandleChartAndPlots(t *testing.T) {
	s, _, _ := setupTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/chart?max_harm=1", "")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Mixer Crossing Spurious Analysis")

	rec = do(t, s, http.MethodGet, "/api/plot.png?max_harm=1", "")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec = do(t, s, http.MethodGet, "/api/plot.svg?max_harm=1", "")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<svg")
}

func TestHandleTable(t *testing.T) {
	s, store, database := setupTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/table", "")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var got tableResponse
	decode(t, rec, &got)
	assert.Equal(t, harmonics.DefaultSource, got.Source)
	assert.Equal(t, 11, got.Size)
	assert.Equal(t, 19.0, got.Rows[1][0])

	rec = do(t, s, http.MethodPost, "/api/table?name=ASK%202.csv", testutil.TableCSV(4, 10))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "ASK 2.csv", store.Source())
	assert.Equal(t, 4, store.Table().Size())

	m, err := database.Mixer("ASK_2.csv")
	require.NoError(t, err)
	assert.Equal(t, "ASK 2.csv", m.Source)
	assert.Equal(t, 4, m.Size)
}

func TestHandlePostTable_Malformed(t *testing.T) {
	s, store, database := setupTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/table?name=bad.csv", "1,2\n3,x\n")
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)

	var resp map[string]string
	decode(t, rec, &resp)
	assert.Contains(t, resp["error"], "bad.csv")

	// Previous table stays active and nothing is stored.
	assert.Equal(t, harmonics.DefaultSource, store.Source())
	assert.True(t, store.Table().Equal(harmonics.Default()))
	mixers, err := database.ListMixers()
	require.NoError(t, err)
	assert.Empty(t, mixers)
}

func TestHandleMixers(t *testing.T) {
	s, store, database := setupTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/mixers", "")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "[]\n", rec.Body.String())

	small, err := harmonics.New([][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)
	require.NoError(t, database.SaveMixer("small.csv", "tables/small.csv", small))

	rec = do(t, s, http.MethodGet, "/api/mixers", "")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var list []db.Mixer
	decode(t, rec, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "small.csv", list[0].Name)

	rec = do(t, s, http.MethodPost, "/api/mixers/small.csv/activate", "")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "tables/small.csv", store.Source())
	assert.True(t, store.Table().Equal(small))

	rec = do(t, s, http.MethodPost, "/api/mixers/missing.csv/activate", "")
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)

	rec = do(t, s, http.MethodGet, "/api/mixers/small.csv/activate", "")
	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)

	rec = do(t, s, http.MethodDelete, "/api/mixers/small.csv", "")
	testutil.AssertStatusCode(t, rec.Code, http.StatusNoContent)
	_, err = database.Mixer("small.csv")
	assert.ErrorIs(t, err, db.ErrNotFound)

	rec = do(t, s, http.MethodDelete, "/api/mixers/small.csv", "")
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}

func TestHandleResetTable(t *testing.T) {
	s, store, _ := setupTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/table?name=four.csv", testutil.TableCSV(4, 10))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	require.Equal(t, "four.csv", store.Source())

	rec = do(t, s, http.MethodDelete, "/api/table", "")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var got tableResponse
	decode(t, rec, &got)
	assert.Equal(t, harmonics.DefaultSource, got.Source)
	assert.Equal(t, 11, got.Size)
	assert.True(t, store.Table().Equal(harmonics.Default()))
}

func TestHandleAnalyses(t *testing.T) {
	s, _, _ := setupTestServer(t)

	for i := 0; i < 3; i++ {
		rec := do(t, s, http.MethodGet, "/api/scene?max_harm=1", "")
		testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	}

	rec := do(t, s, http.MethodGet, "/api/analyses?limit=2", "")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var history []db.Analysis
	decode(t, rec, &history)
	require.Len(t, history, 2)
	assert.Equal(t, harmonics.DefaultSource, history[0].MixerSource)
	assert.Equal(t, spur.PairCount(1), history[0].LineCount)

	rec = do(t, s, http.MethodGet, "/api/analyses?limit=0", "")
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestHandleAbout(t *testing.T) {
	s, _, _ := setupTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/about", "")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var about version.About
	decode(t, rec, &about)
	assert.Equal(t, version.Info(), about)
}

func TestServerWithoutDB(t *testing.T) {
	monitoring.SetLogger(nil)
	s := NewServer(harmonics.NewStore(nil), nil, nil)

	rec := do(t, s, http.MethodGet, "/api/scene", "")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	for _, path := range []string{"/api/mixers", "/api/analyses"} {
		rec = do(t, s, http.MethodGet, path, "")
		testutil.AssertStatusCode(t, rec.Code, http.StatusServiceUnavailable)
	}
	rec = do(t, s, http.MethodDelete, "/api/mixers/any.csv", "")
	testutil.AssertStatusCode(t, rec.Code, http.StatusServiceUnavailable)

	rec = do(t, s, http.MethodPost, "/api/table?name=t.csv", "1,2\n3,4\n")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
}

func TestLoggingMiddleware(t *testing.T) {
	var logs []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		logs = append(logs, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scene?lo=1", nil))

	testutil.AssertStatusCode(t, rec.Code, http.StatusTeapot)
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0], "418")
	assert.Contains(t, logs[0], "/api/scene?lo=1")
}

func TestStatusCodeColor(t *testing.T) {
	assert.Equal(t, colorBoldGreen+"200"+colorReset, statusCodeColor(200))
	assert.Equal(t, colorYellow+"304"+colorReset, statusCodeColor(304))
	assert.Equal(t, colorBoldRed+"404"+colorReset, statusCodeColor(404))
	assert.Equal(t, colorBoldRed+"500"+colorReset, statusCodeColor(500))
	assert.Equal(t, "100", statusCodeColor(100))
}
