// Package api serves spur scenes, charts and mixer tables over HTTP.
package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/spur.analyzer/internal/config"
	"github.com/banshee-data/spur.analyzer/internal/db"
	"github.com/banshee-data/spur.analyzer/internal/harmonics"
	"github.com/banshee-data/spur.analyzer/internal/httputil"
	"github.com/banshee-data/spur.analyzer/internal/monitoring"
	"github.com/banshee-data/spur.analyzer/internal/render"
	"github.com/banshee-data/spur.analyzer/internal/security"
	"github.com/banshee-data/spur.analyzer/internal/spur"
	"github.com/banshee-data/spur.analyzer/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxUploadSize bounds a POSTed mixer table.
const maxUploadSize = 1 * 1024 * 1024

// DefaultLabelDistance is the hover radius for /api/label as a fraction of
// the plot size.
const DefaultLabelDistance = 0.02

type Server struct {
	store  *harmonics.Store
	engine *spur.Engine
	db     *db.DB
	cfg    *config.AnalyzerConfig
}

// NewServer wires the API to the active table store. database may be nil,
// in which case mixer storage and analysis history are unavailable.
func NewServer(store *harmonics.Store, database *db.DB, cfg *config.AnalyzerConfig) *Server {
	if cfg == nil {
		cfg = config.EmptyAnalyzerConfig()
	}
	return &Server{
		store:  store,
		engine: spur.NewEngine(),
		db:     database,
		cfg:    cfg,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/scene", s.handleScene)
	mux.HandleFunc("GET /api/crossings", s.handleCrossings)
	mux.HandleFunc("GET /api/label", s.handleLabel)
	mux.HandleFunc("GET /api/chart", s.handleChart)
	mux.HandleFunc("GET /api/plot.png", s.handlePlot("png", "image/png"))
	mux.HandleFunc("GET /api/plot.svg", s.handlePlot("svg", "image/svg+xml"))
	mux.HandleFunc("GET /api/table", s.handleGetTable)
	mux.HandleFunc("POST /api/table", s.handlePostTable)
	mux.HandleFunc("DELETE /api/table", s.handleResetTable)
	mux.HandleFunc("GET /api/mixers", s.handleListMixers)
	mux.HandleFunc("DELETE /api/mixers/{name}", s.handleDeleteMixer)
	mux.HandleFunc("POST /api/mixers/{name}/activate", s.handleActivateMixer)
	mux.HandleFunc("GET /api/analyses", s.handleAnalyses)
	mux.HandleFunc("GET /api/about", s.handleAbout)
	return mux
}

// params starts from the configured defaults and applies any query
// overrides.
func (s *Server) params(r *http.Request) (spur.Params, error) {
	p := s.cfg.Params()
	var err error
	floats := []struct {
		name string
		dst  *float64
	}{
		{"rf_min", &p.RFMin},
		{"rf_max", &p.RFMax},
		{"if_min", &p.IFMin},
		{"if_max", &p.IFMax},
		{"lo", &p.LO},
	}
	for _, f := range floats {
		if *f.dst, err = httputil.QueryFloat(r, f.name, *f.dst); err != nil {
			return p, err
		}
	}
	if p.MaxHarm, err = httputil.QueryInt(r, "max_harm", p.MaxHarm); err != nil {
		return p, err
	}
	if p.UseAlpha, err = httputil.QueryBool(r, "use_alpha", p.UseAlpha); err != nil {
		return p, err
	}
	return p, nil
}

// compute builds the scene for r against the active table and records it in
// the analysis history.
func (s *Server) compute(r *http.Request) (*spur.Scene, string, error) {
	p, err := s.params(r)
	if err != nil {
		return nil, "", err
	}
	table, source := s.store.Snapshot()
	scene := s.engine.Compute(p, table)
	if s.db != nil {
		if _, err := s.db.RecordAnalysis(scene, source); err != nil {
			monitoring.Logf("failed to record analysis: %v", err)
		}
	}
	return scene, source, nil
}

func (s *Server) renderOptions(source string) render.Options {
	return render.Options{
		Unit:     s.cfg.GetUnits(),
		Source:   source,
		WidthIn:  s.cfg.GetPlotWidthIn(),
		HeightIn: s.cfg.GetPlotHeightIn(),
	}
}

type sceneResponse struct {
	Source string `json:"source"`
	Unit   string `json:"unit"`
	*spur.Scene
}

func (s *Server) handleScene(w http.ResponseWriter, r *http.Request) {
	scene, source, err := s.compute(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, sceneResponse{Source: source, Unit: s.cfg.GetUnits(), Scene: scene})
}

type crossingsResponse struct {
	Source    string      `json:"source"`
	Params    spur.Params `json:"params"`
	Crossings []spur.Line `json:"crossings"`
}

func (s *Server) handleCrossings(w http.ResponseWriter, r *http.Request) {
	scene, source, err := s.compute(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	crossings := scene.Crossings()
	if crossings == nil {
		crossings = []spur.Line{}
	}
	httputil.WriteJSONOK(w, crossingsResponse{Source: source, Params: scene.Params, Crossings: crossings})
}

func (s *Server) handleLabel(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("rf") == "" || q.Get("if") == "" {
		httputil.BadRequest(w, "rf and if are required")
		return
	}
	rf, err := httputil.QueryFloat(r, "rf", 0)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	ifreq, err := httputil.QueryFloat(r, "if", 0)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	maxDist, err := httputil.QueryFloat(r, "max_dist", DefaultLabelDistance)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	p, err := s.params(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	scene := s.engine.Compute(p, s.store.Table())
	hit, ok := scene.Nearest(rf, ifreq, maxDist)
	if !ok {
		httputil.NotFound(w, fmt.Sprintf("no line near RF=%g IF=%g", rf, ifreq))
		return
	}
	httputil.WriteJSONOK(w, hit)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	scene, source, err := s.compute(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	var buf bytes.Buffer
	if err := render.WriteHTML(&buf, scene, s.renderOptions(source)); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteBody(w, "text/html; charset=utf-8", buf.Bytes())
}

func (s *Server) handlePlot(format, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scene, source, err := s.compute(r)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		var buf bytes.Buffer
		if err := render.WritePlot(&buf, scene, format, s.renderOptions(source)); err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteBody(w, contentType, buf.Bytes())
	}
}

type tableResponse struct {
	Source string      `json:"source"`
	Size   int         `json:"size"`
	Rows   [][]float64 `json:"rows,omitempty"`
}

func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	t, source := s.store.Snapshot()
	httputil.WriteJSONOK(w, tableResponse{Source: source, Size: t.Size(), Rows: t.Rows()})
}

// handlePostTable replaces the active table with the CSV request body. The
// name query parameter labels the upload; it defaults to "upload.csv".
func (s *Server) handlePostTable(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "upload.csv"
	}
	body := http.MaxBytesReader(w, r.Body, maxUploadSize)
	t, err := s.store.LoadReader(name, body)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if s.db != nil {
		if err := s.db.SaveMixer(security.MixerName(name), name, t); err != nil {
			monitoring.Logf("failed to store mixer %s: %v", name, err)
		}
	}
	httputil.WriteJSONOK(w, tableResponse{Source: name, Size: t.Size()})
}

// handleResetTable restores the built-in default table.
func (s *Server) handleResetTable(w http.ResponseWriter, r *http.Request) {
	s.store.Reset()
	t, source := s.store.Snapshot()
	httputil.WriteJSONOK(w, tableResponse{Source: source, Size: t.Size()})
}

func (s *Server) requireDB(w http.ResponseWriter) bool {
	if s.db == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "database not configured")
		return false
	}
	return true
}

func (s *Server) handleListMixers(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	mixers, err := s.db.ListMixers()
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if mixers == nil {
		mixers = []db.Mixer{}
	}
	httputil.WriteJSONOK(w, mixers)
}

func (s *Server) handleActivateMixer(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	name := r.PathValue("name")
	m, err := s.db.Mixer(name)
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	t, err := m.Table()
	if err != nil {
		monitoring.Warnf("file not compatible with spur analyzer: %v", err)
		httputil.BadRequest(w, err.Error())
		return
	}
	s.store.Replace(t, m.Source)
	httputil.WriteJSONOK(w, tableResponse{Source: m.Source, Size: t.Size()})
}

func (s *Server) handleDeleteMixer(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	name := r.PathValue("name")
	err := s.db.DeleteMixer(name)
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAnalyses(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	limit, err := httputil.QueryInt(r, "limit", db.DefaultHistoryLimit)
	if err != nil || limit < 1 {
		httputil.BadRequest(w, "invalid 'limit' parameter")
		return
	}
	history, err := s.db.RecentAnalyses(limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if history == nil {
		history = []db.Analysis{}
	}
	httputil.WriteJSONOK(w, history)
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, version.Info())
}
