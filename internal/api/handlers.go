package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/catalog"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/history"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/passes"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/predict"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/tle"
)

const (
	predictTimeout = 45 * time.Second

	defaultDays         = 1.0
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

type handlers struct {
	logger    *slog.Logger
	catalog   *catalog.Catalog
	predictor Predictor
	history   HistoryReader
	chartDir  string
	page      *template.Template
}

// pageData feeds templates/index.html.
type pageData struct {
	Locations       []string
	Spacecraft      []string
	Location        string
	SpacecraftName  string
	Days            float64
	MaxDays         float64
	MinElevationDeg float64
	Mode            string
	Error           string
	Report          *predict.Report
}

func (h *handlers) defaults() pageData {
	cfg := h.predictor.Config()
	d := pageData{
		Locations:       h.catalog.LocationNames(),
		Spacecraft:      h.catalog.SpacecraftNames(),
		Days:            defaultDays,
		MaxDays:         cfg.MaxDays,
		MinElevationDeg: cfg.MinElevationDeg,
		Mode:            cfg.Mode.String(),
	}
	if len(d.Locations) > 0 {
		d.Location = d.Locations[0]
	}
	if len(d.Spacecraft) > 0 {
		d.SpacecraftName = d.Spacecraft[0]
	}
	return d
}

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, http.StatusOK, h.defaults())
}

// generateParams is a parsed /generate query.
type generateParams struct {
	req  predict.Request
	page pageData
}

func (h *handlers) parseGenerate(r *http.Request) (generateParams, error) {
	q := r.URL.Query()
	p := generateParams{page: h.defaults()}

	loc, err := h.catalog.LookupLocation(q.Get("location"))
	if err != nil {
		return p, err
	}
	p.req.Location = loc
	p.page.Location = loc.Name

	sc, err := h.catalog.LookupSpacecraft(q.Get("spacecraft"))
	if err != nil {
		return p, err
	}
	p.req.Spacecraft = sc
	p.page.SpacecraftName = sc.Name

	p.req.Days = defaultDays
	if v := q.Get("duration"); v != "" {
		days, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return p, fmt.Errorf("duration %q is not a number", v)
		}
		p.req.Days = days
	}
	p.page.Days = p.req.Days

	if v := q.Get("min_el"); v != "" {
		minEl, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return p, fmt.Errorf("min_el %q is not a number", v)
		}
		p.req.MinElevationDeg = &minEl
		p.page.MinElevationDeg = minEl
	}

	if v := q.Get("mode"); v != "" {
		mode, err := passes.ParseMode(v)
		if err != nil {
			return p, err
		}
		p.req.Mode = &mode
		p.page.Mode = mode.String()
	}

	if v := q.Get("start"); v != "" {
		start, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return p, fmt.Errorf("start %q is not an RFC 3339 time", v)
		}
		p.req.Start = start
	}
	return p, nil
}

// generate runs a prediction and answers with the HTML page, or JSON when
// the client asks for it.
func (h *handlers) generate(w http.ResponseWriter, r *http.Request) {
	asJSON := wantsJSON(r)

	params, err := h.parseGenerate(r)
	if err != nil {
		h.fail(w, asJSON, http.StatusBadRequest, err.Error(), params.page)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), predictTimeout)
	defer cancel()

	report, err := h.predictor.Predict(ctx, params.req)
	if err != nil {
		status := statusFor(err)
		h.logger.Warn("prediction failed",
			"component", "api",
			"location", params.req.Location.Name,
			"norad_id", params.req.Spacecraft.NORADID,
			"status", status,
			"error", err,
		)
		h.fail(w, asJSON, status, err.Error(), params.page)
		return
	}

	if asJSON {
		writeJSON(w, http.StatusOK, report)
		return
	}
	params.page.Report = &report
	h.renderPage(w, http.StatusOK, params.page)
}

// statusFor maps prediction errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, predict.ErrInvalidRequest), errors.Is(err, catalog.ErrUnknown):
		return http.StatusBadRequest
	case errors.Is(err, tle.ErrUnavailable), errors.Is(err, tle.ErrNotFound):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) fail(w http.ResponseWriter, asJSON bool, status int, msg string, page pageData) {
	if asJSON {
		writeError(w, status, msg)
		return
	}
	page.Error = msg
	h.renderPage(w, status, page)
}

func (h *handlers) renderPage(w http.ResponseWriter, status int, data pageData) {
	var buf bytes.Buffer
	if err := h.page.Execute(&buf, data); err != nil {
		h.logger.Error("template execution failed", "component", "api", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// chart serves a rendered PNG. Names are unique per run, so they can be
// cached.
func (h *handlers) chart(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("file")
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".png" {
		writeError(w, http.StatusNotFound, "chart not found")
		return
	}

	path := filepath.Join(h.chartDir, name)
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "chart not found")
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	http.ServeFile(w, r, path)
}

func (h *handlers) catalogJSON(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog)
}

func (h *handlers) historyJSON(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxHistoryLimit {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be an integer in [1, %d]", maxHistoryLimit))
			return
		}
		limit = n
	}

	runs, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("history query failed", "component", "api", "error", err)
		writeError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func wantsJSON(r *http.Request) bool {
	return r.URL.Query().Get("format") == "json" ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
