package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/epw-climate-service/internal/domain"
	"github.com/couchcryptid/epw-climate-service/internal/memo"
	"github.com/couchcryptid/epw-climate-service/internal/observability"
	"github.com/couchcryptid/epw-climate-service/internal/pipeline"
)

type api struct {
	pipeline       *pipeline.Pipeline
	counter        memo.ThresholdCounter
	maxUploadBytes int64
	logger         *slog.Logger
	metrics        *observability.Metrics
}

type seriesResponse struct {
	Series []domain.Summary `json:"series"`
}

type compareResponse struct {
	Labels []string               `json:"labels"`
	Month  int                    `json:"month,omitempty"`
	Rows   []domain.ComparisonRow `json:"rows"`
}

type thresholdCount struct {
	Label        string `json:"label"`
	Count        int    `json:"count"`
	Observations int    `json:"observations"`
}

type thresholdResponse struct {
	Threshold float64          `json:"threshold_c"`
	Month     int              `json:"month,omitempty"`
	Counts    []thresholdCount `json:"counts"`
}

type uploadResult struct {
	File         string `json:"file"`
	Label        string `json:"label,omitempty"`
	OK           bool   `json:"ok"`
	Observations int    `json:"observations,omitempty"`
	Dropped      int    `json:"dropped_rows,omitempty"`
	Kind         string `json:"kind,omitempty"`
	Error        string `json:"error,omitempty"`
}

type uploadResponse struct {
	Results []uploadResult `json:"results"`
}

func (a *api) handleSeries(w http.ResponseWriter, _ *http.Request) {
	all := a.pipeline.Series().All()
	resp := seriesResponse{Series: make([]domain.Summary, len(all))}
	for i, s := range all {
		resp.Series[i] = domain.Summarize(s)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *api) handleCompare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	month, err := monthParam(q.Get("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	series, err := a.pipeline.Series().Select(q["label"]...)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	table := domain.Align(series...)
	if month != 0 {
		if table, err = domain.FilterTableByMonth(table, month); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	resp := compareResponse{Labels: table.Labels(), Month: month, Rows: table.Rows()}
	if resp.Rows == nil {
		resp.Rows = []domain.ComparisonRow{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *api) handleThreshold(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	threshold, err := thresholdParam(q.Get("t"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	month, err := monthParam(q.Get("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	series, err := a.pipeline.Series().Select(q["label"]...)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := thresholdResponse{Threshold: threshold, Month: month, Counts: make([]thresholdCount, 0, len(series))}
	for _, s := range series {
		if month != 0 {
			if s, err = domain.FilterSeriesByMonth(s, month); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		resp.Counts = append(resp.Counts, thresholdCount{
			Label:        s.Label(),
			Count:        a.counter.CountAbove(s, threshold),
			Observations: s.Len(),
		})
	}
	a.metrics.ThresholdQueries.Inc()
	writeJSON(w, http.StatusOK, resp)
}

func (a *api) handleUploads(w http.ResponseWriter, r *http.Request) {
	year, err := yearParam(r.URL.Query().Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if r.ContentLength > a.maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", a.maxUploadBytes))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes)
	if err := r.ParseMultipartForm(a.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", a.maxUploadBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck // temp file cleanup

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, `no files in form field "files"`)
		return
	}

	sources := make([]pipeline.Source, len(headers))
	for i, fh := range headers {
		sources[i] = readUpload(filepath.Base(fh.Filename), fh.Open)
	}

	results := a.pipeline.Ingest(r.Context(), year, sources)
	resp := uploadResponse{Results: make([]uploadResult, len(results))}
	for i, res := range results {
		out := uploadResult{File: res.Name, Label: res.Label, OK: res.OK(), Dropped: res.Stats.Dropped}
		if res.OK() {
			out.Observations = res.Series.Len()
		} else {
			out.Kind = res.Kind()
			out.Error = res.Err.Error()
		}
		resp.Results[i] = out
	}
	a.logger.Info("uploads ingested", "files", len(results))
	writeJSON(w, http.StatusOK, resp)
}

// readUpload buffers one multipart file. A part that cannot be read becomes
// a source whose Open fails, so it is reported next to the other files.
func readUpload(name string, open func() (multipart.File, error)) pipeline.Source {
	f, err := open()
	if err != nil {
		return unreadableUpload{name: name, err: fmt.Errorf("open multipart part: %w", err)}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return unreadableUpload{name: name, err: fmt.Errorf("read multipart part: %w", err)}
	}
	return pipeline.BytesSource{Filename: name, Data: data}
}

type unreadableUpload struct {
	name string
	err  error
}

func (u unreadableUpload) Name() string { return u.name }

func (u unreadableUpload) Open(context.Context) (io.ReadCloser, error) { return nil, u.err }

// monthParam returns 0 when the parameter is absent.
func monthParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	m, err := strconv.Atoi(s)
	if err != nil || m < 1 || m > 12 {
		return 0, fmt.Errorf("month must be an integer 1-12, got %q", s)
	}
	return m, nil
}

func thresholdParam(s string) (float64, error) {
	if s == "" {
		return 0, errors.New(`missing threshold parameter "t"`)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("threshold must be a finite number, got %q", s)
	}
	return v, nil
}

// yearParam returns 0 when the parameter is absent, meaning the baseline year.
func yearParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	y, err := strconv.Atoi(s)
	if err != nil || y < 1 || y > 9998 {
		return 0, fmt.Errorf("year must be an integer 1-9998, got %q", s)
	}
	return y, nil
}
