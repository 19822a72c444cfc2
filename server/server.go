// Package server exposes the export pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/ByLCY/folio/export"
	"github.com/ByLCY/folio/layout"
	"github.com/ByLCY/folio/logger"
	"github.com/ByLCY/folio/printdoc"
	"github.com/ByLCY/folio/workbook"
)

// DefaultMaxBody 请求体默认上限。
const DefaultMaxBody = 8 << 20

// Options configures a Server.
type Options struct {
	Exporter   *export.Exporter
	Typesetter layout.Typesetter
	// Width is the capture width for templates that do not declare one.
	Width   float64
	MaxBody int64
	Logger  *logger.Logger
}

// Server routes export requests to the exporter.
type Server struct {
	exporter   *export.Exporter
	typesetter layout.Typesetter
	width      float64
	maxBody    int64
	log        *logger.Logger
	router     *mux.Router
}

// New builds the router.
func New(opts Options) *Server {
	s := &Server{
		exporter:   opts.Exporter,
		typesetter: opts.Typesetter,
		width:      opts.Width,
		maxBody:    opts.MaxBody,
		log:        opts.Logger,
	}
	if s.maxBody <= 0 {
		s.maxBody = DefaultMaxBody
	}
	if s.log == nil {
		s.log = logger.Default()
	}
	s.log = s.log.WithComponent("server")

	r := mux.NewRouter()
	r.Use(s.requestLogging)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	exports := r.PathPrefix("/exports").Subrouter()
	exports.Use(s.limitBody)
	exports.HandleFunc("/pdf", s.handlePDF).Methods(http.MethodPost)
	exports.HandleFunc("/xlsx", s.handleWorkbook).Methods(http.MethodPost)
	exports.HandleFunc("/print", s.handlePrint).Methods(http.MethodPost)
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

// HTTPServer wraps the handler with timeouts.
func (s *Server) HTTPServer(addr string, read, write time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       read,
		WriteTimeout:      write,
	}
}

// PDFBody is the body of POST /exports/pdf.
type PDFBody struct {
	Target   string `json:"target"`
	Filename string `json:"filename"`
	// Template 为报表 DSL 源码。
	Template string `json:"template"`
	Data     any    `json:"data"`
}

// WorkbookBody is the body of POST /exports/xlsx.
type WorkbookBody struct {
	Target   string           `json:"target"`
	Filename string           `json:"filename"`
	Sheets   []workbook.Sheet `json:"sheets"`
}

// PrintBody is the body of POST /exports/print.
type PrintBody struct {
	Target string                       `json:"target"`
	Model  printdoc.ReportTemplateModel `json:"model"`
}

type errorBody struct {
	Kind    export.Kind `json:"kind,omitempty"`
	Op      string      `json:"op,omitempty"`
	Message string      `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePDF(w http.ResponseWriter, r *http.Request) {
	var body PDFBody
	if !s.decode(w, r, &body, false) {
		return
	}
	if strings.TrimSpace(body.Template) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "template is required"})
		return
	}
	capture, err := layout.Compile(strings.NewReader(body.Template), body.Data, layout.BuildOptions{
		Typesetter:   s.typesetter,
		DefaultWidth: s.width,
	})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Op: "pdf", Message: err.Error()})
		return
	}
	target := body.Target
	if target == "" {
		target = capture.Name
	}
	out, err := s.exporter.PDF(r.Context(), export.PDFRequest{
		Target:   target,
		Root:     capture.Root,
		Filename: body.Filename,
		Meta:     capture.Meta,
		Page:     &capture.Page,
	})
	s.respond(w, r, out, err)
}

func (s *Server) handleWorkbook(w http.ResponseWriter, r *http.Request) {
	var body WorkbookBody
	if !s.decode(w, r, &body, true) {
		return
	}
	out, err := s.exporter.Workbook(r.Context(), export.WorkbookRequest{
		Target:   body.Target,
		Filename: body.Filename,
		Sheets:   body.Sheets,
	})
	s.respond(w, r, out, err)
}

func (s *Server) handlePrint(w http.ResponseWriter, r *http.Request) {
	var body PrintBody
	if !s.decode(w, r, &body, false) {
		return
	}
	out, err := s.exporter.Print(r.Context(), export.PrintRequest{Target: body.Target, Model: body.Model})
	s.respond(w, r, out, err)
}

// decode 读取 JSON 请求体；numbers 为 true 时保留 json.Number 以免丢失整数精度。
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any, numbers bool) bool {
	dec := json.NewDecoder(r.Body)
	if numbers {
		dec.UseNumber()
	}
	if err := dec.Decode(v); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, errorBody{Message: fmt.Sprintf("invalid request body: %v", err)})
		return false
	}
	return true
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, out *export.Outcome, err error) {
	if err != nil {
		status, body := failure(err)
		if status >= http.StatusInternalServerError {
			s.log.WithContext(r.Context()).Errorw("export failed", "path", r.URL.Path, "error", err)
		}
		writeJSON(w, status, body)
		return
	}
	h := w.Header()
	h.Set("Content-Type", out.ContentType)
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": out.Filename}))
	h.Set("Content-Length", strconv.Itoa(len(out.Data)))
	h.Set("X-Export-Id", out.ExportID)
	if out.Pages > 0 {
		h.Set("X-Export-Pages", strconv.Itoa(out.Pages))
	}
	if out.Location != "" {
		h.Set("X-Export-Location", out.Location)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Data)
}

// failure maps an export error onto a status code.
func failure(err error) (int, errorBody) {
	if errors.Is(err, export.ErrBusy) {
		return http.StatusConflict, errorBody{Message: err.Error()}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable, errorBody{Message: err.Error()}
	}
	var e *export.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError, errorBody{Message: err.Error()}
	}
	body := errorBody{Kind: e.Kind, Op: e.Op, Message: e.Err.Error()}
	switch e.Kind {
	case export.KindCapture:
		return http.StatusUnprocessableEntity, body
	case export.KindPopupBlocked:
		return http.StatusServiceUnavailable, body
	default:
		return http.StatusInternalServerError, body
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// --- middleware ---

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		ctx := logger.WithLogger(r.Context(), s.log)

		next.ServeHTTP(rec, r.WithContext(ctx))

		kv := []any{"method", r.Method, "path", r.URL.Path, "status", rec.status, "duration_ms", time.Since(start).Milliseconds()}
		switch {
		case rec.status >= 500:
			s.log.Errorw("request", kv...)
		case rec.status >= 400:
			s.log.Warnw("request", kv...)
		default:
			s.log.Infow("request", kv...)
		}
	})
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
		next.ServeHTTP(w, r)
	})
}
