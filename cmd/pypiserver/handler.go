// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/pypiserver/lib/pkgmeta"
	"github.com/bureau-foundation/pypiserver/lib/simpleindex"
)

// multipartMemory is how much of an upload ParseMultipartForm keeps in
// memory before spilling to a temporary file.
const multipartMemory = 32 << 20

// Registry is the part of *registry.Registry the handler uses.
type Registry interface {
	Publish(ctx context.Context, upload pkgmeta.Upload) (pkgmeta.Meta, error)
	Replace(ctx context.Context, upload pkgmeta.Upload) (pkgmeta.Meta, error)
	DeleteVersion(ctx context.Context, name, version string) (pkgmeta.Meta, bool, error)
	Get(ctx context.Context, name, version string) (pkgmeta.Package, bool, error)
	Versions(ctx context.Context, name string) ([]pkgmeta.Meta, error)
	All(ctx context.Context) ([]pkgmeta.Meta, error)
}

// HandlerConfig configures NewHandler.
type HandlerConfig struct {
	Registry Registry

	// PackagesPrefix is the URL path artifacts are served under. It
	// begins and ends with "/".
	PackagesPrefix string

	// MaxUploadBytes caps an upload request body.
	MaxUploadBytes int64

	// Gatherer, when set, is served on /metrics.
	Gatherer prometheus.Gatherer

	Logger *slog.Logger
}

// Handler routes registry requests.
type Handler struct {
	registry       Registry
	projector      simpleindex.Projector
	packagesPrefix string
	maxUploadBytes int64
	logger         *slog.Logger
	mux            *http.ServeMux
}

// NewHandler builds the route table.
func NewHandler(config HandlerConfig) (*Handler, error) {
	if config.Registry == nil {
		return nil, pkgmeta.Usage("http handler", "registry is required")
	}
	if config.PackagesPrefix == "" {
		config.PackagesPrefix = "/packages/"
	}
	if config.MaxUploadBytes <= 0 {
		return nil, pkgmeta.Usage("http handler", "max upload size must be positive")
	}
	handler := &Handler{
		registry:       config.Registry,
		projector:      simpleindex.Projector{FilesPrefix: config.PackagesPrefix},
		packagesPrefix: config.PackagesPrefix,
		maxUploadBytes: config.MaxUploadBytes,
		logger:         config.Logger,
		mux:            http.NewServeMux(),
	}
	if handler.logger == nil {
		handler.logger = slog.New(slog.DiscardHandler)
	}

	mux := handler.mux
	mux.Handle("GET /simple/{$}", gzhttp.GzipHandler(http.HandlerFunc(handler.serveRoot)))
	mux.Handle("GET /simple/{project}/{$}", gzhttp.GzipHandler(http.HandlerFunc(handler.serveProject)))
	mux.HandleFunc("GET /simple/{project}", handler.redirectProject)
	mux.HandleFunc("GET "+config.PackagesPrefix+"{project}/{version}/{filename}", handler.serveFile)
	mux.HandleFunc("DELETE "+config.PackagesPrefix+"{project}/{version}", handler.serveDelete)
	mux.HandleFunc("POST /{$}", handler.serveUpload)
	mux.HandleFunc("GET /healthz", func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(writer, "ok")
	})
	if config.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(config.Gatherer, promhttp.HandlerOpts{}))
	}
	return handler, nil
}

func (h *Handler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	start := time.Now()
	recorder := &statusRecorder{ResponseWriter: writer, status: http.StatusOK}
	h.mux.ServeHTTP(recorder, request)
	h.logger.Debug("request",
		"method", request.Method,
		"path", request.URL.Path,
		"status", recorder.status,
		"duration", time.Since(start),
	)
}

func (h *Handler) serveRoot(writer http.ResponseWriter, request *http.Request) {
	metas, err := h.registry.All(request.Context())
	if err != nil {
		h.fail(writer, request, err)
		return
	}
	h.renderIndex(writer, request, "Simple index", h.projector.Root(metas))
}

func (h *Handler) serveProject(writer http.ResponseWriter, request *http.Request) {
	project := request.PathValue("project")
	if pkgmeta.ValidateName(project) != nil {
		http.NotFound(writer, request)
		return
	}
	if normalized := pkgmeta.NormalizeName(project); normalized != project {
		http.Redirect(writer, request, "/simple/"+normalized+"/", http.StatusMovedPermanently)
		return
	}

	metas, err := h.registry.Versions(request.Context(), project)
	if err != nil {
		h.fail(writer, request, err)
		return
	}
	if len(metas) == 0 {
		http.NotFound(writer, request)
		return
	}
	h.renderIndex(writer, request, "Links for "+project, h.projector.Project(metas, project))
}

func (h *Handler) redirectProject(writer http.ResponseWriter, request *http.Request) {
	project := request.PathValue("project")
	if pkgmeta.ValidateName(project) != nil {
		http.NotFound(writer, request)
		return
	}
	http.Redirect(writer, request, "/simple/"+pkgmeta.NormalizeName(project)+"/", http.StatusMovedPermanently)
}

func (h *Handler) serveFile(writer http.ResponseWriter, request *http.Request) {
	project := request.PathValue("project")
	if pkgmeta.ValidateName(project) != nil {
		http.NotFound(writer, request)
		return
	}

	pkg, found, err := h.registry.Get(request.Context(), project, request.PathValue("version"))
	if err != nil {
		h.fail(writer, request, err)
		return
	}
	filename := request.PathValue("filename")
	if !found || simpleindex.Filename(pkg.Meta) != filename {
		http.NotFound(writer, request)
		return
	}

	digest := blake3.Sum256(pkg.Content)
	writer.Header().Set("ETag", `"`+hex.EncodeToString(digest[:])+`"`)
	writer.Header().Set("Content-Type", "application/octet-stream")
	http.ServeContent(writer, request, filename, time.Time{}, bytes.NewReader(pkg.Content))
}

func (h *Handler) serveDelete(writer http.ResponseWriter, request *http.Request) {
	project := request.PathValue("project")
	if pkgmeta.ValidateName(project) != nil {
		http.NotFound(writer, request)
		return
	}

	_, found, err := h.registry.DeleteVersion(request.Context(), project, request.PathValue("version"))
	if err != nil {
		h.fail(writer, request, err)
		return
	}
	if !found {
		http.NotFound(writer, request)
		return
	}
	writer.WriteHeader(http.StatusNoContent)
}

// uploadResponse is the JSON body of a successful upload.
type uploadResponse struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Location string `json:"location"`
	URL      string `json:"url"`
	PURL     string `json:"purl"`
}

func (h *Handler) serveUpload(writer http.ResponseWriter, request *http.Request) {
	request.Body = http.MaxBytesReader(writer, request.Body, h.maxUploadBytes)
	if err := request.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(writer, "upload exceeds the size limit", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(writer, "expected a multipart/form-data upload", http.StatusBadRequest)
		return
	}
	defer request.MultipartForm.RemoveAll()

	action := request.FormValue(":action")
	var publish func(context.Context, pkgmeta.Upload) (pkgmeta.Meta, error)
	switch action {
	case "file_upload":
		publish = h.registry.Publish
	case "file_replace":
		publish = h.registry.Replace
	default:
		http.Error(writer, "unsupported :action "+action, http.StatusBadRequest)
		return
	}

	file, header, err := request.FormFile("content")
	if err != nil {
		http.Error(writer, "missing content file", http.StatusBadRequest)
		return
	}
	content, err := io.ReadAll(file)
	file.Close()
	if err != nil {
		h.fail(writer, request, pkgmeta.Wrap(pkgmeta.KindIOFailure, "reading upload", err))
		return
	}

	meta, err := publish(request.Context(), pkgmeta.Upload{
		Name:     request.FormValue("name"),
		Version:  request.FormValue("version"),
		Filename: header.Filename,
		Content:  content,
	})
	if err != nil {
		h.fail(writer, request, err)
		return
	}

	url := h.packagesPrefix + meta.Name + "/" + meta.Version + "/" + simpleindex.Filename(meta)
	writer.Header().Set("Content-Type", "application/json")
	writer.Header().Set("Location", url)
	writer.WriteHeader(http.StatusCreated)
	json.NewEncoder(writer).Encode(uploadResponse{
		Name:     meta.Name,
		Version:  meta.Version,
		Location: meta.Location,
		URL:      url,
		PURL:     meta.PURL(),
	})
}

// fail writes the status for err's kind. Server-side failures are
// logged; the response body never carries internal paths.
func (h *Handler) fail(writer http.ResponseWriter, request *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"method", request.Method,
			"path", request.URL.Path,
			"kind", string(pkgmeta.KindOf(err)),
			"error", err,
		)
		http.Error(writer, http.StatusText(status), status)
		return
	}
	http.Error(writer, err.Error(), status)
}

func statusFor(err error) int {
	switch pkgmeta.KindOf(err) {
	case pkgmeta.KindInvalid:
		return http.StatusBadRequest
	case pkgmeta.KindConflict:
		return http.StatusConflict
	case pkgmeta.KindNotFound:
		return http.StatusNotFound
	case pkgmeta.KindIOFailure:
		return http.StatusServiceUnavailable
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
