package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"k8s.io/klog/v2"

	"k8s.io/examples/AI/claimmodels/pkg/inference"
	"k8s.io/examples/AI/claimmodels/pkg/models"
)

// DefaultMaxRequestBytes bounds the size of an inference request body.
const DefaultMaxRequestBytes = 8 << 20

// HTTPServer serves the v2 inference REST protocol.
type HTTPServer struct {
	Registry        *models.Registry
	MaxRequestBytes int64

	mux *http.ServeMux
}

func NewHTTPServer(registry *models.Registry) *HTTPServer {
	s := &HTTPServer{
		Registry:        registry,
		MaxRequestBytes: DefaultMaxRequestBytes,
		mux:             http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /v2/health/live", s.serveLive)
	s.mux.HandleFunc("GET /v2/health/ready", s.serveReady)
	s.mux.HandleFunc("GET /v2/models/{name}", s.serveModelMetadata)
	s.mux.HandleFunc("GET /v2/models/{name}/versions/{version}", s.serveModelMetadata)
	s.mux.HandleFunc("GET /v2/models/{name}/ready", s.serveModelReady)
	s.mux.HandleFunc("GET /v2/models/{name}/versions/{version}/ready", s.serveModelReady)
	s.mux.HandleFunc("POST /v2/models/{name}/infer", s.serveInfer)
	s.mux.HandleFunc("POST /v2/models/{name}/versions/{version}/infer", s.serveInfer)
	return s
}

func (s *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := klog.FromContext(r.Context()).WithValues("method", r.Method, "path", r.URL.Path)
	ctx := klog.NewContext(r.Context(), log)

	startedAt := time.Now()
	s.mux.ServeHTTP(w, r.WithContext(ctx))
	log.V(4).Info("served request", "duration", time.Since(startedAt))
}

func (s *HTTPServer) serveLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"live": true})
}

func (s *HTTPServer) serveReady(w http.ResponseWriter, r *http.Request) {
	ready := s.Registry.Ready()
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]bool{"ready": ready})
}

func (s *HTTPServer) serveModelMetadata(w http.ResponseWriter, r *http.Request) {
	model, err := s.Registry.Get(r.PathValue("name"), r.PathValue("version"))
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.Metadata())
}

func (s *HTTPServer) serveModelReady(w http.ResponseWriter, r *http.Request) {
	model, err := s.Registry.Get(r.PathValue("name"), r.PathValue("version"))
	if err != nil {
		writeError(r, w, err)
		return
	}
	ready := model.Ready()
	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"name": model.Name(), "ready": ready})
}

func (s *HTTPServer) serveInfer(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.MaxRequestBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestBytes
	}
	body := http.MaxBytesReader(w, r.Body, maxBytes)

	var req inference.Request
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": err.Error()})
			return
		}
		writeError(r, w, status.Errorf(codes.InvalidArgument, "invalid request payload: %v", err))
		return
	}

	response, err := infer(r.Context(), s.Registry, r.PathValue("name"), r.PathValue("version"), &req)
	if err != nil {
		writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

// httpStatus maps field errors and grpc status codes onto HTTP status codes.
func httpStatus(err error) int {
	if inference.IsFieldError(err) {
		return http.StatusBadRequest
	}
	switch status.Code(err) {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(r *http.Request, w http.ResponseWriter, err error) {
	code := httpStatus(err)
	message := err.Error()
	if st, ok := status.FromError(err); ok && !inference.IsFieldError(err) {
		message = st.Message()
	}
	if code == http.StatusInternalServerError {
		klog.FromContext(r.Context()).Error(err, "error serving request")
		message = "internal server error"
	}
	writeJSON(w, code, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		klog.ErrorS(err, "writing response")
	}
}
