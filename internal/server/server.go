// Package server provides HTTP and WebSocket handlers
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/GriffinCanCode/screen-roaster/internal/capture"
	"github.com/GriffinCanCode/screen-roaster/internal/config"
	apperrors "github.com/GriffinCanCode/screen-roaster/internal/errors"
	"github.com/GriffinCanCode/screen-roaster/internal/gallery"
	"github.com/GriffinCanCode/screen-roaster/internal/orchestrator"
	"github.com/GriffinCanCode/screen-roaster/internal/trace"
)

// Service is what the handlers need from the orchestrator.
type Service interface {
	DefaultRequest() capture.Request
	Capture(ctx context.Context, req capture.Request) (capture.Result, error)
	Items() gallery.List
	Refresh(ctx context.Context) (gallery.List, error)
	Item(name string) (gallery.SavedImage, error)
	Delete(ctx context.Context, name string) error
	FilePath(name string) (string, error)
	Thumbnail(name string, maxEdge int) ([]byte, error)
	Open(ctx context.Context, name string) error
	Share(name string) (gallery.Handle, error)
	Status() orchestrator.Status
	Events() <-chan gallery.Event
}

// Message types.
type Message struct {
	Type string `json:"type"`
}

type ClientMessage struct {
	Type    string           `json:"type"`
	TraceID string           `json:"trace_id,omitempty"`
	Request *capture.Request `json:"request,omitempty"`
}

type SnapshotMessage struct {
	Type  string         `json:"type"`
	State string         `json:"state"`
	Items []gallery.View `json:"items"`
}

type EventMessage struct {
	Type  string        `json:"type"`
	Event gallery.Event `json:"event"`
}

type CaptureResultMessage struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Path string `json:"path,omitempty"`
	Code string `json:"code,omitempty"`
	Err  string `json:"error,omitempty"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type CaptureResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

type ListResponse struct {
	State string         `json:"state"`
	Items []gallery.View `json:"items"`
}

type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	svc        Service
	cfg        *config.Config
	mu         sync.RWMutex
	conns      map[*websocket.Conn]struct{}
	rateLimits map[*websocket.Conn]*rateLimiter
}

// New creates a server and starts broadcasting gallery events.
func New(svc Service, cfg *config.Config) *Server {
	s := &Server{
		svc:        svc,
		cfg:        cfg,
		conns:      make(map[*websocket.Conn]struct{}),
		rateLimits: make(map[*websocket.Conn]*rateLimiter),
	}
	go s.broadcastEvents()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("POST /api/capture", s.handleCapture)
	mux.HandleFunc("GET /api/capture/status", s.handleStatus)
	mux.HandleFunc("GET /api/screenshots", s.handleList)
	mux.HandleFunc("GET /api/screenshots/{name}", s.handleGet)
	mux.HandleFunc("DELETE /api/screenshots/{name}", s.handleDelete)
	mux.HandleFunc("GET /api/screenshots/{name}/thumbnail", s.handleThumbnail)
	mux.HandleFunc("POST /api/screenshots/{name}/share", s.handleShare)
	mux.HandleFunc("POST /api/screenshots/{name}/open", s.handleOpen)
	mux.HandleFunc("GET /files/{name}", s.handleFile)

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to its HTTP status and a one-line message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ae, ok := apperrors.As(err)
	if !ok {
		ae = apperrors.Wrap(err, apperrors.Internal, "internal error")
	}
	status := ae.HTTPStatus()
	log := trace.Logger(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "path", r.URL.Path, "error", err)
	} else {
		log.Debug("request rejected", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, ErrorBody{Error: ErrorDetail{
		Code:     ae.Code.String(),
		Message:  ae.UserMessage(),
		Metadata: ae.Metadata,
	}})
}

// decodeCaptureRequest reads an optional JSON body. Missing fields fall
// back to the default request.
func (s *Server) decodeCaptureRequest(w http.ResponseWriter, r *http.Request) (capture.Request, error) {
	req := s.svc.DefaultRequest()
	body := http.MaxBytesReader(w, r.Body, MaxRequestBody)
	var in capture.Request
	if err := json.NewDecoder(body).Decode(&in); err != nil {
		if errors.Is(err, io.EOF) {
			return req, nil
		}
		return req, apperrors.Wrap(err, apperrors.InvalidArgument, "invalid capture request")
	}
	if in.Token != "" {
		req.Token = in.Token
	}
	if in.Width < 0 || in.Height < 0 || in.Density < 0 {
		return req, apperrors.New(apperrors.InvalidArgument, "dimensions must not be negative")
	}
	req.Width, req.Height, req.Density = in.Width, in.Height, in.Density
	return req, nil
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	ctx, span := trace.StartSpan(r.Context(), "http.capture")
	defer span.End()

	req, err := s.decodeCaptureRequest(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.svc.Capture(ctx, req)
	span.SetAttr("session_id", res.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CaptureResponse{ID: res.ID, Name: filepath.Base(res.Path), Path: res.Path})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Status())
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	list := s.svc.Items()
	if v := r.URL.Query().Get("refresh"); v == "1" || v == "true" {
		var err error
		if list, err = s.svc.Refresh(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, ListResponse{State: list.State(), Items: list.Views()})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	item, err := s.svc.Item(r.PathValue("name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item.View())
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), r.PathValue("name")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	size := 0
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > MaxThumbnailSize {
			writeError(w, r, apperrors.Newf(apperrors.InvalidArgument, "size must be between 1 and %d", MaxThumbnailSize))
			return
		}
		size = n
	}
	data, err := s.svc.Thumbnail(r.PathValue("name"), size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	h, err := s.svc.Share(r.PathValue("name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Open(r.Context(), r.PathValue("name")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	path, err := s.svc.FilePath(r.PathValue("name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.rateLimits[conn] = &rateLimiter{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		delete(s.rateLimits, conn)
		s.mu.Unlock()
	}()

	baseCtx := r.Context()
	log := trace.Logger(baseCtx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	items := s.svc.Items()
	_ = wsjson.Write(baseCtx, conn, SnapshotMessage{Type: "snapshot", State: items.State(), Items: items.Views()})

	for {
		var msg json.RawMessage
		if err := wsjson.Read(baseCtx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		s.mu.RLock()
		rl := s.rateLimits[conn]
		s.mu.RUnlock()

		if !rl.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			_ = wsjson.Write(baseCtx, conn, ErrorMessage{Type: "error", Message: "rate limit exceeded"})
			continue
		}

		var in ClientMessage
		if err := json.Unmarshal(msg, &in); err != nil {
			continue
		}

		ctx := baseCtx
		if in.TraceID != "" {
			ctx = trace.WithContext(ctx, trace.NewChild(trace.Context{TraceID: in.TraceID}))
		} else {
			ctx, _ = trace.EnsureContext(ctx)
		}

		switch in.Type {
		case "capture":
			s.handleWSCapture(ctx, conn, in.Request)
		case "refresh":
			list, err := s.svc.Refresh(ctx)
			if err != nil {
				_ = wsjson.Write(ctx, conn, ErrorMessage{Type: "error", Message: err.Error()})
				continue
			}
			_ = wsjson.Write(ctx, conn, SnapshotMessage{Type: "snapshot", State: list.State(), Items: list.Views()})
		}
	}
}

func (s *Server) handleWSCapture(ctx context.Context, conn *websocket.Conn, in *capture.Request) {
	ctx, span := trace.StartSpan(ctx, "ws.capture")
	defer span.End()

	req := s.svc.DefaultRequest()
	if in != nil {
		if in.Token != "" {
			req.Token = in.Token
		}
		req.Width, req.Height, req.Density = in.Width, in.Height, in.Density
	}

	res, err := s.svc.Capture(ctx, req)
	out := CaptureResultMessage{Type: "capture_result", ID: res.ID, Path: res.Path}
	if err != nil {
		out.Code = apperrors.CodeOf(err).String()
		out.Err = res.Message()
		if res.Err == nil {
			out.Err = err.Error()
		}
	}
	_ = wsjson.Write(ctx, conn, out)
}

func (s *Server) broadcastEvents() {
	for evt := range s.svc.Events() {
		msg := EventMessage{Type: "gallery", Event: evt}

		s.mu.RLock()
		for conn := range s.conns {
			go func(c *websocket.Conn) {
				ctx, cancel := context.WithTimeout(context.Background(), BroadcastWriteTimeout)
				defer cancel()
				_ = wsjson.Write(ctx, c, msg)
			}(conn)
		}
		s.mu.RUnlock()
	}
}
