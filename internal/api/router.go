package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shauryaverma03/listen-chat-create/internal/config"
	"github.com/shauryaverma03/listen-chat-create/internal/provider"
	"github.com/shauryaverma03/listen-chat-create/internal/ws"
)

// Server holds dependencies for API handlers.
type Server struct {
	cfg      *config.Config
	registry *provider.Registry
}

// NewRouter creates a fully wired Chi router.
func NewRouter(cfg *config.Config, registry *provider.Registry, hub *ws.Hub) *chi.Mux {
	s := &Server{cfg: cfg, registry: registry}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/healthz"))
	r.Use(CORSMiddleware(cfg.AllowedOrigin))

	limiter := NewRateLimiter(10, 30, time.Second)
	r.Use(limiter.Middleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/providers", s.handleProviders)
		r.Post("/tts", s.handleTTS)
		r.Post("/stt", s.handleSTT)
	})

	// WebSocket: the widget's live conversation channel
	r.Get("/ws", hub.ServeWS)

	// SPA static file serving for the widget page
	r.Handle("/*", spaFileServer("web/dist"))

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"chat": provider.Identities(),
		"stt":  s.registry.ListRecognizers(),
		"tts":  s.registry.ListSynthesizers(),
	})
}

// handleTTS is the one-shot synthesis endpoint: widgets that do not hold a
// WebSocket open can still turn reply text into audio.
func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text   string `json:"text"`
		Engine string `json:"engine"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}

	engine := req.Engine
	if engine == "" {
		engine = s.cfg.DefaultSynthesizer
	}

	synth, err := s.registry.Synthesizer(engine)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	reader, contentType, err := synth.Synthesize(r.Context(), req.Text)
	if err != nil {
		slog.Error("speech synthesis failed", "engine", engine, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "synthesis failed"})
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", contentType)
	io.Copy(w, reader)
}

// handleSTT is the one-shot transcription endpoint: a whole recording is
// uploaded and recognized in a single session.
func (s *Server) handleSTT(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil { // 10MB limit
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	file, _, err := r.FormFile("audio")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "audio file is required"})
		return
	}
	defer file.Close()

	engine := r.FormValue("engine")
	if engine == "" {
		engine = s.cfg.DefaultRecognizer
	}

	recognizer, err := s.registry.Recognizer(engine)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	sess, err := recognizer.NewSession(r.Context())
	if err != nil {
		slog.Error("speech recognition session failed", "engine", engine, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "transcription failed"})
		return
	}

	if _, err := io.Copy(sessionWriter{sess}, file); err != nil {
		slog.Error("reading audio upload failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "transcription failed"})
		return
	}

	text, err := sess.Close()
	if err != nil {
		slog.Error("speech recognition failed", "engine", engine, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "transcription failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

// sessionWriter adapts a RecognitionSession to io.Writer for io.Copy.
type sessionWriter struct {
	sess provider.RecognitionSession
}

func (w sessionWriter) Write(p []byte) (int, error) {
	if err := w.sess.Write(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func spaFileServer(distPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Clean(r.URL.Path)
		if path == "/" {
			path = "/index.html"
		}

		fullPath := filepath.Join(distPath, path)

		info, err := os.Stat(fullPath)
		if err != nil || info.IsDir() {
			http.ServeFile(w, r, filepath.Join(distPath, "index.html"))
			return
		}

		switch {
		case strings.HasSuffix(path, ".js"):
			w.Header().Set("Content-Type", "application/javascript")
		case strings.HasSuffix(path, ".css"):
			w.Header().Set("Content-Type", "text/css")
		case strings.HasSuffix(path, ".svg"):
			w.Header().Set("Content-Type", "image/svg+xml")
		}

		http.ServeFile(w, r, fullPath)
	}
}
