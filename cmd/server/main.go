package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shauryaverma03/listen-chat-create/internal/api"
	"github.com/shauryaverma03/listen-chat-create/internal/config"
	"github.com/shauryaverma03/listen-chat-create/internal/provider"
	"github.com/shauryaverma03/listen-chat-create/internal/provider/stt"
	"github.com/shauryaverma03/listen-chat-create/internal/provider/tts"
	"github.com/shauryaverma03/listen-chat-create/internal/ws"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Build the voice engine registry
	registry := provider.NewRegistry()
	registerEngines(cfg, registry)

	// Build WebSocket hub: one conversation session per connected widget
	chatHandler := ws.NewChatHandler(cfg, registry)
	hub := ws.NewHub(chatHandler, cfg.AllowedOrigin)

	router := api.NewRouter(cfg, registry, hub)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server stopped")
}

func registerEngines(cfg *config.Config, registry *provider.Registry) {
	// Speech-to-text engines
	if cfg.OpenAIAPIKey != "" {
		registry.RegisterRecognizer(stt.NewWhisperRecognizer(cfg.OpenAIAPIKey))
		slog.Info("registered speech recognizer", "name", "whisper")
	}
	if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" {
		registry.RegisterRecognizer(stt.NewGoogleRecognizer(cfg.SpeechLanguage, "audio/webm"))
		slog.Info("registered speech recognizer", "name", "google")
	}

	// Text-to-speech engines
	if cfg.OpenAIAPIKey != "" {
		registry.RegisterSynthesizer(tts.NewOpenAISynthesizer(cfg.OpenAIAPIKey))
		slog.Info("registered speech synthesizer", "name", "openai")
	}
	if cfg.ElevenLabsAPIKey != "" {
		registry.RegisterSynthesizer(tts.NewElevenLabsSynthesizer(cfg.ElevenLabsAPIKey))
		slog.Info("registered speech synthesizer", "name", "elevenlabs")
	}
}
