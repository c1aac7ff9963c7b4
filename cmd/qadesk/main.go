// Qadesk is a multi-modal question answering daemon: questions arrive as
// typed text, recorded speech or text read from an uploaded image, and are
// answered by a generative model, optionally read back as speech.
//
// Usage:
//
//	qadesk [flags]
//	qadesk --config /path/to/qadesk.yaml
//	qadesk --console
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nadzzz/qadesk/internal/answer"
	"github.com/nadzzz/qadesk/internal/config"
	"github.com/nadzzz/qadesk/internal/console"
	"github.com/nadzzz/qadesk/internal/dispatch"
	"github.com/nadzzz/qadesk/internal/health"
	"github.com/nadzzz/qadesk/internal/ocr"
	"github.com/nadzzz/qadesk/internal/provider/gemini"
	localprovider "github.com/nadzzz/qadesk/internal/provider/local"
	openaiprovider "github.com/nadzzz/qadesk/internal/provider/openai"
	"github.com/nadzzz/qadesk/internal/query"
	"github.com/nadzzz/qadesk/internal/session"
	"github.com/nadzzz/qadesk/internal/speech"
	"github.com/nadzzz/qadesk/internal/transport"
	grpctransport "github.com/nadzzz/qadesk/internal/transport/grpc"
	httptransport "github.com/nadzzz/qadesk/internal/transport/http"
	"github.com/nadzzz/qadesk/internal/tts"
	"github.com/nadzzz/qadesk/internal/tts/piper"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configFile := flag.String("config", "", "path to config file (see configs/qadesk.example.yaml)")
	consoleMode := flag.Bool("console", false, "run the interactive terminal front end instead of the network transports")
	flag.Parse()

	if *showVersion {
		fmt.Printf("qadesk %s\n", version)
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(!*consoleMode); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// The console owns stdout, so its logs go to stderr.
	logOut := os.Stdout
	if *consoleMode {
		logOut = os.Stderr
	}
	config.SetupLogging(cfg.Logging, logOut)
	slog.Info("qadesk starting", "version", version)

	// Create root context with signal handling for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize the answer generation backend.
	var model answer.Model
	switch cfg.Generator.Backend {
	case "gemini":
		model = gemini.New(cfg.Generator.Gemini)
		slog.Info("using Gemini generator", "model", cfg.Generator.Gemini.Model)
	case "openai":
		model = openaiprovider.New(cfg.Generator.OpenAI)
		slog.Info("using OpenAI generator", "completion_model", cfg.Generator.OpenAI.CompletionModel)
	case "local":
		model = localprovider.New(cfg.Generator.Local)
		slog.Info("using local generator", "llm", cfg.Generator.Local.LLMEndpoint, "model", cfg.Generator.Local.LLMModel)
	}

	// Initialize the speech recognition backend.
	var recognizer speech.Recognizer
	switch cfg.Speech.Backend {
	case "openai":
		recognizer = openaiprovider.New(cfg.Speech.OpenAI)
		slog.Info("using OpenAI speech recognition", "transcription_model", cfg.Speech.OpenAI.TranscriptionModel)
	case "local":
		recognizer = localprovider.New(cfg.Speech.Local)
		slog.Info("using local speech recognition", "whisper", cfg.Speech.Local.WhisperEndpoint, "type", cfg.Speech.Local.WhisperType)
	}

	// Initialize TTS synthesizer (optional). Left as a nil interface when disabled.
	var synth tts.Synthesizer
	ttsOpts := tts.SynthesizeOpts{Language: cfg.TTS.Piper.Language}
	if cfg.TTS.Enabled {
		switch cfg.TTS.Backend {
		case "piper":
			synth = piper.New(cfg.TTS.Piper)
			slog.Info("TTS enabled", "backend", "piper", "endpoint", cfg.TTS.Piper.Endpoint)
		case "openai":
			synth = openaiprovider.New(cfg.TTS.OpenAI)
			slog.Info("TTS enabled", "backend", "openai", "voice", cfg.TTS.OpenAI.Voice)
		}
	}
	speaker := tts.NewSpeaker(synth, cfg.TTS.Timeout, ttsOpts)
	defer speaker.Close()

	tesseract := ocr.Tesseract{Binary: cfg.OCR.Binary, Language: cfg.OCR.Language}
	deps := session.Deps{
		Normalizer: query.NewNormalizer(speech.NewTranscriber(recognizer, cfg.Speech.Timeout, cfg.Speech.MaxClipBytes, speech.TranscribeOpts{
			Language: cfg.Speech.Local.Language,
		})),
		Generator: answer.NewGenerator(model, cfg.Generator.Timeout),
		Extractor: ocr.NewExtractor(tesseract, cfg.OCR.Formats, cfg.OCR.MaxBytes, cfg.OCR.Timeout),
		Speaker:   speaker,
	}

	if *consoleMode {
		dispatcher := dispatch.New(deps, cfg.Session,
			dispatch.WithCaptureDevice(speech.CommandDevice{Command: cfg.Speech.CaptureCommand}))
		if err := console.New(dispatcher.Handle, os.Stdin, os.Stdout).Run(ctx); err != nil {
			slog.Error("console failed", "error", err)
			os.Exit(1)
		}
		return
	}

	dispatcher := dispatch.New(deps, cfg.Session)

	// Initialize enabled transports.
	var transports []transport.Transport

	if cfg.Transports.GRPC.Enabled {
		transports = append(transports, grpctransport.New(cfg.Transports.GRPC.Port))
	}
	if cfg.Transports.HTTP.Enabled {
		transports = append(transports, httptransport.New(cfg.Transports.HTTP.Port))
	}

	// Start health check server.
	healthServer := health.New(cfg.Server.HealthPort)
	healthServer.SetStats(func() map[string]any {
		return map[string]any{"version": version, "sessions": dispatcher.Sessions()}
	})
	healthServer.AddCheck("ocr", func(context.Context) error {
		_, err := exec.LookPath(cfg.OCR.Binary)
		return err
	})
	healthServer.AddCheck("generator", func(context.Context) error {
		return generatorCredentials(cfg.Generator)
	})
	go func() {
		if err := healthServer.ListenAndServe(ctx); err != nil {
			slog.Error("health server failed", "error", err)
		}
	}()

	// Start all transports.
	var wg sync.WaitGroup
	for _, t := range transports {
		wg.Add(1)
		go func(t transport.Transport) {
			defer wg.Done()
			slog.Info("starting transport", "name", t.Name())
			if err := t.Listen(ctx, dispatcher.Handle); err != nil {
				slog.Error("transport failed", "name", t.Name(), "error", err)
			}
		}(t)
	}

	// Mark as ready once all transports are started.
	healthServer.SetReady(true)
	slog.Info("qadesk ready",
		"transports", len(transports),
		"health_port", cfg.Server.HealthPort,
		"tts", speaker.Enabled())

	// Block until shutdown signal.
	<-ctx.Done()
	slog.Info("shutdown signal received, draining...")

	// Close all transports gracefully.
	for _, t := range transports {
		if err := t.Close(); err != nil {
			slog.Error("transport close error", "name", t.Name(), "error", err)
		}
	}

	wg.Wait()
	slog.Info("qadesk stopped")
}

// generatorCredentials reports a missing API key for hosted generator backends.
func generatorCredentials(cfg config.GeneratorConfig) error {
	switch cfg.Backend {
	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return errors.New("gemini api key missing (set GOOGLE_API_KEY)")
		}
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return errors.New("openai api key missing (set OPENAI_API_KEY)")
		}
	}
	return nil
}
