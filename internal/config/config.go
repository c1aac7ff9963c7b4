// Package config handles loading and validating the qadesk configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the root configuration for the qadesk daemon.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Transports TransportsConfig `mapstructure:"transports"`
	Generator  GeneratorConfig  `mapstructure:"generator"`
	Speech     SpeechConfig     `mapstructure:"speech"`
	OCR        OCRConfig        `mapstructure:"ocr"`
	TTS        TTSConfig        `mapstructure:"tts"`
	Session    SessionConfig    `mapstructure:"session"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds the health check server settings.
type ServerConfig struct {
	HealthPort int `mapstructure:"health_port"`
}

// TransportsConfig holds the configuration for each transport layer.
type TransportsConfig struct {
	GRPC GRPCConfig `mapstructure:"grpc"`
	HTTP HTTPConfig `mapstructure:"http"`
}

// GRPCConfig configures the gRPC transport.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HTTPConfig configures the REST transport.
type HTTPConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// GeneratorConfig selects and configures the answer generation backend.
type GeneratorConfig struct {
	Backend string        `mapstructure:"backend"` // "gemini", "openai" or "local"
	Timeout time.Duration `mapstructure:"timeout"`
	Gemini  GeminiConfig  `mapstructure:"gemini"`
	OpenAI  OpenAIConfig  `mapstructure:"openai"`
	Local   LocalConfig   `mapstructure:"local"`
}

// GeminiConfig holds Google Gemini API settings.
type GeminiConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// OpenAIConfig holds OpenAI API settings shared by generation, transcription and speech.
type OpenAIConfig struct {
	APIKey             string `mapstructure:"api_key"`
	BaseURL            string `mapstructure:"base_url"`
	CompletionModel    string `mapstructure:"completion_model"`
	TranscriptionModel string `mapstructure:"transcription_model"`
	SpeechModel        string `mapstructure:"speech_model"`
	Voice              string `mapstructure:"voice"`
}

// LocalConfig holds self-hosted model settings.
type LocalConfig struct {
	WhisperEndpoint string `mapstructure:"whisper_endpoint"`
	WhisperType     string `mapstructure:"whisper_type"` // "openai" (default) or "asr" (ahmetoner/whisper-asr-webservice)
	LLMEndpoint     string `mapstructure:"llm_endpoint"`
	LLMModel        string `mapstructure:"llm_model"` // Ollama model name (e.g., "llama3.2:1b")
	VADFilter       bool   `mapstructure:"vad_filter"`
	Language        string `mapstructure:"language"` // ISO-639-1 default language (e.g., "en", "fr")
}

// SpeechConfig selects the speech recognizer and the microphone capture used by the console.
type SpeechConfig struct {
	Backend        string        `mapstructure:"backend"` // "openai" or "local"
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxClipBytes   int64         `mapstructure:"max_clip_bytes"`
	CaptureCommand []string      `mapstructure:"capture_command"`
	OpenAI         OpenAIConfig  `mapstructure:"openai"`
	Local          LocalConfig   `mapstructure:"local"`
}

// OCRConfig configures optical text extraction.
type OCRConfig struct {
	Binary   string        `mapstructure:"binary"`
	Language string        `mapstructure:"language"`
	Formats  []string      `mapstructure:"formats"`
	MaxBytes int64         `mapstructure:"max_bytes"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// TTSConfig selects and configures the text-to-speech backend.
type TTSConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Backend string        `mapstructure:"backend"` // "piper" or "openai"
	Timeout time.Duration `mapstructure:"timeout"`
	Piper   PiperConfig   `mapstructure:"piper"`
	OpenAI  OpenAIConfig  `mapstructure:"openai"`
}

// PiperConfig holds Piper TTS settings (Wyoming protocol).
//
// For a single Piper instance that serves all languages, set Endpoint.
// For per-language instances, set Endpoints which maps ISO-639-1 codes to
// individual Wyoming TCP endpoints. If both are set, Endpoints takes
// precedence and Endpoint is the fallback.
type PiperConfig struct {
	Endpoint  string            `mapstructure:"endpoint"`
	Endpoints map[string]string `mapstructure:"endpoints"`
	Voices    map[string]string `mapstructure:"voices"`
	Language  string            `mapstructure:"language"`
}

// SessionConfig controls session lifetime in the registry.
type SessionConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	MaxHistory      int           `mapstructure:"max_history"` // 0 keeps every entry
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads the configuration from .env, file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./qadesk.yaml, ./configs/qadesk.yaml, /etc/qadesk/qadesk.yaml.
func Load(configFile string) (*Config, error) {
	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not read .env file", "error", err)
	}

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("qadesk")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/qadesk")
	}

	// Environment variables: QADESK_SERVER_HEALTH_PORT, QADESK_GENERATOR_BACKEND, etc.
	v.SetEnvPrefix("QADESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Env vars and defaults are sufficient without a file.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in sensitive fields (e.g., "${OPENAI_API_KEY}").
	cfg.Generator.Gemini.APIKey = resolveEnvRef(cfg.Generator.Gemini.APIKey)
	if cfg.Generator.Gemini.APIKey == "" {
		cfg.Generator.Gemini.APIKey = os.Getenv("GOOGLE_API_KEY")
	}
	cfg.Generator.OpenAI.APIKey = resolveEnvRef(cfg.Generator.OpenAI.APIKey)
	cfg.Speech.OpenAI.APIKey = resolveEnvRef(cfg.Speech.OpenAI.APIKey)
	cfg.TTS.OpenAI.APIKey = resolveEnvRef(cfg.TTS.OpenAI.APIKey)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("transports.grpc.enabled", true)
	v.SetDefault("transports.grpc.port", 50051)
	v.SetDefault("transports.http.enabled", true)
	v.SetDefault("transports.http.port", 8080)

	v.SetDefault("generator.backend", "gemini")
	v.SetDefault("generator.timeout", 60*time.Second)
	v.SetDefault("generator.gemini.api_key", "${GOOGLE_API_KEY}")
	v.SetDefault("generator.gemini.model", "gemini-1.5-flash")
	v.SetDefault("generator.gemini.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("generator.openai.api_key", "${OPENAI_API_KEY}")
	v.SetDefault("generator.openai.base_url", "https://api.openai.com")
	v.SetDefault("generator.openai.completion_model", "gpt-4o")
	v.SetDefault("generator.local.llm_endpoint", "http://localhost:11434/api/generate")
	v.SetDefault("generator.local.llm_model", "llama3")

	v.SetDefault("speech.backend", "openai")
	v.SetDefault("speech.timeout", 30*time.Second)
	v.SetDefault("speech.max_clip_bytes", 25<<20)
	v.SetDefault("speech.capture_command", []string{"arecord", "-q", "-f", "S16_LE", "-r", "16000", "-c", "1", "-d", "5", "-t", "wav", "-"})
	v.SetDefault("speech.openai.api_key", "${OPENAI_API_KEY}")
	v.SetDefault("speech.openai.base_url", "https://api.openai.com")
	v.SetDefault("speech.openai.transcription_model", "gpt-4o-transcribe")
	v.SetDefault("speech.local.whisper_endpoint", "http://localhost:8000/v1/audio/transcriptions")
	v.SetDefault("speech.local.whisper_type", "openai")
	v.SetDefault("speech.local.vad_filter", false)
	v.SetDefault("speech.local.language", "")

	v.SetDefault("ocr.binary", "tesseract")
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.formats", []string{"jpg", "jpeg", "png"})
	v.SetDefault("ocr.max_bytes", 20<<20)
	v.SetDefault("ocr.timeout", 30*time.Second)

	v.SetDefault("tts.enabled", true)
	v.SetDefault("tts.backend", "piper")
	v.SetDefault("tts.timeout", 30*time.Second)
	v.SetDefault("tts.piper.endpoint", "localhost:10200")
	v.SetDefault("tts.piper.language", "en")
	v.SetDefault("tts.openai.api_key", "${OPENAI_API_KEY}")
	v.SetDefault("tts.openai.base_url", "https://api.openai.com")
	v.SetDefault("tts.openai.speech_model", "tts-1")
	v.SetDefault("tts.openai.voice", "alloy")

	v.SetDefault("session.ttl", 30*time.Minute)
	v.SetDefault("session.cleanup_interval", 5*time.Minute)
	v.SetDefault("session.max_history", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks the loaded configuration. requireTransport is false when the
// daemon runs the console front end only.
func (c *Config) Validate(requireTransport bool) error {
	var errs []error

	switch c.Generator.Backend {
	case "gemini", "openai", "local":
	default:
		errs = append(errs, fmt.Errorf("generator.backend: unknown backend %q", c.Generator.Backend))
	}
	switch c.Speech.Backend {
	case "openai", "local":
	default:
		errs = append(errs, fmt.Errorf("speech.backend: unknown backend %q", c.Speech.Backend))
	}
	if c.TTS.Enabled {
		switch c.TTS.Backend {
		case "piper", "openai":
		default:
			errs = append(errs, fmt.Errorf("tts.backend: unknown backend %q", c.TTS.Backend))
		}
	}

	for name, d := range map[string]time.Duration{
		"generator.timeout": c.Generator.Timeout,
		"speech.timeout":    c.Speech.Timeout,
		"ocr.timeout":       c.OCR.Timeout,
		"tts.timeout":       c.TTS.Timeout,
		"session.ttl":       c.Session.TTL,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s: must be positive, got %s", name, d))
		}
	}
	if c.Session.MaxHistory < 0 {
		errs = append(errs, fmt.Errorf("session.max_history: must not be negative"))
	}
	if len(c.OCR.Formats) == 0 {
		errs = append(errs, fmt.Errorf("ocr.formats: at least one image format is required"))
	}
	if requireTransport && !c.Transports.HTTP.Enabled && !c.Transports.GRPC.Enabled {
		errs = append(errs, fmt.Errorf("no transports enabled: enable http or grpc, or run with --console"))
	}

	return errors.Join(errs...)
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
// An unset variable resolves to "".
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		return os.Getenv(val[2 : len(val)-1])
	}
	return val
}

// SetupLogging configures the global slog logger based on config. Logs go to
// w; the daemon passes os.Stdout and the console front end os.Stderr.
func SetupLogging(cfg LoggingConfig, w io.Writer) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
}
