package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config stores runtime configuration for the journal backend.
type Config struct {
	Deepgram DeepgramConfig
	Audio    AudioConfig
	Rules    RulesConfig
	Session  SessionConfig
	Backend  BackendConfig
	Storage  StorageConfig
	Log      LogConfig
}

type DeepgramConfig struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
}

type RulesConfig struct {
	Path           string
	IterationLimit int
}

type SessionConfig struct {
	ChunkSize       int
	StreamingGrace  time.Duration
	MaxClipDuration time.Duration
}

type BackendConfig struct {
	BaseURL        string
	Token          string
	TimeoutSeconds int
}

type StorageConfig struct {
	// DBPath is the sqlite cache location; empty means the platform
	// default under the user config directory.
	DBPath        string
	SortAscending bool
}

type LogConfig struct {
	Level  string
	Pretty bool
}

// Load resolves configuration from environment variables and sensible defaults.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	defaultRules := filepath.Join(home, ".config", "moodlog", "transcript.rules")
	rulesPath := strings.TrimSpace(os.Getenv("MOODLOG_RULES_FILE"))
	if rulesPath == "" {
		rulesPath = firstExisting(defaultRules)
	}

	cfg := Config{
		Deepgram: DeepgramConfig{
			APIKey:      strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
			APIBaseURL:  envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:       envOrDefault("DEEPGRAM_MODEL", "nova-2"),
			Language:    strings.TrimSpace(os.Getenv("DEEPGRAM_LANGUAGE")),
			SmartFormat: envOrDefaultBool("DEEPGRAM_SMART_FORMAT", true),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("MOODLOG_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("MOODLOG_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:     envOrDefault("MOODLOG_AUDIO_INPUT_DEVICE", "default"),
			SampleRate:      envOrDefaultInt("MOODLOG_SAMPLE_RATE", 16000),
			Channels:        envOrDefaultInt("MOODLOG_CHANNELS", 1),
		},
		Rules: RulesConfig{
			Path:           rulesPath,
			IterationLimit: envOrDefaultInt("MOODLOG_RULE_ITERATION_LIMIT", 30),
		},
		Session: SessionConfig{
			ChunkSize:       envOrDefaultInt("MOODLOG_AUDIO_CHUNK_SIZE", 4096),
			StreamingGrace:  time.Duration(envOrDefaultInt("MOODLOG_STREAMING_GRACE_MS", 1000)) * time.Millisecond,
			MaxClipDuration: time.Duration(envOrDefaultInt("MOODLOG_MAX_CLIP_SECONDS", 120)) * time.Second,
		},
		Backend: BackendConfig{
			BaseURL:        strings.TrimSpace(os.Getenv("MOODLOG_BACKEND_URL")),
			Token:          strings.TrimSpace(os.Getenv("MOODLOG_BACKEND_TOKEN")),
			TimeoutSeconds: envOrDefaultInt("MOODLOG_BACKEND_TIMEOUT_SECONDS", 60),
		},
		Storage: StorageConfig{
			DBPath:        strings.TrimSpace(os.Getenv("MOODLOG_DB_PATH")),
			SortAscending: envOrDefaultBool("MOODLOG_SORT_ASCENDING", false),
		},
		Log: LogConfig{
			Level:  envOrDefault("MOODLOG_LOG_LEVEL", "info"),
			Pretty: envOrDefaultBool("MOODLOG_LOG_PRETTY", false),
		},
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Rules.IterationLimit <= 0 {
		cfg.Rules.IterationLimit = 30
	}
	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = 4096
	}
	if cfg.Session.MaxClipDuration <= 0 {
		cfg.Session.MaxClipDuration = 120 * time.Second
	}
	if cfg.Backend.TimeoutSeconds <= 0 {
		cfg.Backend.TimeoutSeconds = 60
	}

	return cfg, nil
}

func firstExisting(paths ...string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if len(paths) == 0 {
		return ""
	}
	return paths[0]
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
