package bootstrap

import (
	"os"
	"strings"

	"github.com/rs/zerolog"

	"moodlog/internal/audio"
	"moodlog/internal/config"
	"moodlog/internal/ports"
	"moodlog/internal/providers/deepgram"
	"moodlog/internal/remote"
	"moodlog/internal/rules"
	"moodlog/internal/sentiment"
	"moodlog/internal/storage/sqlite"
	"moodlog/internal/store"
	"moodlog/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.JournalController
	Store      *store.Store
	Drafts     *store.SessionBuffer
	Config     config.Config
	Log        zerolog.Logger

	local       *sqlite.Store
	rulesEngine *rules.HotEngine
}

// Build wires all backend dependencies for the current runtime.
func Build(eventSink ports.EventSink) (*Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := newLogger(cfg.Log)

	dbPath := cfg.Storage.DBPath
	if dbPath == "" {
		dbPath = sqlite.DefaultPath()
	}
	local, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, err
	}

	rulesEngine, err := rules.NewHotEngine(cfg.Rules.Path, cfg.Rules.IterationLimit, log)
	if err != nil {
		_ = local.Close()
		return nil, err
	}

	remoteClient := remote.NewClient(remote.Config{
		BaseURL:        cfg.Backend.BaseURL,
		Token:          cfg.Backend.Token,
		TimeoutSeconds: cfg.Backend.TimeoutSeconds,
	})

	var storeOpts []store.Option
	if cfg.Storage.SortAscending {
		storeOpts = append(storeOpts, store.WithAscendingOrder())
	}
	recordings := store.New(local, remoteClient, eventSink, log, storeOpts...)
	drafts := store.NewSessionBuffer(recordings)

	controller := usecase.NewJournalController(
		audio.NewCapture(cfg.Audio.RecorderCommand),
		deepgram.NewProvider(deepgram.Config{
			APIKey:      cfg.Deepgram.APIKey,
			APIBaseURL:  cfg.Deepgram.APIBaseURL,
			Model:       cfg.Deepgram.Model,
			Language:    cfg.Deepgram.Language,
			SmartFormat: cfg.Deepgram.SmartFormat,
		}, log),
		rulesEngine,
		sentiment.NewAnalyzer(),
		drafts,
		eventSink,
		usecase.Config{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			Streaming: ports.StreamingConfig{
				SampleRate:     cfg.Audio.SampleRate,
				Channels:       cfg.Audio.Channels,
				Encoding:       "linear16",
				InterimResults: true,
			},
			ChunkSize:       cfg.Session.ChunkSize,
			StreamingGrace:  cfg.Session.StreamingGrace,
			MaxClipDuration: cfg.Session.MaxClipDuration,
		},
	)

	return &Services{
		Controller:  controller,
		Store:       recordings,
		Drafts:      drafts,
		Config:      cfg,
		Log:         log,
		local:       local,
		rulesEngine: rulesEngine,
	}, nil
}

// Close releases the sqlite handle and the rules watcher.
func (s *Services) Close() error {
	var first error
	if s.rulesEngine != nil {
		if err := s.rulesEngine.Close(); err != nil {
			first = err
		}
	}
	if s.local != nil {
		if err := s.local.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if cfg.Pretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Logger()
}
