package rules

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// HotEngine wraps Engine with a file watcher so edits to the rules file
// take effect without restarting the app. A broken edit keeps the last
// good rule set and logs the parse failure.
type HotEngine struct {
	path      string
	maxPasses int
	log       zerolog.Logger
	watcher   *fsnotify.Watcher

	mu     sync.RWMutex
	engine *Engine

	done chan struct{}
}

// NewHotEngine compiles the rules file and starts watching its directory
// for changes. An empty path yields a pass-through engine with no watcher.
func NewHotEngine(path string, maxPasses int, log zerolog.Logger) (*HotEngine, error) {
	engine, err := NewEngine(path, maxPasses)
	if err != nil {
		return nil, err
	}

	h := &HotEngine{
		path:      path,
		maxPasses: maxPasses,
		log:       log.With().Str("component", "rules").Logger(),
		engine:    engine,
		done:      make(chan struct{}),
	}
	if strings.TrimSpace(path) == "" {
		return h, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create rules watcher: %w", err)
	}
	// Watch the directory, not the file: editors replace files on save and
	// a watch on the old inode would go stale.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch rules directory: %w", err)
	}

	h.watcher = watcher
	go h.watch()
	return h, nil
}

// Apply transforms text with the current rule set.
func (h *HotEngine) Apply(text string) (string, error) {
	h.mu.RLock()
	engine := h.engine
	h.mu.RUnlock()
	return engine.Apply(text)
}

// Close stops the watcher. Apply keeps working with the last rule set.
func (h *HotEngine) Close() error {
	select {
	case <-h.done:
		return nil
	default:
	}
	close(h.done)
	if h.watcher != nil {
		return h.watcher.Close()
	}
	return nil
}

func (h *HotEngine) watch() {
	for {
		select {
		case <-h.done:
			return
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(h.path) {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			h.reload()
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.log.Warn().Err(err).Msg("rules watcher error")
		}
	}
}

func (h *HotEngine) reload() {
	engine, err := NewEngine(h.path, h.maxPasses)
	if err != nil {
		h.log.Warn().Err(err).Str("path", h.path).Msg("rules reload failed, keeping previous rule set")
		return
	}

	h.mu.Lock()
	h.engine = engine
	h.mu.Unlock()
	h.log.Info().Str("path", h.path).Msg("rules reloaded")
}
