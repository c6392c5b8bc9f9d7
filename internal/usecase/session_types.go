package usecase

import (
	"bytes"
	"sync"
	"time"

	"moodlog/internal/domain"
	"moodlog/internal/ports"
)

type activeSession struct {
	cancel func()
	audio  ports.AudioSession
	stream ports.StreamingSession

	stateMu  sync.Mutex
	state    domain.SessionState
	stopping bool

	clip       *clipBuffer
	aggregator *transcriptAggregator
	stopTimer  *time.Timer
	eventsDone chan struct{}
	audioDone  chan struct{}
}

func (s *activeSession) setState(state domain.SessionState) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.state = state
}

func (s *activeSession) getState() domain.SessionState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// claimStop marks the session as being finalized. Exactly one caller
// wins; a manual stop racing the max-duration timer must not finalize
// the same clip twice.
func (s *activeSession) claimStop() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.stopping {
		return false
	}
	s.stopping = true
	return true
}

// clipBuffer accumulates raw PCM for the clip that outlives the stream.
type clipBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *clipBuffer) Write(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Write(p)
}

func (b *clipBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, b.buf.Len())
	copy(out, b.buf.Bytes())
	return out
}

func (b *clipBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}
