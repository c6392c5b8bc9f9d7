package usecase

import (
	"errors"
	"fmt"
	"io"
	"time"

	"moodlog/internal/domain"
	"moodlog/internal/ports"
)

// pumpAudioChunks tees captured PCM into the clip buffer and the
// transcription stream. A dead stream degrades to capture-only: the clip
// keeps growing so the take is never lost to a transcription outage.
func pumpAudioChunks(
	audio ports.AudioSession,
	stream ports.StreamingSession,
	clip *clipBuffer,
	chunkSize int,
	events ports.EventSink,
	done chan struct{},
) {
	defer close(done)

	if chunkSize < 256 {
		chunkSize = 4096
	}

	streamAlive := true
	buf := make([]byte, chunkSize)
	for {
		n, err := audio.Read(buf)
		if n > 0 {
			clip.Write(buf[:n])
			if streamAlive {
				if sendErr := stream.SendAudio(buf[:n]); sendErr != nil {
					streamAlive = false
					events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("failed to stream audio: %v", sendErr))
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("audio capture error: %v", err))
			}
			return
		}
	}
}

func waitForStream(session ports.StreamingSession, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		_ = session.Close()
		return <-done
	}
}
