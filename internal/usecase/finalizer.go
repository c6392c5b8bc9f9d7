package usecase

import (
	"moodlog/internal/audio"
	"moodlog/internal/domain"
	"moodlog/internal/ports"
	"moodlog/internal/recording"
)

type clipFinalizer struct {
	rules     ports.RulesEngine
	sentiment ports.SentimentAnalyzer
	events    ports.EventSink
}

func newClipFinalizer(rules ports.RulesEngine, sentiment ports.SentimentAnalyzer, events ports.EventSink) clipFinalizer {
	return clipFinalizer{rules: rules, sentiment: sentiment, events: events}
}

// Finalize turns raw PCM and a raw transcript into a draft recording. A
// failing rules engine is reported and the raw transcript is kept; the
// clip itself is never sacrificed to a text-processing problem.
func (f clipFinalizer) Finalize(pcm []byte, raw string, cfg ports.AudioConfig) (domain.Recording, domain.SessionStateReason) {
	reason := domain.SessionReasonClipCaptured

	transcript := raw
	if raw != "" {
		transformed, err := f.rules.Apply(raw)
		if err != nil {
			f.events.SessionError(domain.ErrorCodeRules, err.Error())
			reason = domain.SessionReasonRulesFailed
		} else {
			transcript = transformed
		}
	} else {
		reason = domain.SessionReasonClipCapturedNoText
	}

	score := f.sentiment.Analyze(transcript)
	blob := audio.EncodeWAV(pcm, cfg.SampleRate, cfg.Channels)
	rec := recording.New(blob, nil, transcript, score)
	return *rec, reason
}
