package speech

import (
	"context"
	"time"
)

// Capture limits for one listen cycle. Recognition gives up when nothing is
// said within WaitForSpeech and never records longer than MaxUtterance.
const (
	WaitForSpeech = 5 * time.Second
	MaxUtterance  = 15 * time.Second
)

// STTProvider runs one capture-and-transcribe cycle. An empty transcript
// with a nil error means nothing intelligible was said.
type STTProvider interface {
	Recognize(ctx context.Context) (string, error)
}

// TTSProvider speaks a reply out loud.
type TTSProvider interface {
	Speak(ctx context.Context, text string) error
}
