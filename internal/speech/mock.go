package speech

import (
	"context"
	"sync"
)

// MockProvider is a scripted speech provider used in tests and when no
// microphone or API key is available.
type MockProvider struct {
	mu          sync.Mutex
	transcripts []string
	err         error
	spoken      []string
}

func NewMockProvider(transcripts ...string) *MockProvider {
	return &MockProvider{transcripts: transcripts}
}

func (p *MockProvider) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *MockProvider) Recognize(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	if len(p.transcripts) == 0 {
		return "", nil
	}
	next := p.transcripts[0]
	p.transcripts = p.transcripts[1:]
	return next, nil
}

func (p *MockProvider) Speak(_ context.Context, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spoken = append(p.spoken, text)
	return nil
}

// Spoken returns everything passed to Speak so far.
func (p *MockProvider) Spoken() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.spoken))
	copy(out, p.spoken)
	return out
}
