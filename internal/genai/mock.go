package genai

import (
	"context"
	"sync"
)

// Mock is a scripted client for tests. Each call pops the next queued
// reply; when the queue is empty the last reply repeats.
type Mock struct {
	mu      sync.Mutex
	replies []mockReply
	calls   [][]Content
}

type mockReply struct {
	result *Result
	err    error
}

func NewMock() *Mock { return &Mock{} }

func (m *Mock) QueueResult(r *Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, mockReply{result: r})
}

func (m *Mock) QueueText(text string) {
	m.QueueResult(&Result{Text: text})
}

func (m *Mock) QueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, mockReply{err: err})
}

func (m *Mock) Generate(_ context.Context, contents []Content) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make([]Content, len(contents))
	copy(snapshot, contents)
	m.calls = append(m.calls, snapshot)

	if len(m.replies) == 0 {
		return &Result{Text: "ok"}, nil
	}
	reply := m.replies[0]
	if len(m.replies) > 1 {
		m.replies = m.replies[1:]
	}
	return reply.result, reply.err
}

// Calls returns the prompts seen so far.
func (m *Mock) Calls() [][]Content {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]Content, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount reports how many times Generate ran.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
