package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ngocvo/retailbot/internal/catalog"
	"github.com/ngocvo/retailbot/internal/history"
	"github.com/ngocvo/retailbot/internal/observability"
	"github.com/ngocvo/retailbot/internal/protocol"
	"github.com/ngocvo/retailbot/internal/responder"
	"github.com/ngocvo/retailbot/internal/session"
	"github.com/ngocvo/retailbot/internal/speech"
)

// Pipeline runs one inbound message through lookup, responder and history
// bookkeeping. Within one session, Handle runs to completion before the
// next inbound message is processed; the transport guarantees a single
// goroutine per connection.
type Pipeline struct {
	lookup    *catalog.Lookup
	responder *responder.Responder
	stt       speech.STTProvider
	metrics   *observability.Metrics
}

func New(lookup *catalog.Lookup, rsp *responder.Responder, stt speech.STTProvider, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{lookup: lookup, responder: rsp, stt: stt, metrics: metrics}
}

// Handle processes one typed or transcribed utterance and returns the
// outbound events to emit, at most one. Empty input is a log-only no-op.
// When the responder path faults, the user turn stays in history and an
// error event is returned instead of a reply; no model turn is recorded.
func (p *Pipeline) Handle(ctx context.Context, sess *session.Session, text string, transcribed bool) []any {
	text = strings.TrimSpace(text)
	if text == "" {
		log.Printf("session %s: ignoring empty input", sess.ID)
		return nil
	}

	log.Printf("session %s: processing %q (transcribed=%v)", sess.ID, text, transcribed)
	sess.History.Append(history.RoleUser, text)

	answer, err := p.respond(ctx, sess, text)
	if err != nil {
		log.Printf("session %s: chatbot processing error: %v", sess.ID, err)
		return []any{protocol.NewError(fmt.Sprintf("Chatbot processing error: %v", err))}
	}

	sess.History.Append(history.RoleModel, answer)
	return []any{protocol.NewChatMessage(protocol.RoleChatbot, answer)}
}

// respond gathers the knowledge block and asks the responder. A panic from
// either is converted into an error so a bookkeeping bug never tears down
// the connection's goroutine.
func (p *Pipeline) respond(ctx context.Context, sess *session.Session, text string) (answer string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	var knowledge string
	if catalog.ShouldSearch(text) {
		block, found := p.lookup.Search(ctx, text)
		if found {
			knowledge = block
			p.metrics.CatalogLookups.WithLabelValues("hit").Inc()
		} else {
			// Degrade silently to ungrounded model knowledge.
			p.metrics.CatalogLookups.WithLabelValues("miss").Inc()
		}
	} else {
		p.metrics.CatalogLookups.WithLabelValues("skipped").Inc()
	}

	start := time.Now()
	answer = p.responder.Respond(ctx, sess.History.Turns(), knowledge)
	p.metrics.ObserveResponderLatency(time.Since(start))
	return answer, nil
}

// HandleSpeech runs one capture-and-transcribe cycle and feeds the
// transcript through Handle. A successful transcription is echoed to the
// client before the reply.
func (p *Pipeline) HandleSpeech(ctx context.Context, sess *session.Session) []any {
	if p.stt == nil {
		return []any{protocol.NewError("Speech recognition is not configured.")}
	}

	transcript, err := p.stt.Recognize(ctx)
	if err != nil {
		p.metrics.ProviderErrors.WithLabelValues("stt", "recognize").Inc()
		return []any{protocol.NewError(fmt.Sprintf("Speech-to-text error: %v", err))}
	}
	if strings.TrimSpace(transcript) == "" {
		log.Printf("session %s: empty transcript, skipping chatbot turn", sess.ID)
		return nil
	}

	events := []any{protocol.NewChatMessage(protocol.RoleUserSTT, transcript)}
	return append(events, p.Handle(ctx, sess, transcript, true)...)
}
