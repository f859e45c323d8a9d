package protocol

import (
	"encoding/json"
	"errors"
	"strings"
)

// Event identifies websocket payload variants.
type Event string

const (
	EventStartListening   Event = "start_listening"
	EventTextMessage      Event = "text_message"
	EventStopListening    Event = "stop_listening"
	EventListening        Event = "listening"
	EventStopListeningAck Event = "stop_listening_ack"
	EventChatMessage      Event = "chat_message"
	EventError            Event = "error"
)

// Chat message roles on the outbound side.
const (
	RoleUserSTT = "user_stt"
	RoleChatbot = "chatbot"
)

var (
	ErrUnsupportedEvent = errors.New("unsupported event")
	ErrNoText           = errors.New("no text provided")
)

// InvalidJSONError wraps a JSON decoding failure. Its message is shaped for
// direct use in an outbound error event.
type InvalidJSONError struct {
	Err error
}

func (e *InvalidJSONError) Error() string { return "Invalid JSON: " + e.Err.Error() }

func (e *InvalidJSONError) Unwrap() error { return e.Err }

type Envelope struct {
	Event Event `json:"event"`
}

// StartListening asks the server to run one capture-and-transcribe cycle.
type StartListening struct {
	Event Event `json:"event"`
}

// TextMessage carries a typed user utterance.
type TextMessage struct {
	Event Event  `json:"event"`
	Text  string `json:"text"`
}

// StopListening asks the server to stop a capture cycle.
type StopListening struct {
	Event Event `json:"event"`
}

// Listening acknowledges a start_listening request.
type Listening struct {
	Event Event `json:"event"`
}

// StopListeningAck acknowledges a stop_listening request.
type StopListeningAck struct {
	Event Event `json:"event"`
}

// ChatMessage is a conversational message pushed to the client: either the
// echo of a successful transcription (role user_stt) or the assistant
// reply (role chatbot).
type ChatMessage struct {
	Event   Event  `json:"event"`
	Role    string `json:"role"`
	Message string `json:"message"`
}

// ErrorEvent reports a failure at any layer. Message may carry a technical
// detail string for client-side diagnostics.
type ErrorEvent struct {
	Event   Event  `json:"event"`
	Message string `json:"message"`
}

func NewListening() Listening { return Listening{Event: EventListening} }

func NewStopListeningAck() StopListeningAck {
	return StopListeningAck{Event: EventStopListeningAck}
}

func NewChatMessage(role, message string) ChatMessage {
	return ChatMessage{Event: EventChatMessage, Role: role, Message: message}
}

func NewError(message string) ErrorEvent {
	return ErrorEvent{Event: EventError, Message: message}
}

// ParseClientMessage decodes one inbound envelope into its tagged variant.
// Malformed JSON and unknown events are distinct failures so the transport
// can word its error event accordingly.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &InvalidJSONError{Err: err}
	}

	switch env.Event {
	case EventStartListening:
		return StartListening{Event: env.Event}, nil
	case EventTextMessage:
		var msg TextMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, &InvalidJSONError{Err: err}
		}
		if strings.TrimSpace(msg.Text) == "" {
			return nil, ErrNoText
		}
		return msg, nil
	case EventStopListening:
		return StopListening{Event: env.Event}, nil
	default:
		return nil, ErrUnsupportedEvent
	}
}
