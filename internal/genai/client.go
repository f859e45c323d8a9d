package genai

import "context"

// Roles accepted by the generateContent API.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

type Part struct {
	Text string `json:"text"`
}

type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

func NewContent(role, text string) Content {
	return Content{Role: role, Parts: []Part{{Text: text}}}
}

// Result is one model reply. Text is empty when the provider returned no
// content; Blocked carries the provider's reason when the prompt or the
// reply was refused by safety filters.
type Result struct {
	Text         string
	FinishReason string
	Blocked      bool
	BlockReason  string
	SafetyIssues []string
}

// Client generates a reply for a full multi-turn prompt in one request.
type Client interface {
	Generate(ctx context.Context, contents []Content) (*Result, error)
}
