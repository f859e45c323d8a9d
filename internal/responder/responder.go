package responder

import (
	"context"
	"log"
	"strings"

	"github.com/ngocvo/retailbot/internal/genai"
	"github.com/ngocvo/retailbot/internal/history"
)

// systemPrompt frames the assistant as the supermarket's shopping helper.
const systemPrompt = `Bạn là trợ lý ảo của siêu thị ABC, giúp khách hàng mua sắm.
Bạn có thể trả lời về thông tin sản phẩm, giá, khuyến mãi, danh mục, thương hiệu.
Trả lời ngắn gọn, rõ ràng, dùng thông tin từ cơ sở dữ liệu nếu có.
Nếu không có thông tin, xin lỗi và đề nghị hỏi lại hoặc liên hệ hỗ trợ.
Hãy duy trì tính liên tục của cuộc trò chuyện dựa trên lịch sử được cung cấp.`

const greeting = "Chào bạn, tôi có thể giúp gì cho bạn?"

// Fixed user-facing strings. Every failure path of Respond returns one of
// these synchronously; the component never returns an error.
const (
	msgNoModel       = "Lỗi: Chưa khởi tạo được mô hình Gemini."
	msgEmptyHistory  = "Xin lỗi, đã có lỗi xảy ra với phiên chat."
	msgRedacted      = "Xin lỗi, tôi không được phép cung cấp thông tin cá nhân."
	msgSafetyBlocked = "Xin lỗi, tôi không thể tạo phản hồi do vấn đề về an toàn nội dung."
	msgEmptyReply    = "Xin lỗi, tôi không thể tạo phản hồi vào lúc này."
	msgInvalidKey    = "Lỗi: API Key không hợp lệ."
	msgUnreachable   = "Lỗi: Không thể kết nối đến máy chủ."
	msgBadLocation   = "Lỗi: Yêu cầu từ vị trí của bạn không được phép."
)

const knowledgePreamble = "\n\nThông tin từ siêu thị (nếu liên quan):\n---\n%KNOWLEDGE%\n---\nHãy trả lời câu hỏi trên DỰA VÀO thông tin này và lịch sử trò chuyện."

// Responder turns a session history plus an optional knowledge block into
// one natural-language answer.
type Responder struct {
	client genai.Client
}

func New(client genai.Client) *Responder {
	return &Responder{client: client}
}

// Respond builds the prompt envelope and asks the model for a reply. All
// failures are converted into a fixed, user-displayable Vietnamese string;
// no error crosses this boundary and no retry is attempted.
func (r *Responder) Respond(ctx context.Context, turns []history.Turn, knowledge string) string {
	if r.client == nil {
		return msgNoModel
	}
	if len(turns) == 0 {
		log.Printf("responder called with empty history")
		return msgEmptyHistory
	}

	contents := buildEnvelope(turns, knowledge)

	result, err := r.client.Generate(ctx, contents)
	if err != nil {
		return translateError(err)
	}

	if result.Text != "" {
		return redact(result.Text)
	}

	blockSuffix := ""
	if result.BlockReason != "" {
		blockSuffix = " Yêu cầu bị chặn: " + result.BlockReason
	}
	if len(result.SafetyIssues) > 0 {
		log.Printf("responder reply flagged by safety filters: %s", strings.Join(result.SafetyIssues, "; "))
		return msgSafetyBlocked + blockSuffix
	}
	return msgEmptyReply + blockSuffix
}

// buildEnvelope prepends the system instruction and canned greeting, then
// the supplied history in order. A knowledge block is folded into the last
// user turn; when the last turn is not a user turn it rides in a fresh user
// turn instead, keeping the role alternation intact.
func buildEnvelope(turns []history.Turn, knowledge string) []genai.Content {
	contents := make([]genai.Content, 0, len(turns)+3)
	contents = append(contents,
		genai.NewContent(genai.RoleUser, systemPrompt),
		genai.NewContent(genai.RoleModel, greeting),
	)
	for _, t := range turns {
		contents = append(contents, genai.NewContent(roleOf(t.Role), t.Text))
	}

	if knowledge == "" {
		return contents
	}

	injected := strings.Replace(knowledgePreamble, "%KNOWLEDGE%", knowledge, 1)
	last := &contents[len(contents)-1]
	if last.Role == genai.RoleUser && len(last.Parts) > 0 {
		last.Parts[len(last.Parts)-1].Text += injected
		return contents
	}

	// Should not happen in the normal flow: the pipeline always appends the
	// user turn before responding.
	log.Printf("responder: last turn is not a user turn, appending knowledge separately")
	return append(contents, genai.NewContent(genai.RoleUser,
		"Thông tin bổ sung từ cơ sở dữ liệu có thể liên quan: "+knowledge))
}

func roleOf(role history.Role) string {
	if role == history.RoleModel {
		return genai.RoleModel
	}
	return genai.RoleUser
}

func translateError(err error) string {
	log.Printf("gemini call failed: %v", err)
	switch {
	case genai.IsAuthError(err):
		return msgInvalidKey
	case genai.IsTimeoutError(err):
		return msgUnreachable
	case genai.IsLocationError(err):
		return msgBadLocation
	default:
		return "Lỗi giao tiếp với AI: " + err.Error()
	}
}
