package responder

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ngocvo/retailbot/internal/genai"
	"github.com/ngocvo/retailbot/internal/history"
)

func userTurn(text string) history.Turn  { return history.Turn{Role: history.RoleUser, Text: text} }
func modelTurn(text string) history.Turn { return history.Turn{Role: history.RoleModel, Text: text} }

func TestRespondNilClient(t *testing.T) {
	r := New(nil)
	if got := r.Respond(context.Background(), []history.Turn{userTurn("chào")}, ""); got != msgNoModel {
		t.Fatalf("Respond() = %q, want %q", got, msgNoModel)
	}
}

func TestRespondEmptyHistoryMakesNoCall(t *testing.T) {
	mock := genai.NewMock()
	r := New(mock)

	got := r.Respond(context.Background(), nil, "")
	if got != msgEmptyHistory {
		t.Fatalf("Respond() = %q, want %q", got, msgEmptyHistory)
	}
	if mock.CallCount() != 0 {
		t.Fatalf("Generate called %d times, want 0", mock.CallCount())
	}
}

func TestRespondEnvelopeOrder(t *testing.T) {
	mock := genai.NewMock()
	mock.QueueText("vâng ạ")
	r := New(mock)

	turns := []history.Turn{userTurn("chào"), modelTurn("chào bạn"), userTurn("giá sữa?")}
	r.Respond(context.Background(), turns, "")

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("Generate called %d times, want 1", len(calls))
	}
	envelope := calls[0]
	if len(envelope) != 5 {
		t.Fatalf("envelope length = %d, want 5 (system + greeting + 3 turns)", len(envelope))
	}
	if envelope[0].Role != genai.RoleUser || !strings.Contains(envelope[0].Parts[0].Text, "siêu thị ABC") {
		t.Fatalf("envelope[0] = %+v, want system instruction", envelope[0])
	}
	if envelope[1].Role != genai.RoleModel || envelope[1].Parts[0].Text != greeting {
		t.Fatalf("envelope[1] = %+v, want canned greeting", envelope[1])
	}
	if envelope[4].Parts[0].Text != "giá sữa?" {
		t.Fatalf("envelope[4] = %+v, want last user turn", envelope[4])
	}
}

func TestRespondAppendsKnowledgeToLastUserTurn(t *testing.T) {
	mock := genai.NewMock()
	mock.QueueText("sữa Vinamilk giá 32,000 VND")
	r := New(mock)

	turns := []history.Turn{userTurn("Giá sữa tươi Vinamilk")}
	r.Respond(context.Background(), turns, "Tên: Sữa tươi Vinamilk. Giá: 32,000 VND")

	envelope := mock.Calls()[0]
	last := envelope[len(envelope)-1]
	if last.Role != genai.RoleUser {
		t.Fatalf("last role = %q, want user", last.Role)
	}
	text := last.Parts[0].Text
	if !strings.HasPrefix(text, "Giá sữa tươi Vinamilk") {
		t.Fatalf("last turn text = %q, want original question first", text)
	}
	if !strings.Contains(text, "Thông tin từ siêu thị") || !strings.Contains(text, "32,000 VND") {
		t.Fatalf("last turn text = %q, missing knowledge block", text)
	}
}

func TestRespondKnowledgeAfterModelTurnStaysAlternating(t *testing.T) {
	mock := genai.NewMock()
	mock.QueueText("ok")
	r := New(mock)

	turns := []history.Turn{userTurn("chào"), modelTurn("chào bạn")}
	r.Respond(context.Background(), turns, "Tên: Bánh mì")

	envelope := mock.Calls()[0]
	last := envelope[len(envelope)-1]
	if last.Role != genai.RoleUser {
		t.Fatalf("last role = %q, want appended user turn", last.Role)
	}
	if !strings.Contains(last.Parts[0].Text, "Thông tin bổ sung") {
		t.Fatalf("appended turn = %q, want knowledge carrier", last.Parts[0].Text)
	}
	prev := envelope[len(envelope)-2]
	if prev.Role != genai.RoleModel || prev.Parts[0].Text != "chào bạn" {
		t.Fatalf("model turn mutated: %+v", prev)
	}
}

func TestRespondRedactsLongDigitRuns(t *testing.T) {
	cases := []string{
		"0123456789",
		"Số điện thoại của khách là 0912345678, bạn gọi nhé.",
		"id=98765432101",
	}
	for _, answer := range cases {
		mock := genai.NewMock()
		mock.QueueText(answer)
		r := New(mock)
		got := r.Respond(context.Background(), []history.Turn{userTurn("sđt?")}, "")
		if got != msgRedacted {
			t.Fatalf("Respond(%q) = %q, want redaction", answer, got)
		}
	}
}

func TestRespondKeepsShortDigitRuns(t *testing.T) {
	mock := genai.NewMock()
	mock.QueueText("Giá 32,000 VND cho hộp 180ml.")
	r := New(mock)
	got := r.Respond(context.Background(), []history.Turn{userTurn("giá?")}, "")
	if got != "Giá 32,000 VND cho hộp 180ml." {
		t.Fatalf("Respond() = %q, short digit runs must pass through", got)
	}
}

func TestRespondBlockedResult(t *testing.T) {
	mock := genai.NewMock()
	mock.QueueResult(&genai.Result{Blocked: true, BlockReason: "SAFETY"})
	r := New(mock)

	got := r.Respond(context.Background(), []history.Turn{userTurn("x")}, "")
	if !strings.HasPrefix(got, msgEmptyReply) || !strings.Contains(got, "SAFETY") {
		t.Fatalf("Respond() = %q, want apology with block reason", got)
	}
}

func TestRespondSafetyFlaggedResult(t *testing.T) {
	mock := genai.NewMock()
	mock.QueueResult(&genai.Result{SafetyIssues: []string{"HARM_CATEGORY_HARASSMENT: HIGH"}})
	r := New(mock)

	got := r.Respond(context.Background(), []history.Turn{userTurn("x")}, "")
	if !strings.HasPrefix(got, msgSafetyBlocked) {
		t.Fatalf("Respond() = %q, want safety apology", got)
	}
}

func TestRespondErrorTranslation(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&genai.APIError{StatusCode: 400, Message: "API key not valid. Please pass a valid API key."}, msgInvalidKey},
		{context.DeadlineExceeded, msgUnreachable},
		{errors.New("Post: ConnectTimeoutError while dialing"), msgUnreachable},
		{errors.New("UserLocationValidationError: unsupported region"), msgBadLocation},
	}
	for _, tc := range cases {
		mock := genai.NewMock()
		mock.QueueError(tc.err)
		r := New(mock)
		got := r.Respond(context.Background(), []history.Turn{userTurn("x")}, "")
		if got != tc.want {
			t.Fatalf("Respond() with %v = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestRespondGenericErrorCarriesDetail(t *testing.T) {
	mock := genai.NewMock()
	mock.QueueError(errors.New("something odd"))
	r := New(mock)
	got := r.Respond(context.Background(), []history.Turn{userTurn("x")}, "")
	if !strings.HasPrefix(got, "Lỗi giao tiếp với AI:") || !strings.Contains(got, "something odd") {
		t.Fatalf("Respond() = %q, want generic communication error with detail", got)
	}
}
