package deliver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
)

// stubExecutor records webhook executions.
type stubExecutor struct {
	calls []*discordgo.WebhookParams
	err   error
}

func (s *stubExecutor) WebhookExecute(id, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	s.calls = append(s.calls, data)
	return nil, s.err
}

func TestNewWebhookSink_RequiresCredentials(t *testing.T) {
	if _, err := NewWebhookSink(nil, "", "token"); err == nil {
		t.Error("expected error for empty webhook id")
	}
	if _, err := NewWebhookSink(nil, "id", ""); err == nil {
		t.Error("expected error for empty webhook token")
	}
}

func TestTranscript_ImpersonatesSpeaker(t *testing.T) {
	stub := &stubExecutor{}
	sink := &WebhookSink{session: stub, id: "wh", token: "tok"}

	err := sink.Transcript(context.Background(), Transcript{
		SSRC:      7,
		Username:  "alice",
		AvatarURL: "https://cdn.example/alice.png",
		Text:      "hello there",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stub.calls) != 1 {
		t.Fatalf("expected 1 webhook execution, got %d", len(stub.calls))
	}
	got := stub.calls[0]
	if got.Content != "hello there" || got.Username != "alice" || got.AvatarURL != "https://cdn.example/alice.png" {
		t.Errorf("unexpected webhook params: %+v", got)
	}
}

func TestDiagnostic_IncludesSSRC(t *testing.T) {
	stub := &stubExecutor{}
	sink := &WebhookSink{session: stub, id: "wh", token: "tok"}

	if err := sink.Diagnostic(context.Background(), 1234, "transcription failed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stub.calls) != 1 {
		t.Fatalf("expected 1 webhook execution, got %d", len(stub.calls))
	}
	if !strings.Contains(stub.calls[0].Content, "1234") {
		t.Errorf("diagnostic %q does not mention the SSRC", stub.calls[0].Content)
	}
	if stub.calls[0].Username != "" {
		t.Errorf("diagnostic should not impersonate a speaker, got username %q", stub.calls[0].Username)
	}
}

func TestTranscript_WrapsError(t *testing.T) {
	stub := &stubExecutor{err: errors.New("boom")}
	sink := &WebhookSink{session: stub, id: "wh", token: "tok"}

	err := sink.Transcript(context.Background(), Transcript{Text: "x", Username: "y"})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
