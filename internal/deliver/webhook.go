package deliver

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Compile-time interface assertion.
var _ Sink = (*WebhookSink)(nil)

// webhookExecutor is the slice of *discordgo.Session the sink needs.
// Narrowed to an interface so tests can stub the Discord API.
type webhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// WebhookSink posts transcripts through a Discord channel webhook,
// impersonating the speaker via the webhook's per-message username and
// avatar overrides.
type WebhookSink struct {
	session webhookExecutor
	id      string
	token   string
}

// NewWebhookSink creates a sink posting through the given webhook.
func NewWebhookSink(session *discordgo.Session, webhookID, webhookToken string) (*WebhookSink, error) {
	if webhookID == "" || webhookToken == "" {
		return nil, errors.New("deliver: webhook id and token must not be empty")
	}
	return &WebhookSink{session: session, id: webhookID, token: webhookToken}, nil
}

// Transcript posts the transcript as the speaker.
func (w *WebhookSink) Transcript(ctx context.Context, t Transcript) error {
	_, err := w.session.WebhookExecute(w.id, w.token, false, &discordgo.WebhookParams{
		Content:   t.Text,
		Username:  t.Username,
		AvatarURL: t.AvatarURL,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("deliver: execute webhook: %w", err)
	}
	return nil
}

// Diagnostic posts a failure notice under the bot's own webhook identity.
func (w *WebhookSink) Diagnostic(ctx context.Context, ssrc uint32, msg string) error {
	_, err := w.session.WebhookExecute(w.id, w.token, false, &discordgo.WebhookParams{
		Content: fmt.Sprintf("%s (stream %d)", msg, ssrc),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("deliver: execute webhook: %w", err)
	}
	return nil
}
