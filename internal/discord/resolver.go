package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/voxscribe/voxscribe/internal/capture"
)

// Compile-time interface assertion.
var _ capture.Resolver = (*memberResolver)(nil)

// OptInStore reports whether a user consented to voice archival.
type OptInStore interface {
	OptedIn(ctx context.Context, userID string) (bool, error)
}

// memberResolver resolves speaker identities from guild member state,
// falling back to the REST API when the state cache misses.
type memberResolver struct {
	session *discordgo.Session
	guildID string
	optIn   OptInStore
}

func (r *memberResolver) Resolve(ctx context.Context, userID string) (capture.Identity, error) {
	member, err := r.session.State.Member(r.guildID, userID)
	if err != nil {
		member, err = r.session.GuildMember(r.guildID, userID, discordgo.WithContext(ctx))
		if err != nil {
			return capture.Identity{}, fmt.Errorf("discord: resolve member %s: %w", userID, err)
		}
	}
	if member.User == nil {
		return capture.Identity{}, fmt.Errorf("discord: member %s has no user", userID)
	}

	name := member.Nick
	if name == "" {
		name = member.User.GlobalName
	}
	if name == "" {
		name = member.User.Username
	}

	ident := capture.Identity{
		Username:  name,
		AvatarURL: member.AvatarURL("128"),
		Bot:       member.User.Bot,
	}

	if r.optIn != nil && !ident.Bot {
		optedIn, err := r.optIn.OptedIn(ctx, userID)
		if err != nil {
			// Archival is best-effort; identity resolution must not fail on it.
			slog.Warn("discord: opt-in lookup failed", "user_id", userID, "err", err)
		} else {
			ident.IngestOptIn = optedIn
		}
	}
	return ident, nil
}
