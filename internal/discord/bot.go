// Package discord provides the Discord transport layer for voxscribe. It
// owns the discordgo.Session lifecycle, joins the configured voice channel,
// decodes incoming Opus packets, and forwards voice events to the capture
// pipeline. It also routes slash command interactions to registered
// handlers.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/voxscribe/voxscribe/internal/capture"
	"github.com/voxscribe/voxscribe/internal/guildstore"
)

// settingsReloadInterval is how often guild settings are re-read from the
// store while the bot is connected.
const settingsReloadInterval = time.Minute

// Config holds Discord bot configuration.
type Config struct {
	// Token is the Discord bot token (without the "Bot " prefix).
	Token string

	// GuildID is the target guild (single-guild for now).
	GuildID string

	// VoiceChannelID is the voice channel joined on Run.
	VoiceChannelID string

	// AdminRoleID gates the policy-changing slash commands. Empty allows
	// everyone.
	AdminRoleID string
}

// Bot owns the Discord gateway connection. It bridges the voice receive
// path into the capture handler and routes interactions to registered
// command handlers.
type Bot struct {
	mu        sync.RWMutex
	session   *discordgo.Session
	handler   *capture.Handler
	settings  *guildstore.Store // nil without a database
	router    *CommandRouter
	perms     *PermissionChecker
	guildID   string
	channelID string
	commands  []*discordgo.ApplicationCommand
	closeOnce sync.Once
}

// New creates a Bot, connects to the gateway, and registers the interaction
// handler. settings may be nil, in which case default policy stays in
// effect. Attach the capture handler with [Bot.Attach] before calling Run;
// the split exists because the handler's collaborators (webhook sink,
// member resolver) need the live session this constructor creates.
func New(_ context.Context, cfg Config, settings *guildstore.Store) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMembers

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord: open session: %w", err)
	}

	b := &Bot{
		session:   session,
		settings:  settings,
		router:    NewCommandRouter(),
		perms:     NewPermissionChecker(cfg.AdminRoleID),
		guildID:   cfg.GuildID,
		channelID: cfg.VoiceChannelID,
	}

	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.router.Handle(s, i)
	})
	session.AddHandler(b.handleVoiceStateUpdate)

	return b, nil
}

// Attach wires the capture handler into the voice event path. Must be
// called before Run.
func (b *Bot) Attach(handler *capture.Handler) {
	b.mu.Lock()
	b.handler = handler
	b.mu.Unlock()
}

// Session returns the underlying discordgo session. Used by subsystems that
// need direct Discord API access (e.g., the webhook sink).
func (b *Bot) Session() *discordgo.Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.session
}

// GuildID returns the target guild ID.
func (b *Bot) GuildID() string {
	return b.guildID
}

// Router returns the command router for registering handlers.
func (b *Bot) Router() *CommandRouter {
	return b.router
}

// Permissions returns the permission checker.
func (b *Bot) Permissions() *PermissionChecker {
	return b.perms
}

// Resolver returns a capture.Resolver backed by this session's guild member
// state. optIn may be nil when voice archival is disabled.
func (b *Bot) Resolver(optIn OptInStore) capture.Resolver {
	return &memberResolver{session: b.session, guildID: b.guildID, optIn: optIn}
}

// Ready reports whether the Discord gateway connection is established.
// It serves as the readiness probe for the operational HTTP server.
func (b *Bot) Ready(_ context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.session == nil || !b.session.DataReady {
		return errors.New("gateway not connected")
	}
	return nil
}

// Run registers slash commands, joins the voice channel, applies guild
// settings, and pumps voice packets into the capture handler until ctx is
// cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.RLock()
	appID := b.session.State.User.ID
	attached := b.handler != nil
	b.mu.RUnlock()
	if !attached {
		return fmt.Errorf("discord: no capture handler attached")
	}

	cmds := b.router.ApplicationCommands()
	if len(cmds) > 0 {
		registered, err := b.session.ApplicationCommandBulkOverwrite(appID, b.guildID, cmds)
		if err != nil {
			return fmt.Errorf("discord: register commands: %w", err)
		}
		b.mu.Lock()
		b.commands = registered
		b.mu.Unlock()
		slog.Info("discord commands registered", "count", len(registered))
	}

	b.applySettings(ctx)

	// mute=true (we never send audio), deaf=false (we receive audio).
	vc, err := b.session.ChannelVoiceJoin(b.guildID, b.channelID, true, false)
	if err != nil {
		return fmt.Errorf("discord: join voice channel %q: %w", b.channelID, err)
	}
	defer func() {
		if err := vc.Disconnect(); err != nil {
			slog.Warn("discord: voice disconnect", "err", err)
		}
	}()

	vc.AddHandler(b.handleSpeakingUpdate)
	slog.Info("joined voice channel", "guild_id", b.guildID, "channel_id", b.channelID)

	recvDone := make(chan struct{})
	go func() {
		defer close(recvDone)
		b.recvLoop(ctx, vc)
	}()

	ticker := time.NewTicker(settingsReloadInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-recvDone:
			return fmt.Errorf("discord: voice receive stream closed")
		case <-ticker.C:
			b.applySettings(ctx)
		}
	}
}

// applySettings reads the guild's settings and pushes the derived policy
// into the capture handler. Failures keep the previous policy.
func (b *Bot) applySettings(ctx context.Context) {
	if b.settings == nil {
		return
	}
	s, err := b.settings.Settings(ctx, b.guildID)
	if err != nil {
		slog.Warn("discord: failed to load guild settings", "guild_id", b.guildID, "err", err)
		return
	}
	b.handler.SetPolicy(s.Verbose, guildstore.MaxTranscribers(s.PremiumTier))
	slog.Debug("applied guild settings",
		"guild_id", b.guildID, "verbose", s.Verbose, "premium_tier", s.PremiumTier)
}

// handleVoiceStateUpdate detects speakers leaving the captured channel and
// tears down their capture state.
func (b *Bot) handleVoiceStateUpdate(_ *discordgo.Session, vsu *discordgo.VoiceStateUpdate) {
	if vsu.GuildID != b.guildID {
		return
	}
	b.mu.RLock()
	handler := b.handler
	b.mu.RUnlock()
	if handler == nil {
		return
	}
	if vsu.BeforeUpdate != nil && vsu.BeforeUpdate.ChannelID == b.channelID && vsu.ChannelID != b.channelID {
		handler.HandleDisconnect(vsu.UserID)
	}
}

// Close unregisters commands and disconnects from the gateway.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if b.session != nil && len(b.commands) > 0 {
			appID := b.session.State.User.ID
			for _, cmd := range b.commands {
				if err := b.session.ApplicationCommandDelete(appID, b.guildID, cmd.ID); err != nil {
					slog.Warn("discord: failed to delete command", "name", cmd.Name, "err", err)
				}
			}
		}

		if b.session != nil {
			if err := b.session.Close(); err != nil {
				closeErr = fmt.Errorf("discord: close session: %w", err)
			}
		}

		slog.Info("discord bot closed")
	})
	return closeErr
}
