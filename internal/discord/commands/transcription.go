// Package commands implements the Discord slash commands for controlling
// voxscribe transcription behaviour.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/voxscribe/voxscribe/internal/discord"
	"github.com/voxscribe/voxscribe/internal/guildstore"
)

// SettingsStore persists per-guild transcription settings.
type SettingsStore interface {
	Settings(ctx context.Context, guildID string) (guildstore.Settings, error)
	SetVerbose(ctx context.Context, guildID string, verbose bool) error
	SetPremiumTier(ctx context.Context, guildID string, tier uint8) error
}

// OptInStore persists per-user voice archival consent.
type OptInStore interface {
	SetOptIn(ctx context.Context, userID string, optIn bool) error
	OptedIn(ctx context.Context, userID string) (bool, error)
}

// PolicyApplier pushes changed settings into the running capture pipeline.
type PolicyApplier interface {
	SetPolicy(verbose bool, maxTranscribers int)
}

// TranscriptionCommands handles the /transcription slash command group.
type TranscriptionCommands struct {
	perms    *discord.PermissionChecker
	guildID  string
	settings SettingsStore // nil without a database
	optIn    OptInStore    // nil when archival is disabled
	policy   PolicyApplier

	// Runtime stats for /transcription status. Either may be nil.
	activeSpeakers func() int
	completedJobs  func() uint64
}

// NewTranscriptionCommands creates a TranscriptionCommands handler.
func NewTranscriptionCommands(
	perms *discord.PermissionChecker,
	guildID string,
	settings SettingsStore,
	optIn OptInStore,
	policy PolicyApplier,
	activeSpeakers func() int,
	completedJobs func() uint64,
) *TranscriptionCommands {
	return &TranscriptionCommands{
		perms:          perms,
		guildID:        guildID,
		settings:       settings,
		optIn:          optIn,
		policy:         policy,
		activeSpeakers: activeSpeakers,
		completedJobs:  completedJobs,
	}
}

// Register registers all /transcription subcommands with the router.
func (tc *TranscriptionCommands) Register(router *discord.CommandRouter) {
	router.RegisterCommand("transcription", tc.Definition(), func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		discord.RespondEphemeral(s, i, "Please use a subcommand: `/transcription verbose`, `/transcription tier`, `/transcription archive`, `/transcription status`.")
	})
	router.RegisterHandler("transcription/verbose", tc.handleVerbose)
	router.RegisterHandler("transcription/tier", tc.handleTier)
	router.RegisterHandler("transcription/archive", tc.handleArchive)
	router.RegisterHandler("transcription/status", tc.handleStatus)
}

// Definition returns the /transcription ApplicationCommand for Discord
// registration.
func (tc *TranscriptionCommands) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "transcription",
		Description: "Control voice transcription",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "verbose",
				Description: "Toggle confidence annotations on transcripts",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        "enabled",
						Description: "Annotate transcripts with confidence",
						Type:        discordgo.ApplicationCommandOptionBoolean,
						Required:    true,
					},
				},
			},
			{
				Name:        "tier",
				Description: "Set the guild's premium tier",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        "level",
						Description: "Premium tier level (0-4)",
						Type:        discordgo.ApplicationCommandOptionInteger,
						Required:    true,
						MinValue:    new(float64),
						MaxValue:    4,
					},
				},
			},
			{
				Name:        "archive",
				Description: "Opt in or out of voice archival",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        "enabled",
						Description: "Store your transcribed speech",
						Type:        discordgo.ApplicationCommandOptionBoolean,
						Required:    true,
					},
				},
			},
			{
				Name:        "status",
				Description: "Show current transcription settings and stats",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
		},
	}
}

// subOptions returns the options of the invoked subcommand.
func subOptions(i *discordgo.InteractionCreate) []*discordgo.ApplicationCommandInteractionDataOption {
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		return nil
	}
	return data.Options[0].Options
}

// boolOption extracts a required boolean option by name.
func boolOption(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) (bool, bool) {
	for _, o := range opts {
		if o.Name == name && o.Type == discordgo.ApplicationCommandOptionBoolean {
			return o.BoolValue(), true
		}
	}
	return false, false
}

// intOption extracts a required integer option by name.
func intOption(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) (int64, bool) {
	for _, o := range opts {
		if o.Name == name && o.Type == discordgo.ApplicationCommandOptionInteger {
			return o.IntValue(), true
		}
	}
	return 0, false
}

func (tc *TranscriptionCommands) handleVerbose(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !tc.perms.IsAdmin(i) {
		discord.RespondEphemeral(s, i, "You are not allowed to change transcription settings.")
		return
	}
	if tc.settings == nil {
		discord.RespondEphemeral(s, i, "Settings are not persisted on this deployment.")
		return
	}
	enabled, ok := boolOption(subOptions(i), "enabled")
	if !ok {
		discord.RespondEphemeral(s, i, "Missing `enabled` option.")
		return
	}

	ctx := context.Background()
	if err := tc.settings.SetVerbose(ctx, tc.guildID, enabled); err != nil {
		discord.RespondError(s, i, err)
		return
	}
	tc.applyPolicy(ctx)
	discord.RespondEphemeral(s, i, fmt.Sprintf("Verbose transcripts: **%v**.", enabled))
}

func (tc *TranscriptionCommands) handleTier(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !tc.perms.IsAdmin(i) {
		discord.RespondEphemeral(s, i, "You are not allowed to change transcription settings.")
		return
	}
	if tc.settings == nil {
		discord.RespondEphemeral(s, i, "Settings are not persisted on this deployment.")
		return
	}
	level, ok := intOption(subOptions(i), "level")
	if !ok || level < 0 || level > 4 {
		discord.RespondEphemeral(s, i, "The `level` option must be between 0 and 4.")
		return
	}

	ctx := context.Background()
	if err := tc.settings.SetPremiumTier(ctx, tc.guildID, uint8(level)); err != nil {
		discord.RespondError(s, i, err)
		return
	}
	tc.applyPolicy(ctx)
	discord.RespondEphemeral(s, i, fmt.Sprintf("Premium tier set to **%d** (%d concurrent transcribers).",
		level, guildstore.MaxTranscribers(uint8(level))))
}

func (tc *TranscriptionCommands) handleArchive(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if tc.optIn == nil {
		discord.RespondEphemeral(s, i, "Voice archival is not enabled on this deployment.")
		return
	}
	if i.Member == nil || i.Member.User == nil {
		discord.RespondEphemeral(s, i, "This command must be used inside the guild.")
		return
	}
	enabled, ok := boolOption(subOptions(i), "enabled")
	if !ok {
		discord.RespondEphemeral(s, i, "Missing `enabled` option.")
		return
	}

	if err := tc.optIn.SetOptIn(context.Background(), i.Member.User.ID, enabled); err != nil {
		discord.RespondError(s, i, err)
		return
	}
	if enabled {
		discord.RespondEphemeral(s, i, "You opted **in** to voice archival. Your speech will be stored keyed by a hash of your user ID.")
	} else {
		discord.RespondEphemeral(s, i, "You opted **out** of voice archival.")
	}
}

func (tc *TranscriptionCommands) handleStatus(s *discordgo.Session, i *discordgo.InteractionCreate) {
	embed := &discordgo.MessageEmbed{
		Title: "Transcription status",
	}

	if tc.settings != nil {
		settings, err := tc.settings.Settings(context.Background(), tc.guildID)
		if err != nil {
			discord.RespondError(s, i, err)
			return
		}
		embed.Fields = append(embed.Fields,
			&discordgo.MessageEmbedField{Name: "Verbose", Value: fmt.Sprintf("%v", settings.Verbose), Inline: true},
			&discordgo.MessageEmbedField{Name: "Premium tier", Value: fmt.Sprintf("%d", settings.PremiumTier), Inline: true},
			&discordgo.MessageEmbedField{Name: "Transcriber cap", Value: fmt.Sprintf("%d", guildstore.MaxTranscribers(settings.PremiumTier)), Inline: true},
		)
	}
	if tc.activeSpeakers != nil {
		embed.Fields = append(embed.Fields,
			&discordgo.MessageEmbedField{Name: "Active speakers", Value: fmt.Sprintf("%d", tc.activeSpeakers()), Inline: true})
	}
	if tc.completedJobs != nil {
		embed.Fields = append(embed.Fields,
			&discordgo.MessageEmbedField{Name: "Transcriptions run", Value: fmt.Sprintf("%d", tc.completedJobs()), Inline: true})
	}

	discord.RespondEmbed(s, i, embed)
}

// applyPolicy re-reads the guild settings and pushes them into the capture
// pipeline so changes take effect without waiting for the reload tick.
func (tc *TranscriptionCommands) applyPolicy(ctx context.Context) {
	if tc.policy == nil || tc.settings == nil {
		return
	}
	settings, err := tc.settings.Settings(ctx, tc.guildID)
	if err != nil {
		slog.Warn("failed to reload guild settings after command", "guild_id", tc.guildID, "err", err)
		return
	}
	tc.policy.SetPolicy(settings.Verbose, guildstore.MaxTranscribers(settings.PremiumTier))
}
