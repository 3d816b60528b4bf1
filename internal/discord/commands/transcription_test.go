package commands

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/voxscribe/voxscribe/internal/discord"
	"github.com/voxscribe/voxscribe/internal/guildstore"
)

type fakeSettings struct {
	settings guildstore.Settings
	err      error
	verbose  []bool
	tiers    []uint8
}

func (f *fakeSettings) Settings(_ context.Context, _ string) (guildstore.Settings, error) {
	return f.settings, f.err
}

func (f *fakeSettings) SetVerbose(_ context.Context, _ string, verbose bool) error {
	f.verbose = append(f.verbose, verbose)
	f.settings.Verbose = verbose
	return nil
}

func (f *fakeSettings) SetPremiumTier(_ context.Context, _ string, tier uint8) error {
	f.tiers = append(f.tiers, tier)
	f.settings.PremiumTier = tier
	return nil
}

type fakePolicy struct {
	verbose bool
	max     int
	calls   int
}

func (f *fakePolicy) SetPolicy(verbose bool, maxTranscribers int) {
	f.verbose = verbose
	f.max = maxTranscribers
	f.calls++
}

func TestTranscriptionDefinition(t *testing.T) {
	t.Parallel()

	tc := NewTranscriptionCommands(discord.NewPermissionChecker(""), "g1", nil, nil, nil, nil, nil)
	def := tc.Definition()

	if def.Name != "transcription" {
		t.Errorf("Name = %q, want %q", def.Name, "transcription")
	}

	expectedSubs := []string{"verbose", "tier", "archive", "status"}
	if len(def.Options) != len(expectedSubs) {
		t.Fatalf("Options count = %d, want %d", len(def.Options), len(expectedSubs))
	}
	for i, name := range expectedSubs {
		if def.Options[i].Name != name {
			t.Errorf("subcommand[%d] = %q, want %q", i, def.Options[i].Name, name)
		}
		if def.Options[i].Type != discordgo.ApplicationCommandOptionSubCommand {
			t.Errorf("subcommand[%d] type = %d, want SubCommand", i, def.Options[i].Type)
		}
	}

	tierOpts := def.Options[1].Options
	if len(tierOpts) != 1 || tierOpts[0].Name != "level" {
		t.Fatalf("tier options = %+v, want one 'level' option", tierOpts)
	}
	if tierOpts[0].MaxValue != 4 {
		t.Errorf("tier level MaxValue = %v, want 4", tierOpts[0].MaxValue)
	}
}

func TestOptionExtraction(t *testing.T) {
	t.Parallel()

	opts := []*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "enabled", Type: discordgo.ApplicationCommandOptionBoolean, Value: true},
		{Name: "level", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(3)},
	}

	enabled, ok := boolOption(opts, "enabled")
	if !ok || !enabled {
		t.Errorf("boolOption(enabled) = %v, %v, want true, true", enabled, ok)
	}
	if _, ok := boolOption(opts, "missing"); ok {
		t.Error("boolOption(missing) reported ok")
	}

	level, ok := intOption(opts, "level")
	if !ok || level != 3 {
		t.Errorf("intOption(level) = %d, %v, want 3, true", level, ok)
	}
	if _, ok := intOption(opts, "enabled"); ok {
		t.Error("intOption on a boolean option reported ok")
	}
}

func TestApplyPolicyPushesSettings(t *testing.T) {
	t.Parallel()

	settings := &fakeSettings{settings: guildstore.Settings{Verbose: true, PremiumTier: 2}}
	policy := &fakePolicy{}
	tc := NewTranscriptionCommands(discord.NewPermissionChecker(""), "g1", settings, nil, policy, nil, nil)

	tc.applyPolicy(context.Background())

	if policy.calls != 1 {
		t.Fatalf("SetPolicy calls = %d, want 1", policy.calls)
	}
	if !policy.verbose {
		t.Error("verbose not propagated")
	}
	if want := guildstore.MaxTranscribers(2); policy.max != want {
		t.Errorf("maxTranscribers = %d, want %d", policy.max, want)
	}
}

func TestApplyPolicyLogsReloadFailure(t *testing.T) {
	settings := &fakeSettings{err: errors.New("connection reset")}
	policy := &fakePolicy{}
	tc := NewTranscriptionCommands(discord.NewPermissionChecker(""), "g1", settings, nil, policy, nil, nil)

	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	tc.applyPolicy(context.Background())

	if policy.calls != 0 {
		t.Errorf("SetPolicy calls = %d, want 0 on reload failure", policy.calls)
	}
	if !strings.Contains(buf.String(), "failed to reload guild settings") {
		t.Errorf("reload failure not logged, got: %s", buf.String())
	}
}
