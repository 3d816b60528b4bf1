package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"layeh.com/gopus"
)

// Discord voice uses 48 kHz stereo Opus at 20 ms frame size.
const (
	opusSampleRate = 48000
	opusChannels   = 2
	// opusFrameSize is the number of samples per channel per 20 ms frame.
	opusFrameSize = opusSampleRate * 20 / 1000 // 960
)

// opusDecoder wraps a gopus decoder for a single SSRC. Each speaker gets
// its own decoder to maintain decoder state correctly across consecutive
// frames.
type opusDecoder struct {
	dec *gopus.Decoder
}

func newOpusDecoder() (*opusDecoder, error) {
	dec, err := gopus.NewDecoder(opusSampleRate, opusChannels)
	if err != nil {
		return nil, fmt.Errorf("discord: create opus decoder: %w", err)
	}
	return &opusDecoder{dec: dec}, nil
}

// decode decodes an Opus packet into interleaved stereo PCM samples.
func (d *opusDecoder) decode(opus []byte) ([]int16, error) {
	pcm, err := d.dec.Decode(opus, opusFrameSize, false)
	if err != nil {
		return nil, fmt.Errorf("discord: opus decode: %w", err)
	}
	return pcm, nil
}

// rtpPayloadType extracts the payload type from the two RTP header octets
// discordgo exposes on each packet. The high bit of the second octet is the
// RTP marker and is masked off.
func rtpPayloadType(header []byte) uint8 {
	if len(header) < 2 {
		return 0
	}
	return header[1] &^ 0x80
}

// recvLoop reads Opus packets from the voice connection, decodes them with
// a per-SSRC decoder, and hands the PCM to the capture handler. Runs until
// ctx is cancelled or Discord closes the receive channel.
func (b *Bot) recvLoop(ctx context.Context, vc *discordgo.VoiceConnection) {
	decoders := make(map[uint32]*opusDecoder)

	for {
		select {
		case <-ctx.Done():
			return
		case pkt, ok := <-vc.OpusRecv:
			if !ok {
				return
			}
			if pkt == nil {
				continue
			}

			dec, exists := decoders[pkt.SSRC]
			if !exists {
				var err error
				dec, err = newOpusDecoder()
				if err != nil {
					slog.Error("discord: failed to create opus decoder", "ssrc", pkt.SSRC, "error", err)
					continue
				}
				decoders[pkt.SSRC] = dec
			}

			pcm, err := dec.decode(pkt.Opus)
			if err != nil {
				slog.Warn("discord: opus decode error", "ssrc", pkt.SSRC, "error", err)
				continue
			}

			b.handler.HandlePacket(pkt.SSRC, pkt.Sequence, rtpPayloadType(pkt.Type), pcm)
		}
	}
}

// handleSpeakingUpdate forwards speaking-state changes into the capture
// pipeline. The first update for an SSRC also registers the speaker's voice
// session so stale per-session state is reset across reconnects.
func (b *Bot) handleSpeakingUpdate(_ *discordgo.VoiceConnection, su *discordgo.VoiceSpeakingUpdate) {
	ssrc := uint32(su.SSRC)
	if su.UserID != "" {
		if vs, err := b.session.State.VoiceState(b.guildID, su.UserID); err == nil && vs.SessionID != "" {
			b.handler.HandleSessionConnect(vs.SessionID, ssrc)
		}
	}
	b.handler.HandleSpeaking(ssrc, su.UserID, su.Speaking)
}
