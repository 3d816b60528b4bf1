package audio

import "log/slog"

// Static RTP payload types (RFC 3551 §6) that can appear on a voice
// connection. Dynamic payload types (Opus included) are not listed and
// fall back to the default format.
const (
	PayloadPCMU      uint8 = 0
	PayloadGSM       uint8 = 3
	PayloadG723      uint8 = 4
	PayloadDVI4_8k   uint8 = 5
	PayloadDVI4_16k  uint8 = 6
	PayloadLPC       uint8 = 7
	PayloadPCMA      uint8 = 8
	PayloadG722      uint8 = 9
	PayloadL16Stereo uint8 = 10
	PayloadL16Mono   uint8 = 11
	PayloadQCELP     uint8 = 12
	PayloadCN        uint8 = 13
	PayloadMPA       uint8 = 14
	PayloadG728      uint8 = 15
	PayloadDVI4_11k  uint8 = 16
	PayloadDVI4_22k  uint8 = 17
	PayloadG729      uint8 = 18
)

// Default format assumed for unknown (dynamic) payload types. Discord
// voice is 48 kHz stereo Opus, which decodes to exactly this.
const (
	DefaultSampleRate = 48000
	DefaultStereo     = true
)

// PayloadFormat returns the sample rate in Hz and channel layout for a
// known static RTP payload type. Unknown payload types default to
// 48 kHz stereo and emit a debug diagnostic.
func PayloadFormat(payloadType uint8) (sampleRate int, stereo bool) {
	switch payloadType {
	case PayloadPCMU, PayloadGSM, PayloadG723, PayloadDVI4_8k, PayloadLPC,
		PayloadPCMA, PayloadG722, PayloadQCELP, PayloadCN, PayloadG728,
		PayloadG729:
		return 8000, false
	case PayloadDVI4_16k:
		return 16000, false
	case PayloadDVI4_11k:
		return 11025, false
	case PayloadDVI4_22k:
		return 22050, false
	case PayloadL16Stereo:
		return 44100, true
	case PayloadL16Mono:
		return 44100, false
	case PayloadMPA:
		return 90000, false
	default:
		slog.Debug("unknown payload type, assuming 48kHz stereo", "payload_type", payloadType)
		return DefaultSampleRate, DefaultStereo
	}
}
