// Package audio provides pure PCM normalization for the transcription
// pipeline: stereo downmix, linear-interpolation resampling, and the
// RTP payload-type → format lookup used to interpret incoming voice
// packets.
//
// Everything in this package is deterministic and side-effect-free so
// the transforms can be unit-tested sample-for-sample.
package audio

// DownmixStereo averages each interleaved L+R sample pair into a single
// mono sample. Uses int32 arithmetic to prevent overflow and clamps to
// the int16 range. A trailing unpaired sample is dropped.
func DownmixStereo(samples []int16) []int16 {
	frames := len(samples) / 2
	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		avg := (int32(samples[i*2]) + int32(samples[i*2+1])) / 2
		if avg > 32767 {
			avg = 32767
		} else if avg < -32768 {
			avg = -32768
		}
		out[i] = int16(avg)
	}
	return out
}

// Resample converts mono int16 PCM from srcRate to dstRate using linear
// interpolation. If srcRate == dstRate (or either rate is non-positive)
// the input is returned unchanged.
func Resample(samples []int16, srcRate, dstRate int) []int16 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(samples) == 0 {
		return samples
	}
	dstLen := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	if dstLen == 0 {
		return nil
	}

	out := make([]int16, dstLen)
	ratio := float64(srcRate) / float64(dstRate)

	for i := 0; i < dstLen; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := samples[srcIdx]
		s1 := s0
		if srcIdx+1 < len(samples) {
			s1 = samples[srcIdx+1]
		}
		out[i] = int16(float64(s0)*(1-frac) + float64(s1)*frac)
	}
	return out
}

// ToFloat32 converts int16 PCM samples to float32 normalised to the
// range [-1.0, 1.0], the representation the inference engine consumes.
func ToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// Process normalises raw transport PCM for the inference engine: stereo
// input is downmixed to mono by channel averaging, the result is
// resampled from srcRate to dstRate, and the samples are converted to
// normalised float32. Mono input at the target rate passes through as
// the identity transform (within float conversion).
func Process(samples []int16, srcRate int, stereo bool, dstRate int) []float32 {
	mono := samples
	if stereo {
		mono = DownmixStereo(samples)
	}
	return ToFloat32(Resample(mono, srcRate, dstRate))
}
