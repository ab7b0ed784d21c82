// Package audio implements the outbound PCM encoder and the inbound
// playback scheduler for live sessions.
//
// Wire formats are fixed by the inference service: microphone audio is
// sent as 16-bit little-endian PCM at 16kHz mono, synthesized speech
// arrives as 16-bit little-endian PCM at 24kHz mono.
package audio

import "time"

const (
	// InputSampleRateHz is the microphone capture rate.
	InputSampleRateHz = 16000

	// OutputSampleRateHz is the synthesized speech playback rate.
	OutputSampleRateHz = 24000

	// ChunkSamples is the fixed outbound frame size in samples.
	ChunkSamples = 2048

	channelsMono   = 1
	bytesPerSample = 2
)

// DecodePCM16 converts little-endian 16-bit PCM bytes to normalized
// float32 samples in [-1, 1). A trailing odd byte is ignored.
func DecodePCM16(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
		out[i] = float32(s) / 32768
	}
	return out
}

// EncodePCM16 converts float samples in [-1, 1] to little-endian 16-bit
// PCM. Values are clamped first; negative values scale by 32768 and
// non-negative by 32767 so both extremes are representable.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, v := range samples {
		if v < -1 {
			v = -1
		} else if v > 1 {
			v = 1
		}
		var s int16
		if v < 0 {
			s = int16(v * 32768)
		} else {
			s = int16(v * 32767)
		}
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}

// PCMDuration returns the playback duration of little-endian 16-bit
// mono PCM at the given sample rate.
func PCMDuration(pcmLen, sampleRateHz int) time.Duration {
	if sampleRateHz <= 0 || pcmLen <= 0 {
		return 0
	}
	samples := pcmLen / bytesPerSample
	return time.Duration(samples) * time.Second / time.Duration(sampleRateHz)
}
