package audio

import "encoding/binary"

// PCMToWAV wraps raw PCM bytes in a 44-byte WAV header so captured
// agent speech can be saved as a playable file.
func PCMToWAV(pcm []byte, sampleRateHz, bitsPerSample, channels int) []byte {
	dataLen := len(pcm)
	byteRate := sampleRateHz * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	header := make([]byte, 44)

	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataLen))
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16) // PCM sub-chunk size
	binary.LittleEndian.PutUint16(header[20:22], 1)  // PCM format
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRateHz))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], uint16(bitsPerSample))

	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataLen))

	return append(header, pcm...)
}

// SpeechToWAV wraps PCM in a WAV header using the synthesized speech
// format (24kHz, 16-bit, mono).
func SpeechToWAV(pcm []byte) []byte {
	return PCMToWAV(pcm, OutputSampleRateHz, 16, channelsMono)
}
