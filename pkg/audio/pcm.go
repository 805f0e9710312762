package audio

import (
	"encoding/base64"
	"math"
	"time"
)

// SampleRate is the rate of the PCM16 mono audio exchanged with the realtime API.
const SampleRate = 24000

// FloatToPCM16 converts normalized samples to 16-bit little-endian PCM.
// Samples are clamped to [-1,1]; NaN becomes silence.
func FloatToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, f := range samples {
		s := float64(f)
		if math.IsNaN(s) {
			s = 0
		}
		s = math.Max(-1, math.Min(1, s))

		var v int16
		if s < 0 {
			v = int16(s * 0x8000)
		} else {
			v = int16(s * 0x7fff)
		}
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// PCM16ToFloat decodes 16-bit little-endian PCM into samples in [-1,1).
// A trailing odd byte is ignored.
func PCM16ToFloat(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		sample := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		out[i] = float32(sample) / 0x8000
	}
	return out
}

// EncodeBase64 converts samples to base64 PCM16 for the JSON envelope.
func EncodeBase64(samples []float32) string {
	return base64.StdEncoding.EncodeToString(FloatToPCM16(samples))
}

// DecodeBase64 decodes a base64 PCM16 chunk into samples.
func DecodeBase64(s string) ([]float32, error) {
	pcm, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return PCM16ToFloat(pcm), nil
}

// Duration is the play time of n samples at the given rate.
func Duration(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(rate)
}
