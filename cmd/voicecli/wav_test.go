package main

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildWav(t *testing.T, channels, bits uint16, extra []byte, pcm []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(0)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(16)))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, wavFormat{
		AudioFormat:   1,
		Channels:      channels,
		SampleRate:    24000,
		ByteRate:      24000 * uint32(channels) * uint32(bits) / 8,
		BlockAlign:    channels * bits / 8,
		BitsPerSample: bits,
	}))

	if extra != nil {
		buf.WriteString("LIST")
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(len(extra))))
		buf.Write(extra)
		if len(extra)%2 == 1 {
			buf.WriteByte(0)
		}
	}

	buf.WriteString("data")
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(len(pcm))))
	buf.Write(pcm)
	return buf.Bytes()
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestReadPCMWav(t *testing.T) {
	pcm := []byte{0x01, 0x00, 0xff, 0x7f}
	path := writeFile(t, "a.wav", buildWav(t, 1, 16, []byte("odd"), pcm))

	got, rate, err := readPCM(path)
	require.NoError(t, err)
	assert.Equal(t, pcm, got)
	assert.Equal(t, 24000, rate)
}

func TestReadPCMRaw(t *testing.T) {
	raw := []byte{0x10, 0x20, 0x30, 0x40}
	got, rate, err := readPCM(writeFile(t, "a.pcm", raw))
	require.NoError(t, err)
	assert.Equal(t, raw, got)
	assert.Zero(t, rate)
}

func TestReadPCMRejectsStereo(t *testing.T) {
	_, _, err := readPCM(writeFile(t, "b.wav", buildWav(t, 2, 16, nil, []byte{0, 0, 0, 0})))
	assert.ErrorIs(t, err, errUnsupportedWav)
}

func TestReadPCMMissingData(t *testing.T) {
	data := buildWav(t, 1, 16, nil, nil)
	// 去掉 data chunk
	data = data[:len(data)-8]
	_, _, err := readPCM(writeFile(t, "c.wav", data))
	assert.ErrorIs(t, err, errUnsupportedWav)
}
