package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

var errUnsupportedWav = errors.New("unsupported wav format")

type wavFormat struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// readPCM returns the PCM16 payload of path. Raw files are returned as is; WAV files
// must be 16-bit mono PCM and only their data chunk is returned.
func readPCM(path string) ([]byte, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return data, 0, nil
	}
	return parseWav(data[12:])
}

func parseWav(chunks []byte) ([]byte, int, error) {
	var (
		format    wavFormat
		hasFormat bool
	)

	for len(chunks) >= 8 {
		id := string(chunks[0:4])
		size := int(binary.LittleEndian.Uint32(chunks[4:8]))
		body := chunks[8:]
		if size > len(body) {
			size = len(body)
		}

		switch id {
		case "fmt ":
			if err := binary.Read(bytes.NewReader(body[:size]), binary.LittleEndian, &format); err != nil {
				return nil, 0, fmt.Errorf("%w: %v", errUnsupportedWav, err)
			}
			hasFormat = true
		case "data":
			if !hasFormat {
				return nil, 0, fmt.Errorf("%w: data chunk before fmt chunk", errUnsupportedWav)
			}
			if format.AudioFormat != 1 || format.Channels != 1 || format.BitsPerSample != 16 {
				return nil, 0, fmt.Errorf("%w: format=%d channels=%d bits=%d",
					errUnsupportedWav, format.AudioFormat, format.Channels, format.BitsPerSample)
			}
			return body[:size], int(format.SampleRate), nil
		}

		// chunk 按偶数字节对齐
		next := size + size%2
		if next > len(body) {
			break
		}
		chunks = body[next:]
	}

	return nil, 0, fmt.Errorf("%w: missing data chunk", errUnsupportedWav)
}
