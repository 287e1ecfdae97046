package app

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestCircularBuffer(t *testing.T) {
	buf := newBuffer(2)

	_, err := buf.Write([]byte("hello"))
	require.NoError(t, err)
	_, err = buf.Write([]byte("world"))
	require.NoError(t, err)

	require.Equal(t, "helloworld", string(buf.Bytes()))

	var w bytes.Buffer
	n, err := buf.WriteTo(&w)
	require.NoError(t, err)
	require.Equal(t, int64(10), n)

	buf.Reset()
	require.Empty(t, buf.Bytes())
}

func TestCircularBufferWrap(t *testing.T) {
	buf := newBuffer(2)

	chunk := bytes.Repeat([]byte{'a'}, chunkSize)
	_, _ = buf.Write(chunk)
	_, _ = buf.Write([]byte("b")) // second chunk
	_, _ = buf.Write(chunk)       // overwrites the first one

	require.Equal(t, append([]byte("b"), chunk...), buf.Bytes())
}

func TestCircularBufferBytes(t *testing.T) {
	tests := []struct {
		name     string
		buffer   *circularBuffer
		expected []byte
	}{
		{
			name:     "empty buffer",
			buffer:   &circularBuffer{chunks: make([][]byte, 5)},
			expected: []byte{},
		},
		{
			name: "partially filled buffer",
			buffer: &circularBuffer{
				chunks: [][]byte{{'a', 'b'}, {'c', 'd'}, {}, {}, {}},
				w:      2,
			},
			expected: []byte{'a', 'b', 'c', 'd'},
		},
		{
			name: "wrapped around buffer",
			buffer: &circularBuffer{
				chunks: [][]byte{{'e', 'f'}, {'g', 'h'}, {'a', 'b'}, {'c', 'd'}, {}},
				r:      2,
				w:      1,
			},
			expected: []byte{'a', 'b', 'c', 'd', 'e', 'f', 'g', 'h'},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, test.buffer.Bytes())
		})
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		format string
		level  string
		expect zerolog.Level
	}{
		{"json", "info", zerolog.InfoLevel},
		{"text", "debug", zerolog.DebugLevel},
		{"", "unknown", zerolog.InfoLevel},
	}

	for _, test := range tests {
		t.Run(test.format+"/"+test.level, func(t *testing.T) {
			logger := newLogger(map[string]string{"format": test.format, "level": test.level})
			require.Equal(t, test.expect, logger.GetLevel())
		})
	}
}

func TestGetLogger(t *testing.T) {
	prev := modules
	t.Cleanup(func() { modules = prev })

	modules = map[string]string{
		"a2dp":    "debug",
		"offload": "warn",
		"broken":  "loud",
	}

	require.Equal(t, zerolog.DebugLevel, GetLogger("a2dp").GetLevel())
	require.Equal(t, zerolog.WarnLevel, GetLogger("offload").GetLevel())
	require.Equal(t, Logger.GetLevel(), GetLogger("broken").GetLevel())
	require.Equal(t, Logger.GetLevel(), GetLogger("bluez").GetLevel())
}
