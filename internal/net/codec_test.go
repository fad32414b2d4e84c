package net

import (
	"strings"
	"testing"

	"github.com/boxworld/box/internal/config"
	"github.com/boxworld/box/internal/message"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustFrame(t *testing.T, msg message.NetworkMessage) []byte {
	t.Helper()
	b, err := EncodeFrame(msg)
	require.NoError(t, err)
	return b
}

func TestEncodeFrame_Header(t *testing.T) {
	frame := mustFrame(t, message.Disconnect{Reason: "bye"})
	require.Greater(t, len(frame), 4)
	assert.Equal(t, byte(0x04), frame[0])
	assert.Equal(t, byte(0x02), frame[1])

	payload, size, err := splitFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, len(frame), size)
	assert.Equal(t, frame[size-len(payload):], payload)
}

func TestDecodeAll_ManyFramesInOrder(t *testing.T) {
	msgs := []message.NetworkMessage{
		message.Connect{Version: "0.1.0"},
		message.Connected{ClientID: 7, Motd: "hi"},
		message.GameMessage{Message: message.SpawnBox{Position: mgl32.Vec3{7, 5, 0}, ClientID: 7}},
		message.GameMessage{Message: message.Quit{}},
		message.Disconnect{Reason: "done"},
	}
	var buf []byte
	for _, m := range msgs {
		var err error
		buf, err = AppendFrame(buf, m)
		require.NoError(t, err)
	}

	got, err := DecodeAll(buf)
	require.NoError(t, err)
	assert.Equal(t, msgs, got)
}

func TestDecodeAll_Empty(t *testing.T) {
	got, err := DecodeAll(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecodeAll_TruncatedFailsWhole(t *testing.T) {
	buf := mustFrame(t, message.Connect{Version: "a"})
	buf = append(buf, mustFrame(t, message.Connect{Version: "b"})...)

	got, err := DecodeAll(buf[:len(buf)-1])
	assert.ErrorIs(t, err, ErrIncomplete)
	assert.Nil(t, got)
}

func TestDecodeAll_Malformed(t *testing.T) {
	cases := map[string]struct {
		buf  []byte
		want error
	}{
		"bad magic":         {[]byte{0x05, 0x02, '1', ';', 0x00}, ErrBadMagic},
		"non-numeric":       {[]byte{0x04, 0x02, '1', 'x', ';', 0x00}, ErrBadLength},
		"missing length":    {[]byte{0x04, 0x02, ';', 0x00}, ErrBadLength},
		"missing delimiter": {append([]byte{0x04, 0x02}, []byte("1234567890")...), ErrBadLength},
		"too large":         {append([]byte{0x04, 0x02}, []byte("99999999;")...), ErrBadLength},
		"bad payload":       {[]byte{0x04, 0x02, '1', ';', 0xc1}, ErrPayload},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := DecodeAll(tc.buf)
			assert.ErrorIs(t, err, tc.want)
			assert.Nil(t, got)
		})
	}
}

func TestFrameBuffer_ByteByByte(t *testing.T) {
	want := []message.NetworkMessage{
		message.Connect{Version: "0.1.0"},
		message.GameMessage{Message: message.DespawnClient{ClientID: 3}},
	}
	var stream []byte
	for _, m := range want {
		stream = append(stream, mustFrame(t, m)...)
	}

	fb := NewFrameBuffer(0)
	var got []message.NetworkMessage
	for i := range stream {
		_, _ = fb.Write(stream[i : i+1])
		msgs, err := fb.Decode()
		require.NoError(t, err, "byte %d", i)
		got = append(got, msgs...)
	}
	assert.Equal(t, want, got)
	assert.Zero(t, fb.Len())
}

func TestFrameBuffer_KeepsPartialTail(t *testing.T) {
	a := mustFrame(t, message.Connect{Version: "a"})
	b := mustFrame(t, message.Connect{Version: "b"})

	fb := NewFrameBuffer(0)
	_, _ = fb.Write(append(append([]byte{}, a...), b[:3]...))
	msgs, err := fb.Decode()
	require.NoError(t, err)
	assert.Equal(t, []message.NetworkMessage{message.Connect{Version: "a"}}, msgs)
	assert.Equal(t, 3, fb.Len())

	_, _ = fb.Write(b[3:])
	msgs, err = fb.Decode()
	require.NoError(t, err)
	assert.Equal(t, []message.NetworkMessage{message.Connect{Version: "b"}}, msgs)
}

func TestFrameBuffer_MalformedDiscardsThenResyncs(t *testing.T) {
	fb := NewFrameBuffer(0)
	good := mustFrame(t, message.Connect{Version: "x"})

	_, _ = fb.Write(append(append([]byte{}, good...), 0x00, 0x01, 0x02))
	msgs, err := fb.Decode()
	assert.ErrorIs(t, err, ErrBadMagic)
	assert.Nil(t, msgs)
	assert.Zero(t, fb.Len())

	_, _ = fb.Write(good)
	msgs, err = fb.Decode()
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestFrameBuffer_Overflow(t *testing.T) {
	fb := NewFrameBuffer(8)
	_, _ = fb.Write(append([]byte{0x04, 0x02}, []byte("100;abcdefgh")...))
	msgs, err := fb.Decode()
	assert.ErrorIs(t, err, ErrOverflow)
	assert.Nil(t, msgs)
	assert.Zero(t, fb.Len())
}

// largestConnect builds a Connect whose payload is exactly MaxPayload bytes.
func largestConnect(t *testing.T) message.Connect {
	t.Helper()
	sizingLen := MaxPayload - 1024
	p, err := message.Marshal(message.Connect{Version: strings.Repeat("v", sizingLen)})
	require.NoError(t, err)
	overhead := len(p) - sizingLen
	m := message.Connect{Version: strings.Repeat("v", MaxPayload-overhead)}
	p, err = message.Marshal(m)
	require.NoError(t, err)
	require.Len(t, p, MaxPayload)
	return m
}

func TestFrameBuffer_LargestFrameAcrossReads(t *testing.T) {
	m := largestConnect(t)
	frame := mustFrame(t, m)
	require.LessOrEqual(t, len(frame), MaxFrameSize)

	cfg := NewSessionConfig(config.NetworkConfig{MaxBufferedBytes: MaxPayload})
	assert.Equal(t, MaxFrameSize, cfg.MaxBuffered, "bound is raised to fit a whole frame")
	assert.Equal(t, 4<<20, NewSessionConfig(config.NetworkConfig{MaxBufferedBytes: 4 << 20}).MaxBuffered)

	for _, fb := range []*FrameBuffer{NewFrameBuffer(cfg.MaxBuffered), NewFrameBuffer(config.Defaults().Network.MaxBufferedBytes)} {
		half := len(frame) / 2
		_, _ = fb.Write(frame[:half])
		msgs, err := fb.Decode()
		require.NoError(t, err)
		assert.Empty(t, msgs)

		_, _ = fb.Write(frame[half:])
		msgs, err = fb.Decode()
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, m, msgs[0])
	}
}
