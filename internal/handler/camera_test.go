package handler

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"facewatch/internal/config"
)

func TestFrameAssembler(t *testing.T) {
	a := newFrameAssembler()

	assert.Nil(t, a.push("door", []byte{0x01, 0x02}), "packet without a start is ignored")
	assert.Nil(t, a.push("door", []byte{0xFF, 0xD8, 0x10}))
	assert.Nil(t, a.push("garage", []byte{0xFF, 0xD8, 0x77}))
	frame := a.push("door", []byte{0x11, 0xFF, 0xD9})
	assert.Equal(t, []byte{0xFF, 0xD8, 0x10, 0x11, 0xFF, 0xD9}, frame)

	assert.Equal(t, []byte{0xFF, 0xD8, 0x77, 0xFF, 0xD9}, a.push("garage", []byte{0xFF, 0xD9}))
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF, 0xD9}, a.push("door", []byte{0xFF, 0xD8, 0xFF, 0xD9}))
}

func TestFrameAssemblerRestartsOnNewStart(t *testing.T) {
	a := newFrameAssembler()

	assert.Nil(t, a.push("door", []byte{0xFF, 0xD8, 0x01}))
	assert.Nil(t, a.push("door", []byte{0xFF, 0xD8, 0x02}))
	assert.Equal(t, []byte{0xFF, 0xD8, 0x02, 0xFF, 0xD9}, a.push("door", []byte{0xFF, 0xD9}))
}

func TestFrameAssemblerDropsOversizedFrames(t *testing.T) {
	a := newFrameAssembler()
	chunk := make([]byte, 60000)

	assert.Nil(t, a.push("door", append([]byte{0xFF, 0xD8}, chunk...)))
	for i := 0; i*len(chunk) <= maxFrameSize; i++ {
		assert.Nil(t, a.push("door", chunk))
	}
	assert.Nil(t, a.push("door", []byte{0xFF, 0xD9}))
}

func TestCameraName(t *testing.T) {
	cfg := &config.Config{CameraNames: map[string]string{"10.0.0.5": "door"}}

	assert.Equal(t, "door", cameraName(cfg, &net.UDPAddr{IP: net.ParseIP("10.0.0.5")}))
	assert.Equal(t, "unknown_10.0.0.9", cameraName(cfg, &net.UDPAddr{IP: net.ParseIP("10.0.0.9")}))
}
