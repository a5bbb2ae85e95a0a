package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"facewatch/internal/config"
	"facewatch/internal/logger"
)

var (
	jpegHeader = []byte{0xFF, 0xD8}
	jpegFooter = []byte{0xFF, 0xD9}
)

const maxFrameSize = 4 << 20

// CameraImageHandler receives complete JPEG frames from network cameras.
type CameraImageHandler interface {
	HandleCameraImage(image []byte, camera string)
}

// frameAssembler rebuilds JPEG frames from UDP packets per camera. A frame starts with a packet
// beginning with the JPEG SOI marker and ends with a packet finishing with the EOI marker.
type frameAssembler struct {
	buffers map[string]*bytes.Buffer
}

func newFrameAssembler() *frameAssembler {
	return &frameAssembler{buffers: make(map[string]*bytes.Buffer)}
}

// push adds a packet and returns a complete frame when one is ready.
func (a *frameAssembler) push(camera string, data []byte) []byte {
	buf, ok := a.buffers[camera]
	if !ok {
		buf = new(bytes.Buffer)
		a.buffers[camera] = buf
	}

	if bytes.HasPrefix(data, jpegHeader) {
		buf.Reset()
	} else if buf.Len() == 0 {
		// mid-frame packet without a start
		return nil
	}
	buf.Write(data)

	if buf.Len() > maxFrameSize {
		buf.Reset()
		return nil
	}

	if bytes.HasSuffix(data, jpegFooter) {
		frame := make([]byte, buf.Len())
		copy(frame, buf.Bytes())
		buf.Reset()
		return frame
	}
	return nil
}

// cameraName maps a sender address to its configured name.
func cameraName(cfg *config.Config, addr *net.UDPAddr) string {
	ip := addr.IP.String()
	if name, ok := cfg.CameraNames[ip]; ok {
		return name
	}
	return "unknown_" + ip
}

// UDPCameraHandler listens for UDP packets from cameras, reassembles JPEG frames and forwards
// complete frames to handler until ctx is done.
func UDPCameraHandler(ctx context.Context, handler CameraImageHandler, logger *logger.Logger, cfg *config.Config) error {
	addr, err := net.ResolveUDPAddr("udp", ":"+strconv.Itoa(cfg.CamerasPort))
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP port %d: %w", cfg.CamerasPort, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	logger.Info("UDP camera handler started on port %d", cfg.CamerasPort)
	buffer := make([]byte, 65535)
	assembler := newFrameAssembler()

	for {
		n, remoteAddr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Error("Error reading UDP packet: %v", err)
			continue
		}

		if frame := assembler.push(cameraName(cfg, remoteAddr), buffer[:n]); frame != nil {
			handler.HandleCameraImage(frame, cameraName(cfg, remoteAddr))
		}
	}
}
