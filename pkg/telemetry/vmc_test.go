package telemetry

import (
	"encoding/binary"
	"math"
	"net"
	"testing"
)

func TestBuildOSCMessageAlignsToFourBytes(t *testing.T) {
	msg := buildOSCMessage("/gazetrack/Gaze/Point", float32(1.5), float32(2.5))
	if len(msg)%4 != 0 {
		t.Errorf("expected OSC message length to be 4-byte aligned, got %d", len(msg))
	}
}

func TestBuildOSCMessageEncodesFloatArgsBigEndian(t *testing.T) {
	msg := buildOSCMessage("/x", float32(3.25))
	// Address "/x" padded to 4 bytes, type tag ",f" padded to 4 bytes,
	// then the 4-byte float argument.
	argStart := 4 + 4
	bits := binary.BigEndian.Uint32(msg[argStart : argStart+4])
	got := math.Float32frombits(bits)
	if got != 3.25 {
		t.Errorf("expected decoded float32 3.25, got %f", got)
	}
}

func TestBroadcasterSendGazeEventDoesNotErrorOnLoopback(t *testing.T) {
	// Listen on an ephemeral UDP port so Dial succeeds against a live peer.
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("failed to open loopback listener: %v", err)
	}
	defer conn.Close()
	port := conn.LocalAddr().(*net.UDPAddr).Port

	b, err := NewBroadcaster("127.0.0.1", port)
	if err != nil {
		t.Fatalf("unexpected dial error: %v", err)
	}
	defer b.Close()

	if err := b.SendGazeEvent(GazeEvent{X: 100, Y: 200, Confidence: 0.9, TimestampMS: 1000}); err != nil {
		t.Errorf("unexpected send error: %v", err)
	}
}

func TestBroadcasterSilentlyDropsAfterClose(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("failed to open loopback listener: %v", err)
	}
	defer conn.Close()
	port := conn.LocalAddr().(*net.UDPAddr).Port

	b, err := NewBroadcaster("127.0.0.1", port)
	if err != nil {
		t.Fatalf("unexpected dial error: %v", err)
	}
	b.Close()

	if err := b.SendGazeEvent(GazeEvent{X: 1, Y: 1}); err != nil {
		t.Errorf("expected a disabled broadcaster to drop sends silently, got %v", err)
	}
}
