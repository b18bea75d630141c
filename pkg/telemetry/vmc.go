// Package telemetry broadcasts live session health over UDP using the
// same OSC wire format the upstream VMC sender used for avatar bone
// data, repurposed here to carry gaze-tracking events instead. The
// broadcaster has no knowledge of how a quality report is computed; a
// caller (cmd/gazetrack) builds one from pkg/quality and passes its
// fields into SendQualitySnapshot.
package telemetry

import (
	"encoding/binary"
	"fmt"
	"math"
	"net"
	"sync"
)

// GazeEvent is one broadcastable unit of live session telemetry.
type GazeEvent struct {
	X, Y        float64
	Confidence  float64
	TimestampMS float64
}

// QualitySnapshot is a periodic health summary broadcast during a
// session, independent of per-frame gaze events.
type QualitySnapshot struct {
	GazeOnScreenPercent  float64
	SamplingRateHz       float64
	DataIntegrityPercent float64
}

// Broadcaster sends session telemetry as OSC messages over UDP. A
// closed or disabled Broadcaster silently drops sends rather than
// erroring, so callers on the per-frame hot path never block on a
// telemetry consumer going away.
type Broadcaster struct {
	mu      sync.Mutex
	conn    *net.UDPConn
	enabled bool
}

// NewBroadcaster dials a UDP endpoint and returns a ready Broadcaster.
func NewBroadcaster(address string, port int) (*Broadcaster, error) {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", address, port))
	if err != nil {
		return nil, fmt.Errorf("resolving telemetry address: %w", err)
	}

	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to telemetry endpoint: %w", err)
	}

	return &Broadcaster{conn: conn, enabled: true}, nil
}

// SendGazeEvent broadcasts one /gazetrack/Gaze/Point OSC message.
func (b *Broadcaster) SendGazeEvent(e GazeEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.enabled || b.conn == nil {
		return nil
	}

	msg := buildOSCMessage("/gazetrack/Gaze/Point",
		float32(e.X), float32(e.Y), float32(e.Confidence), float32(e.TimestampMS))
	if _, err := b.conn.Write(msg); err != nil {
		return fmt.Errorf("sending gaze event: %w", err)
	}
	return nil
}

// SendQualitySnapshot broadcasts a /gazetrack/Quality/Snapshot OSC
// message with the current session health metrics.
func (b *Broadcaster) SendQualitySnapshot(q QualitySnapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.enabled || b.conn == nil {
		return nil
	}

	msg := buildOSCMessage("/gazetrack/Quality/Snapshot",
		float32(q.GazeOnScreenPercent), float32(q.SamplingRateHz), float32(q.DataIntegrityPercent))
	if _, err := b.conn.Write(msg); err != nil {
		return fmt.Errorf("sending quality snapshot: %w", err)
	}
	return nil
}

// Close disables further sends and releases the UDP socket.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.enabled = false
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

// buildOSCMessage packs an address pattern and float32/string/int32
// arguments into an OSC-framed byte message: null-terminated,
// 4-byte-aligned address and type-tag strings, followed by big-endian
// argument payloads.
func buildOSCMessage(address string, args ...interface{}) []byte {
	buf := make([]byte, 0, 64)
	buf = appendOSCString(buf, address)

	typeTag := ","
	for _, arg := range args {
		switch arg.(type) {
		case int32:
			typeTag += "i"
		case float32:
			typeTag += "f"
		case string:
			typeTag += "s"
		}
	}
	buf = appendOSCString(buf, typeTag)

	for _, arg := range args {
		switch v := arg.(type) {
		case int32:
			buf = appendInt32(buf, v)
		case float32:
			buf = appendFloat32(buf, v)
		case string:
			buf = appendOSCString(buf, v)
		}
	}

	return buf
}

func appendOSCString(buf []byte, s string) []byte {
	buf = append(buf, []byte(s)...)
	buf = append(buf, 0)

	padding := (4 - (len(s)+1)%4) % 4
	for i := 0; i < padding; i++ {
		buf = append(buf, 0)
	}
	return buf
}

func appendInt32(buf []byte, v int32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(v))
	return append(buf, b...)
}

func appendFloat32(buf []byte, v float32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, math.Float32bits(v))
	return append(buf, b...)
}
