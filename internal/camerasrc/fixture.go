// Package camerasrc provides landmarks.Source implementations that
// never require a live camera or face-mesh model: FixtureSource
// replays a prerecorded JSON sequence of landmark frames, the one
// place gazetrack's own code stands in for an external landmark
// provider. A cgo-backed live webcam adapter was considered here but
// dropped — see DESIGN.md — since the numerical core only ever
// consumes landmarks.Frame, and nothing in this repository turns raw
// camera pixels into landmarks (that step is explicitly out of scope,
// spec.md §1).
package camerasrc

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gazetrack/gazetrack/pkg/landmarks"
)

// FixtureFrame is the on-disk JSON representation of one recorded
// landmark frame, used by the CLI replay tool in place of a live
// camera + face-mesh pipeline.
type FixtureFrame struct {
	Points      [][3]float64 `json:"points"` // [x, y, z] per landmark
	FacePresent bool         `json:"face_present"`
	TimestampMS float64      `json:"timestamp_ms"`
}

// FixtureSource replays a prerecorded sequence of landmark frames,
// satisfying pkg/landmarks.Source without any camera or face-mesh
// dependency — the one place gazetrack's own code stands in for the
// external landmark provider, strictly for offline replay and tests.
type FixtureSource struct {
	frames []landmarks.Frame
	pos    int
	closed bool
}

// NewFixtureSource wraps an in-memory sequence of frames.
func NewFixtureSource(frames []landmarks.Frame) *FixtureSource {
	return &FixtureSource{frames: frames}
}

// LoadFixtureFile reads a JSON array of FixtureFrame from path and
// returns a ready FixtureSource.
func LoadFixtureFile(path string) (*FixtureSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("camerasrc: reading fixture file: %w", err)
	}

	var raw []FixtureFrame
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("camerasrc: parsing fixture file: %w", err)
	}

	frames := make([]landmarks.Frame, len(raw))
	for i, rf := range raw {
		points := make([]landmarks.Point, len(rf.Points))
		for j, p := range rf.Points {
			points[j] = landmarks.Point{X: p[0], Y: p[1], Z: p[2], HasZ: p[2] != 0}
		}
		frames[i] = landmarks.Frame{
			Points:      points,
			FacePresent: rf.FacePresent,
			TimestampMS: rf.TimestampMS,
		}
	}

	return NewFixtureSource(frames), nil
}

// Next returns the next recorded frame, or false once the sequence is
// exhausted or the source has been closed.
func (f *FixtureSource) Next() (landmarks.Frame, bool) {
	if f.closed || f.pos >= len(f.frames) {
		return landmarks.Frame{}, false
	}
	frame := f.frames[f.pos]
	f.pos++
	return frame, true
}

// Close marks the source exhausted; subsequent Next calls return false.
func (f *FixtureSource) Close() error {
	f.closed = true
	return nil
}
