package landmarks

import "testing"

func TestFrameUsable(t *testing.T) {
	pts := make([]Point, RequiredIndexCount)
	f := Frame{Points: pts, FacePresent: true}
	if !f.Usable() {
		t.Error("expected frame with full landmark set to be usable")
	}

	f.FacePresent = false
	if f.Usable() {
		t.Error("expected frame without a face to be unusable")
	}

	short := Frame{Points: pts[:10], FacePresent: true}
	if short.Usable() {
		t.Error("expected short landmark set to be unusable")
	}
}

func TestFrameAt(t *testing.T) {
	f := Frame{Points: []Point{{X: 0.1, Y: 0.2}, {X: 0.3, Y: 0.4}}}

	p, ok := f.At(1)
	if !ok || p.X != 0.3 {
		t.Errorf("expected point at index 1, got %+v ok=%v", p, ok)
	}

	_, ok = f.At(5)
	if ok {
		t.Error("expected out-of-range index to report false")
	}

	_, ok = f.At(-1)
	if ok {
		t.Error("expected negative index to report false")
	}
}
