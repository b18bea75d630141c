package gaze

import "testing"

func TestTrainAsyncDeliversOutcome(t *testing.T) {
	const screenW, screenH = 1000.0, 1000.0
	m := New(testConfig())

	ch := m.TrainAsync(TrainJob{Samples: synthCalibrationSet(screenW, screenH), ScreenW: screenW, ScreenH: screenH})
	outcome := <-ch

	if outcome.Err != nil {
		t.Fatalf("unexpected training error: %v", outcome.Err)
	}
	if outcome.Result.MeanError > 8 {
		t.Errorf("expected mean error <= 8px, got %f", outcome.Result.MeanError)
	}
	if !m.IsTrained() {
		t.Error("expected model to be trained after async job completes")
	}
}

func TestTrainAsyncPropagatesError(t *testing.T) {
	m := New(testConfig())
	ch := m.TrainAsync(TrainJob{Samples: nil, ScreenW: 1000, ScreenH: 1000})
	outcome := <-ch
	if outcome.Err == nil {
		t.Error("expected an error training on zero samples")
	}
}
