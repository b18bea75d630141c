package session

import (
	"encoding/json"
	"testing"

	"github.com/gazetrack/gazetrack/pkg/features"
	"github.com/gazetrack/gazetrack/pkg/fixation"
	"github.com/gazetrack/gazetrack/pkg/gaze"
)

func trainedTestModel(t *testing.T) *gaze.Model {
	t.Helper()
	m := gaze.New(gaze.Config{
		DefaultLambda:         0.008,
		MinCalibrationSamples: 80,
		HistorySize:           11,
		OneEuroMinCutoff:      1.0,
		OneEuroBeta:           0.007,
		OneEuroDCutoff:        1.0,
	})

	var samples []gaze.CalibrationSample
	targetID := 0
	for gx := 0; gx < 5; gx++ {
		for gy := 0; gy < 5; gy++ {
			tx := 100.0 + float64(gx)*200
			ty := 100.0 + float64(gy)*200
			for i := 0; i < 35; i++ {
				samples = append(samples, gaze.CalibrationSample{
					Features: features.EyeFeatures{
						LeftIrisRelXY:  features.Vec2{X: tx / 1000, Y: ty / 1000},
						RightIrisRelXY: features.Vec2{X: tx / 1000, Y: ty / 1000},
						Confidence:     0.9,
						EyeOpenness:    0.3,
					},
					TargetX: tx, TargetY: ty, TargetID: targetID,
				})
			}
			targetID++
		}
	}

	if _, err := m.Train(samples, 1000, 1000); err != nil {
		t.Fatalf("unexpected training error: %v", err)
	}
	return m
}

func TestSessionHasUniqueID(t *testing.T) {
	m := trainedTestModel(t)
	s1 := New(m, fixation.DefaultConfig())
	s2 := New(m, fixation.DefaultConfig())
	if s1.ID == "" || s1.ID == s2.ID {
		t.Errorf("expected distinct non-empty session IDs, got %q and %q", s1.ID, s2.ID)
	}
}

func TestTrackImageProducesGazePointsAndMetrics(t *testing.T) {
	m := trainedTestModel(t)
	s := New(m, fixation.DefaultConfig())

	tracker := s.TrackImage(0, ImageSpec{Width: 1000, Height: 1000, ExpectedDurationMS: 2000})
	for i := 0; i < 20; i++ {
		tracker.Feed(features.EyeFeatures{
			LeftIrisRelXY:  features.Vec2{X: 0.1, Y: 0.1},
			RightIrisRelXY: features.Vec2{X: 0.1, Y: 0.1},
			Confidence:     0.9,
			EyeOpenness:    0.3,
		}, float64(i)*50)
	}
	result := tracker.Finish()
	s.RecordImage(result)

	if len(result.GazePoints) == 0 {
		t.Error("expected at least one predicted gaze point")
	}
	if len(s.Results()) != 1 {
		t.Errorf("expected one recorded image result, got %d", len(s.Results()))
	}
}

func TestBuildResultsDocumentRoundTripsToJSON(t *testing.T) {
	m := trainedTestModel(t)
	s := New(m, fixation.DefaultConfig())

	tracker := s.TrackImage(0, ImageSpec{Width: 800, Height: 600})
	for i := 0; i < 15; i++ {
		tracker.Feed(features.EyeFeatures{
			LeftIrisRelXY:  features.Vec2{X: 0.1, Y: 0.1},
			RightIrisRelXY: features.Vec2{X: 0.1, Y: 0.1},
			Confidence:     0.9,
			EyeOpenness:    0.3,
		}, float64(i)*60)
	}
	s.RecordImage(tracker.Finish())

	doc := BuildResultsDocument(gaze.TrainResult{MeanError: 4.2}, true, s.Results())
	data, err := ExportJSON(doc)
	if err != nil {
		t.Fatalf("unexpected export error: %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("expected valid JSON, got error: %v", err)
	}
	if parsed["image_count"].(float64) != 1 {
		t.Errorf("expected image_count 1, got %v", parsed["image_count"])
	}
	cal := parsed["calibration"].(map[string]interface{})
	if cal["method"] != "poly2_ridge_cubic" {
		t.Errorf("expected calibration method poly2_ridge_cubic, got %v", cal["method"])
	}
}

func TestExportYAMLProducesParsableOutput(t *testing.T) {
	doc := BuildResultsDocument(gaze.TrainResult{MeanError: 1}, false, nil)
	data, err := ExportYAML(doc)
	if err != nil {
		t.Fatalf("unexpected YAML export error: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected non-empty YAML output")
	}
}
