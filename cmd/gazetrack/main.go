// Package main provides the gazetrack CLI: a synthetic end-to-end
// replay tool that runs calibration and per-image tracking against
// prerecorded landmark fixtures, emitting the results JSON and a
// heatmap PNG per image.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image/png"
	"log"
	"math"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gazetrack/gazetrack/internal/camerasrc"
	"github.com/gazetrack/gazetrack/internal/config"
	"github.com/gazetrack/gazetrack/pkg/calibration"
	"github.com/gazetrack/gazetrack/pkg/features"
	"github.com/gazetrack/gazetrack/pkg/gaze"
	"github.com/gazetrack/gazetrack/pkg/heatmap"
	"github.com/gazetrack/gazetrack/pkg/landmarks"
	"github.com/gazetrack/gazetrack/pkg/session"
	"github.com/gazetrack/gazetrack/pkg/telemetry"
)

// nominalCaptureFPS converts the config package's duration-based settle
// tunable (seconds) into the calibration package's frame-count one; no
// config field records an actual capture frame rate, so a fixed nominal
// rate stands in for it, matching the fixture format's own assumption
// of a steady sampling interval.
const nominalCaptureFPS = 30.0

var version = "0.1.0"

// imageManifestEntry describes one stimulus image's tracking fixture.
type imageManifestEntry struct {
	Width             float64 `json:"width"`
	Height            float64 `json:"height"`
	ExpectedDurationMS float64 `json:"expected_duration_ms"`
	FramesFile        string  `json:"frames"`
}

type imageManifest struct {
	Images []imageManifestEntry `json:"images"`
}

func main() {
	configPath := flag.String("config", "", "Path to TOML configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	calibrationFixture := flag.String("calibration", "", "Path to a recorded landmark-frame fixture for calibration")
	imagesManifestPath := flag.String("images", "", "Path to a JSON manifest of per-image tracking fixtures")
	outDir := flag.String("out", "gazetrack-out", "Output directory for results.json and heatmap PNGs")
	verbose := flag.Bool("verbose", false, "Enable verbose output")
	telemetryAddr := flag.String("telemetry", "", "Optional host:port to broadcast live gaze/quality telemetry over UDP")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "gazetrack - webcam-based gaze estimation and attention analysis\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s -calibration cal.json -images images.json [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("gazetrack version %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *calibrationFixture == "" || *imagesManifestPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	if *verbose {
		log.Printf("Configuration: calibration target=%d, fixation velocity threshold=%.1f px/s",
			cfg.Calibration.TargetSampleCount, cfg.Fixation.VelocityThresholdPxS)
	}

	model := gaze.New(gaze.Config{
		DefaultLambda:         cfg.Gaze.DefaultLambda,
		MinCalibrationSamples: cfg.Gaze.MinCalibrationSamples,
		HistorySize:           cfg.Gaze.HistorySize,
		OneEuroMinCutoff:      cfg.Filters.OneEuroMinCutoff,
		OneEuroBeta:           cfg.Filters.OneEuroBeta,
		OneEuroDCutoff:        cfg.Filters.OneEuroDCutoff,
		UseKalman:             cfg.Filters.UseKalman,
		KalmanProcessNoise:    cfg.Filters.KalmanProcessNoise,
		KalmanMeasurementNoise: cfg.Filters.KalmanMeasurementNoise,
	})

	var broadcaster *telemetry.Broadcaster
	if *telemetryAddr != "" {
		host, portStr, err := net.SplitHostPort(*telemetryAddr)
		if err != nil {
			log.Fatalf("Invalid -telemetry address %q: %v", *telemetryAddr, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			log.Fatalf("Invalid -telemetry port %q: %v", portStr, err)
		}
		broadcaster, err = telemetry.NewBroadcaster(host, port)
		if err != nil {
			log.Fatalf("Failed to start telemetry broadcaster: %v", err)
		}
		defer broadcaster.Close()
	}

	trainResult, validated, err := runCalibration(model, cfg, *calibrationFixture, *verbose)
	if err != nil {
		log.Fatalf("Calibration failed: %v", err)
	}
	log.Printf("Calibration complete: mean error %.1fpx, validated=%v", trainResult.MeanError, validated)

	manifest, err := loadImageManifest(*imagesManifestPath)
	if err != nil {
		log.Fatalf("Failed to load image manifest: %v", err)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	sess := session.NewFromConfig(model, cfg)
	hgen := heatmap.NewGenerator(heatmap.Config{
		BlurSigma:  cfg.Heatmap.SigmaPx,
		MinOpacity: cfg.Heatmap.MinOpacity,
		MaxOpacity: cfg.Heatmap.MaxOpacity,
		Gradient:   heatmap.DefaultGradient(),
		LayerCount: 3,
		LayerDecay: 0.25,
	})

	for i, entry := range manifest.Images {
		result, err := trackImage(sess, i, entry, *verbose, broadcaster)
		if err != nil {
			log.Fatalf("Failed to track image %d: %v", i, err)
		}
		sess.RecordImage(result)

		if *verbose {
			log.Printf("Image %d quality: score=%.1f grade=%s", i, result.Quality.Score, result.Quality.Grade)
		}
		if broadcaster != nil {
			if err := broadcaster.SendQualitySnapshot(telemetry.QualitySnapshot{
				GazeOnScreenPercent:  result.Quality.GazeOnScreenPercent,
				SamplingRateHz:       result.Quality.SamplingRateHz,
				DataIntegrityPercent: result.Quality.DataIntegrityPercent,
			}); err != nil {
				log.Printf("Warning: failed to broadcast quality snapshot for image %d: %v", i, err)
			}
		}

		if err := renderHeatmap(hgen, result, *outDir, i); err != nil {
			log.Printf("Warning: failed to render heatmap for image %d: %v", i, err)
		}
	}

	doc := session.BuildResultsDocument(trainResult, validated, sess.Results())
	data, err := session.ExportJSON(doc)
	if err != nil {
		log.Fatalf("Failed to export results JSON: %v", err)
	}

	resultsPath := filepath.Join(*outDir, "results.json")
	if err := os.WriteFile(resultsPath, data, 0o644); err != nil {
		log.Fatalf("Failed to write results file: %v", err)
	}
	log.Printf("Results written to %s", resultsPath)
}

// calibrationManagerConfig maps the loaded configuration onto the
// calibration package's tunables, converting the settle window from
// seconds to a frame count via nominalCaptureFPS.
func calibrationManagerConfig(cfg *config.Config) calibration.Config {
	return calibration.Config{
		ScreenPadding:      float64(cfg.Calibration.ScreenPadding),
		ValidationPadding:  float64(cfg.Calibration.ValidationPadding),
		SettleFrames:       int(math.Round(cfg.Calibration.SettleSeconds * nominalCaptureFPS)),
		MinConfidence:      cfg.Calibration.MinConfidence,
		SampleBufferSize:   cfg.Calibration.SampleBufferSize,
		JitterStdThreshold: cfg.Calibration.JitterStdThreshold,
		MinAcceptedSamples: cfg.Calibration.MinAcceptedSamples,
		TargetSampleCount:  cfg.Calibration.TargetSampleCount,
		MaxRetries:         cfg.Calibration.MaxRetries,
	}
}

// runCalibration drives a calibration.Manager end to end over a single
// recorded fixture: every frame is gated through Sample while
// calibrating (so the settle/stability/jitter/retry logic actually
// runs, instead of being bypassed), Train fires once the grid and its
// retries are exhausted, and every subsequent frame is gated through
// ValidationSample until the validation grid is likewise exhausted and
// FinishValidation fits the affine correction. It reports whether
// validation completed successfully.
func runCalibration(model *gaze.Model, cfg *config.Config, fixturePath string, verbose bool) (gaze.TrainResult, bool, error) {
	src, err := camerasrc.LoadFixtureFile(fixturePath)
	if err != nil {
		return gaze.TrainResult{}, false, fmt.Errorf("loading calibration fixture: %w", err)
	}
	defer src.Close()

	const screenW, screenH = 1920, 1080
	mgr := calibration.NewManager(calibrationManagerConfig(cfg), model)
	if err := mgr.Start(screenW, screenH); err != nil {
		return gaze.TrainResult{}, false, fmt.Errorf("starting calibration: %w", err)
	}
	if err := mgr.Begin(); err != nil {
		return gaze.TrainResult{}, false, fmt.Errorf("beginning calibration: %w", err)
	}

	var samples []gaze.CalibrationSample
	var trainResult gaze.TrainResult
	frameCount := 0

	for {
		frame, ok := src.Next()
		if !ok {
			break
		}
		frameCount++
		f := features.Extract(frame, features.Options{})

		switch mgr.Phase() {
		case calibration.PhaseCalibrating:
			if sample, accepted := mgr.Sample(f); accepted {
				samples = append(samples, sample)
			}
			if _, more := mgr.CurrentCalibrationPoint(); !more && mgr.Phase() == calibration.PhaseCalibrating {
				trainResult, err = mgr.Train(samples)
				if err != nil {
					return gaze.TrainResult{}, false, fmt.Errorf("training gaze model: %w", err)
				}
			}
		case calibration.PhaseValidating:
			if _, more := mgr.CurrentValidationPoint(); !more {
				mgr.FinishValidation()
				continue
			}
			if pred, ok := model.Predict(f, frame.TimestampMS); ok {
				mgr.ValidationSample(pred.X, pred.Y, f)
			}
		}
	}

	if mgr.Phase() == calibration.PhaseValidating {
		mgr.FinishValidation()
	}

	if verbose {
		log.Printf("Loaded %d calibration frames, mean error %.1fpx, phase=%s", frameCount, trainResult.MeanError, mgr.Phase())
	}

	return trainResult, mgr.Phase() == calibration.PhaseComplete, nil
}

func loadImageManifest(path string) (imageManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return imageManifest{}, fmt.Errorf("reading manifest: %w", err)
	}
	var m imageManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return imageManifest{}, fmt.Errorf("parsing manifest: %w", err)
	}
	return m, nil
}

func trackImage(sess *session.Session, index int, entry imageManifestEntry, verbose bool, broadcaster *telemetry.Broadcaster) (session.ImageResult, error) {
	src, err := camerasrc.LoadFixtureFile(entry.FramesFile)
	if err != nil {
		return session.ImageResult{}, fmt.Errorf("loading frames: %w", err)
	}
	defer src.Close()

	tracker := sess.TrackImage(index, session.ImageSpec{
		Width: entry.Width, Height: entry.Height, ExpectedDurationMS: entry.ExpectedDurationMS,
	})

	frameCount := 0
	for {
		frame, ok := src.Next()
		if !ok {
			break
		}
		f := features.Extract(frame, features.Options{})
		tracker.Feed(f, frame.TimestampMS)
		frameCount++

		if broadcaster != nil {
			if last, ok := tracker.LastRecord(); ok {
				if err := broadcaster.SendGazeEvent(telemetry.GazeEvent{
					X: last.X, Y: last.Y, Confidence: last.Confidence, TimestampMS: last.TimestampMS,
				}); err != nil && verbose {
					log.Printf("Warning: failed to broadcast gaze event: %v", err)
				}
			}
		}
	}

	if verbose {
		log.Printf("Image %d: tracked %d frames", index, frameCount)
	}

	return tracker.Finish(), nil
}

func renderHeatmap(gen *heatmap.Generator, result session.ImageResult, outDir string, index int) error {
	points := make([]heatmap.Point, 0, len(result.Metrics.AllFixations))
	maxDuration := 0.0
	for _, fx := range result.Metrics.AllFixations {
		if fx.Duration > maxDuration {
			maxDuration = fx.Duration
		}
	}
	if maxDuration == 0 {
		maxDuration = 1
	}
	for _, fx := range result.Metrics.AllFixations {
		points = append(points, heatmap.Point{
			X: fx.X, Y: fx.Y, Radius: 40, Weight: fx.Duration / maxDuration,
		})
	}
	if len(points) == 0 {
		for _, gp := range result.GazePoints {
			points = append(points, heatmap.Point{X: gp.X, Y: gp.Y, Radius: 40, Weight: 1})
		}
	}

	canvas := gen.Render(int(result.Width), int(result.Height), points)
	path := filepath.Join(outDir, fmt.Sprintf("heatmap-%d.png", index))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return png.Encode(f, canvas)
}

// landmarks is imported so the package boundary it defines
// (pkg/landmarks.Source) is documented as the CLI's only upstream
// dependency; the fixture loader is its one concrete implementation.
var _ landmarks.Source = (*camerasrc.FixtureSource)(nil)
