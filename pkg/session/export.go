package session

import (
	"encoding/json"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/gazetrack/gazetrack/pkg/gaze"
)

// CalibrationSummary reports the calibration method and achieved
// quality for the model bound to a session.
type CalibrationSummary struct {
	Method      string `json:"method" yaml:"method"`
	MeanErrorPx int    `json:"mean_error_px" yaml:"mean_error_px"`
	Validated   bool   `json:"validated" yaml:"validated"`
}

type imageDimensions struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

type gazePointDoc struct {
	X           float64 `json:"x" yaml:"x"`
	Y           float64 `json:"y" yaml:"y"`
	TimestampMS float64 `json:"timestamp_ms" yaml:"timestamp_ms"`
	Confidence  float64 `json:"confidence" yaml:"confidence"`
	DtMS        float64 `json:"dt_ms" yaml:"dt_ms"`
}

type firstFixationDoc struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	TimeMS float64 `json:"time_ms" yaml:"time_ms"`
}

type fixationDoc struct {
	X             float64 `json:"x" yaml:"x"`
	Y             float64 `json:"y" yaml:"y"`
	DurationMS    float64 `json:"duration_ms" yaml:"duration_ms"`
	StartMS       float64 `json:"start_ms" yaml:"start_ms"`
	PointCount    int     `json:"point_count" yaml:"point_count"`
	AvgConfidence float64 `json:"avg_confidence" yaml:"avg_confidence"`
}

type roiClusterDoc struct {
	ID              int     `json:"id" yaml:"id"`
	CenterX         float64 `json:"center_x" yaml:"center_x"`
	CenterY         float64 `json:"center_y" yaml:"center_y"`
	TotalDurationMS float64 `json:"total_duration_ms" yaml:"total_duration_ms"`
	FixationCount   int     `json:"fixation_count" yaml:"fixation_count"`
	Radius          float64 `json:"radius" yaml:"radius"`
}

type imageResultDoc struct {
	ImageIndex           int             `json:"image_index" yaml:"image_index"`
	ImageDimensions      imageDimensions `json:"image_dimensions" yaml:"image_dimensions"`
	GazePoints           []gazePointDoc  `json:"gaze_points" yaml:"gaze_points"`
	FirstFixation        *firstFixationDoc `json:"first_fixation" yaml:"first_fixation"`
	Fixations            []fixationDoc   `json:"fixations" yaml:"fixations"`
	TotalViewTimeMS      int             `json:"total_view_time_ms" yaml:"total_view_time_ms"`
	FixationCount        int             `json:"fixation_count" yaml:"fixation_count"`
	AvgFixationDurationMS int            `json:"avg_fixation_duration_ms" yaml:"avg_fixation_duration_ms"`
	ROIClusters          []roiClusterDoc `json:"roi_clusters" yaml:"roi_clusters"`
}

// ResultsDocument is the full per-session results export (spec.md §6).
type ResultsDocument struct {
	Calibration CalibrationSummary `json:"calibration" yaml:"calibration"`
	ImageCount  int                `json:"image_count" yaml:"image_count"`
	Images      []imageResultDoc   `json:"images" yaml:"images"`
}

// BuildResultsDocument assembles the §6 results export from a
// session's recorded image results and the calibration outcome that
// trained its model.
func BuildResultsDocument(calibration gaze.TrainResult, validated bool, results []ImageResult) ResultsDocument {
	doc := ResultsDocument{
		Calibration: CalibrationSummary{
			Method:      "poly2_ridge_cubic",
			MeanErrorPx: int(math.Round(calibration.MeanError)),
			Validated:   validated,
		},
		ImageCount: len(results),
	}

	for _, r := range results {
		doc.Images = append(doc.Images, buildImageDoc(r))
	}
	return doc
}

func buildImageDoc(r ImageResult) imageResultDoc {
	d := imageResultDoc{
		ImageIndex: r.ImageIndex,
		ImageDimensions: imageDimensions{
			Width:  int(math.Round(r.Width)),
			Height: int(math.Round(r.Height)),
		},
		TotalViewTimeMS: int(math.Round(r.Metrics.TotalViewTime)),
		FixationCount:   r.Metrics.FixationCount,
	}

	for _, p := range r.GazePoints {
		d.GazePoints = append(d.GazePoints, gazePointDoc{
			X: p.X, Y: p.Y, TimestampMS: p.TimestampMS, Confidence: p.Confidence, DtMS: p.DtMS,
		})
	}

	if r.Metrics.FirstFixation != nil {
		d.FirstFixation = &firstFixationDoc{
			X: r.Metrics.FirstFixation.X, Y: r.Metrics.FirstFixation.Y,
			TimeMS: r.Metrics.FirstFixation.StartTime,
		}
	}

	for _, f := range r.Metrics.AllFixations {
		d.Fixations = append(d.Fixations, fixationDoc{
			X: f.X, Y: f.Y,
			DurationMS:    f.Duration,
			StartMS:       f.StartTime,
			PointCount:    f.PointCount,
			AvgConfidence: f.AvgConfidence,
		})
	}

	if r.Metrics.FixationCount > 0 {
		d.AvgFixationDurationMS = int(math.Round(r.Metrics.AverageFixationDuration))
	}

	for _, c := range r.Metrics.ROIClusters {
		d.ROIClusters = append(d.ROIClusters, roiClusterDoc{
			ID: c.ID, CenterX: c.CenterX, CenterY: c.CenterY,
			TotalDurationMS: c.TotalDuration,
			FixationCount:   c.FixationCount,
			Radius:          c.Radius,
		})
	}

	return d
}

// ExportJSON marshals the results document as indented JSON, the
// normative wire format from spec.md §6.
func ExportJSON(doc ResultsDocument) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// ExportYAML marshals the results document as YAML, an optional
// export offered alongside the mandated JSON format.
func ExportYAML(doc ResultsDocument) ([]byte, error) {
	return yaml.Marshal(doc)
}
