// Package fixation turns a per-frame stream of gaze points into fixations,
// saccades, and DBSCAN regions of interest, following the same windowed
// I-VT approach the upstream tracker uses for head-pose stability gating.
package fixation

import (
	"math"
	"sort"
)

// Config holds the tunables a Detector is constructed with.
type Config struct {
	VelocityThreshold   float64 // px/s
	MinFixationDuration float64 // ms
	MaxFixationRadius   float64 // px
	DBSCANEps           float64 // px
	DBSCANMinPts        int
}

// DefaultConfig matches the upstream detector's fixed defaults.
func DefaultConfig() Config {
	return Config{
		VelocityThreshold:   55,
		MinFixationDuration: 100,
		MaxFixationRadius:   40,
		DBSCANEps:           35,
		DBSCANMinPts:        5,
	}
}

// GazeSample is one timestamped, confidence-scored point of regard in
// image-local coordinates.
type GazeSample struct {
	X, Y       float64
	TimestampMS float64
	Confidence float64
}

// Fixation is a maintained low-velocity gaze cluster exceeding the
// duration floor.
type Fixation struct {
	X, Y          float64
	StartTime     float64
	EndTime       float64
	Duration      float64
	PointCount    int
	AvgConfidence float64
}

// Saccade is the ballistic transition measured between two consecutive
// fixations.
type Saccade struct {
	StartX, StartY float64
	EndX, EndY     float64
	StartTime      float64
	EndTime        float64
	Velocity       float64
}

// ROICluster is a DBSCAN-clustered group of fixations.
type ROICluster struct {
	ID            int
	CenterX       float64
	CenterY       float64
	TotalDuration float64
	FixationCount int
	Radius        float64
}

// Metrics summarizes a complete tracking window.
type Metrics struct {
	FirstFixation        *Fixation
	TimeToFirstFixation  float64
	FirstThreeFixations  []Fixation
	LongestFixation      *Fixation
	TotalFixationDuration float64
	TotalViewTime        float64
	FixationCount        int
	AverageFixationDuration float64
	AllFixations         []Fixation
	Saccades             []Saccade
	ROIClusters          []ROICluster
}

type inProgress struct {
	points []GazeSample
}

func (ip *inProgress) weightedCentre() (x, y float64) {
	if len(ip.points) == 0 {
		return 0, 0
	}
	var sumW, sumX, sumY float64
	for _, p := range ip.points {
		w := p.Confidence
		if w <= 0 {
			w = 0.01
		}
		sumW += w
		sumX += w * p.X
		sumY += w * p.Y
	}
	if sumW == 0 {
		return 0, 0
	}
	return sumX / sumW, sumY / sumW
}

func (ip *inProgress) avgConfidence() float64 {
	if len(ip.points) == 0 {
		return 0
	}
	var sum float64
	for _, p := range ip.points {
		sum += p.Confidence
	}
	return sum / float64(len(ip.points))
}

// Detector owns its sample window and fixation list exclusively for the
// lifetime of one image's tracking window.
type Detector struct {
	cfg Config

	trackingStart float64
	started       bool

	lastValidTS    float64
	hasLastValid   bool
	postBlinkCount int

	window []GazeSample

	current    inProgress
	hasCurrent bool

	fixations []Fixation
	saccades  []Saccade

	lastFixationEnd GazeSample
	hasLastFixation bool

	lastGazeTS float64
}

// NewDetector constructs a Detector with the given config.
func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Ingest feeds one GazePoint into the online I-VT classifier.
func (d *Detector) Ingest(s GazeSample) {
	if !d.started {
		d.trackingStart = s.TimestampMS
		d.started = true
	}
	d.lastGazeTS = s.TimestampMS

	if s.Confidence < 0.3 {
		return
	}

	if d.hasLastValid {
		gap := s.TimestampMS - d.lastValidTS
		if gap > 100 && gap < 400 {
			d.postBlinkCount = 2
		}
	}
	d.lastValidTS = s.TimestampMS
	d.hasLastValid = true

	if d.postBlinkCount > 0 {
		d.postBlinkCount--
		d.finalizeCurrent()
		d.window = nil
		return
	}

	d.window = append(d.window, s)
	if len(d.window) > 3 {
		d.window = d.window[len(d.window)-3:]
	}

	velocity := 0.0
	if len(d.window) >= 2 {
		first := d.window[0]
		last := d.window[len(d.window)-1]
		dt := (last.TimestampMS - first.TimestampMS) / 1000.0
		if dt > 0 {
			velocity = math.Hypot(last.X-first.X, last.Y-first.Y) / dt
		}
	}

	if !d.hasCurrent {
		d.current = inProgress{points: []GazeSample{s}}
		d.hasCurrent = true
		return
	}

	cx, cy := d.current.weightedCentre()
	distToCentre := math.Hypot(s.X-cx, s.Y-cy)

	if velocity < d.cfg.VelocityThreshold && distToCentre < d.cfg.MaxFixationRadius {
		d.current.points = append(d.current.points, s)
		return
	}

	before := len(d.fixations)
	d.finalizeCurrent()
	d.current = inProgress{points: []GazeSample{s}}
	d.hasCurrent = true

	if d.hasLastFixation && len(d.fixations) > before {
		d.saccades = append(d.saccades, Saccade{
			StartX: d.lastFixationEnd.X, StartY: d.lastFixationEnd.Y,
			EndX: s.X, EndY: s.Y,
			StartTime: d.lastFixationEnd.TimestampMS, EndTime: s.TimestampMS,
			Velocity: velocity,
		})
	}
}

// finalizeCurrent emits the in-progress fixation if it clears the
// duration floor and clears the accumulator.
func (d *Detector) finalizeCurrent() {
	if !d.hasCurrent || len(d.current.points) == 0 {
		d.hasCurrent = false
		return
	}
	pts := d.current.points
	start := pts[0].TimestampMS
	end := pts[len(pts)-1].TimestampMS
	duration := end - start

	d.hasCurrent = false

	if duration < d.cfg.MinFixationDuration {
		return
	}

	x, y := d.current.weightedCentre()
	f := Fixation{
		X: x, Y: y,
		StartTime:     start,
		EndTime:       end,
		Duration:      duration,
		PointCount:    len(pts),
		AvgConfidence: d.current.avgConfidence(),
	}
	d.fixations = append(d.fixations, f)
	d.lastFixationEnd = GazeSample{X: x, Y: y, TimestampMS: end}
	d.hasLastFixation = true
}

// Finish terminates tracking, finalising any in-progress fixation,
// running DBSCAN over the result, and returning the complete metrics.
func (d *Detector) Finish() Metrics {
	d.finalizeCurrent()

	clusters := DBSCAN(d.fixations, d.cfg.DBSCANEps, d.cfg.DBSCANMinPts)

	sorted := make([]Fixation, len(d.fixations))
	copy(sorted, d.fixations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartTime < sorted[j].StartTime })

	m := Metrics{
		AllFixations: sorted,
		Saccades:     d.saccades,
		ROIClusters:  clusters,
		FixationCount: len(sorted),
		TotalViewTime: d.lastGazeTS - d.trackingStart,
	}

	if len(sorted) > 0 {
		first := sorted[0]
		m.FirstFixation = &first
		m.TimeToFirstFixation = first.StartTime - d.trackingStart

		n := 3
		if len(sorted) < n {
			n = len(sorted)
		}
		m.FirstThreeFixations = append([]Fixation{}, sorted[:n]...)

		longest := sorted[0]
		var total float64
		for _, f := range sorted {
			total += f.Duration
			if f.Duration > longest.Duration {
				longest = f
			}
		}
		m.LongestFixation = &longest
		m.TotalFixationDuration = total
		m.AverageFixationDuration = total / float64(len(sorted))
	}

	return m
}

// Reset clears all buffers and counters. Partial reuse across sessions
// is forbidden: call Reset (or construct a fresh Detector) before the
// next image's tracking window begins.
func (d *Detector) Reset() {
	*d = Detector{cfg: d.cfg}
}
