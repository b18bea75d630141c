package gaze

// TrainJob is the input to the optional worker-task training boundary
// (spec §5). The Samples slice is passed by reference; the trained
// weights stay inside the Model, which TrainAsync updates in place, and
// the channel carries only the fit summary and error.
type TrainJob struct {
	Samples          []CalibrationSample
	ScreenW, ScreenH float64
}

// TrainOutcome is the fit summary and error delivered back over the
// channel; it does not carry the weights.
type TrainOutcome struct {
	Result TrainResult
	Err    error
}

// TrainAsync runs Train on a background goroutine and returns a channel
// that receives exactly one TrainOutcome. Callers with a latency-
// sensitive per-frame loop use this instead of calling Train directly,
// since a multi-thousand-sample fit can take tens of milliseconds.
func (m *Model) TrainAsync(job TrainJob) <-chan TrainOutcome {
	out := make(chan TrainOutcome, 1)
	go func() {
		result, err := m.Train(job.Samples, job.ScreenW, job.ScreenH)
		out <- TrainOutcome{Result: result, Err: err}
	}()
	return out
}
