// Package heatmap rasterises fixation or gaze-point density into a
// colourised PNG overlay, using a two-pass radial-falloff-then-blur
// approach modeled on the fixed-point accumulation style the upstream
// grid/background rasters use for per-cell state.
package heatmap

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	ximage "golang.org/x/image/draw"
)

// GradientStop is one colour anchor in the intensity→colour palette.
type GradientStop struct {
	Position float64 // 0..1
	R, G, B  uint8
}

// Config holds the tunables a Generator renders with.
type Config struct {
	BlurSigma    float64
	MinOpacity   float64
	MaxOpacity   float64
	Gradient     []GradientStop
	LayerCount   int
	LayerDecay   float64 // radius shrink per layer
}

// DefaultGradient is the blue→cyan→green→yellow→orange→red ramp.
func DefaultGradient() []GradientStop {
	return []GradientStop{
		{0.00, 0, 0, 255},
		{0.20, 0, 255, 255},
		{0.40, 0, 255, 0},
		{0.60, 255, 255, 0},
		{0.80, 255, 165, 0},
		{1.00, 255, 0, 0},
	}
}

// DefaultConfig matches the default render parameters.
func DefaultConfig() Config {
	return Config{
		BlurSigma:  25,
		MinOpacity: 0.02,
		MaxOpacity: 0.75,
		Gradient:   DefaultGradient(),
		LayerCount: 3,
		LayerDecay: 0.25,
	}
}

// Point is one weighted sample to accumulate: a fixation contributes
// its duration, a bare gaze point contributes a unit weight.
type Point struct {
	X, Y     float64
	Radius   float64
	Weight   float64 // normalised 0..1 against the frame's maximum
}

// Generator owns the palette lookup table built once per Config.
type Generator struct {
	cfg     Config
	palette [256]color.RGBA
}

// NewGenerator builds a Generator, precomputing the 256-entry palette
// from the configured gradient stops.
func NewGenerator(cfg Config) *Generator {
	g := &Generator{cfg: cfg}
	g.buildPalette()
	return g
}

func (g *Generator) buildPalette() {
	stops := g.cfg.Gradient
	if len(stops) == 0 {
		stops = DefaultGradient()
	}
	for i := 0; i < 256; i++ {
		t := float64(i) / 255.0
		g.palette[i] = interpolateGradient(stops, t)
	}
}

func interpolateGradient(stops []GradientStop, t float64) color.RGBA {
	if t <= stops[0].Position {
		s := stops[0]
		return color.RGBA{s.R, s.G, s.B, 255}
	}
	last := stops[len(stops)-1]
	if t >= last.Position {
		return color.RGBA{last.R, last.G, last.B, 255}
	}
	for i := 0; i < len(stops)-1; i++ {
		a, b := stops[i], stops[i+1]
		if t >= a.Position && t <= b.Position {
			span := b.Position - a.Position
			frac := 0.0
			if span > 0 {
				frac = (t - a.Position) / span
			}
			return color.RGBA{
				lerp8(a.R, b.R, frac),
				lerp8(a.G, b.G, frac),
				lerp8(a.B, b.B, frac),
				255,
			}
		}
	}
	return color.RGBA{last.R, last.G, last.B, 255}
}

func lerp8(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t)
}

// RenderIntensity executes pass 1: an additive radial-falloff
// accumulation of every point into a float64 intensity canvas.
func (g *Generator) RenderIntensity(width, height int, points []Point) [][]float64 {
	canvas := make([][]float64, height)
	for y := range canvas {
		canvas[y] = make([]float64, width)
	}

	layers := g.cfg.LayerCount
	if layers <= 0 {
		layers = 3
	}
	decay := g.cfg.LayerDecay

	for _, p := range points {
		for layer := 0; layer < layers; layer++ {
			r := p.Radius * (1 - decay*float64(layer))
			if r <= 0 {
				continue
			}
			alpha := p.Weight
			splatRadialFalloff(canvas, width, height, p.X, p.Y, r, alpha)
		}
	}
	return canvas
}

func splatRadialFalloff(canvas [][]float64, width, height int, cx, cy, radius, alpha float64) {
	minX := int(math.Floor(cx - radius))
	maxX := int(math.Ceil(cx + radius))
	minY := int(math.Floor(cy - radius))
	maxY := int(math.Ceil(cy + radius))
	if minX < 0 {
		minX = 0
	}
	if minY < 0 {
		minY = 0
	}
	if maxX > width-1 {
		maxX = width - 1
	}
	if maxY > height-1 {
		maxY = height - 1
	}

	r2 := radius * radius
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			dx := float64(x) - cx
			dy := float64(y) - cy
			d2 := dx*dx + dy*dy
			if d2 > r2 {
				continue
			}
			falloff := 1 - math.Sqrt(d2)/radius
			if falloff < 0 {
				falloff = 0
			}
			canvas[y][x] += alpha * falloff
		}
	}
}

// GaussianBlur applies a separable Gaussian blur of the given sigma. A
// non-positive sigma returns the canvas unblurred; a three-pass box
// blur (a stack-blur approximation) is used when the Gaussian kernel
// has fewer than three taps.
func GaussianBlur(canvas [][]float64, width, height int, sigma float64) [][]float64 {
	if sigma <= 0 {
		return canvas
	}
	kernel := gaussianKernel(sigma)
	if len(kernel) < 3 {
		return boxBlur3Pass(canvas, width, height, int(math.Max(1, sigma/3)))
	}

	tmp := make([][]float64, height)
	for y := range tmp {
		tmp[y] = make([]float64, width)
	}
	out := make([][]float64, height)
	for y := range out {
		out[y] = make([]float64, width)
	}

	radius := len(kernel) / 2

	// Horizontal pass.
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var sum float64
			for k := -radius; k <= radius; k++ {
				sx := x + k
				if sx < 0 || sx >= width {
					continue
				}
				sum += canvas[y][sx] * kernel[k+radius]
			}
			tmp[y][x] = sum
		}
	}

	// Vertical pass.
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var sum float64
			for k := -radius; k <= radius; k++ {
				sy := y + k
				if sy < 0 || sy >= height {
					continue
				}
				sum += tmp[sy][x] * kernel[k+radius]
			}
			out[y][x] = sum
		}
	}
	return out
}

func gaussianKernel(sigma float64) []float64 {
	radius := int(math.Ceil(sigma * 3))
	if radius < 1 {
		return nil
	}
	size := 2*radius + 1
	kernel := make([]float64, size)
	var sum float64
	for i := 0; i < size; i++ {
		x := float64(i - radius)
		v := math.Exp(-(x * x) / (2 * sigma * sigma))
		kernel[i] = v
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// boxBlur3Pass approximates a Gaussian via three passes of a uniform
// box filter, the classic stack-blur substitute for canvas-filter blur.
func boxBlur3Pass(canvas [][]float64, width, height, radius int) [][]float64 {
	cur := canvas
	for i := 0; i < 3; i++ {
		cur = boxBlurPass(cur, width, height, radius)
	}
	return cur
}

func boxBlurPass(canvas [][]float64, width, height, radius int) [][]float64 {
	out := make([][]float64, height)
	for y := range out {
		out[y] = make([]float64, width)
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var sum float64
			var count float64
			for k := -radius; k <= radius; k++ {
				sx := x + k
				if sx < 0 || sx >= width {
					continue
				}
				sum += canvas[y][sx]
				count++
			}
			out[y][x] = sum / math.Max(count, 1)
		}
	}
	return out
}

// Colourise executes pass 2: normalise by the per-frame maximum, map
// through the palette, and set output alpha per the configured
// opacity range.
func (g *Generator) Colourise(canvas [][]float64, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	maxV := 0.0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if canvas[y][x] > maxV {
				maxV = canvas[y][x]
			}
		}
	}
	if maxV == 0 {
		return img
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			norm := canvas[y][x] / maxV
			if norm < 0 {
				norm = 0
			}
			if norm > 1 {
				norm = 1
			}
			idx := int(norm * 255)
			c := g.palette[idx]
			alpha := g.cfg.MinOpacity + norm*(g.cfg.MaxOpacity-g.cfg.MinOpacity)
			c.A = uint8(alpha * 255)
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// Render runs the complete two-pass pipeline for the given points on a
// width x height canvas.
func (g *Generator) Render(width, height int, points []Point) *image.RGBA {
	intensity := g.RenderIntensity(width, height, points)
	blurred := GaussianBlur(intensity, width, height, g.cfg.BlurSigma)
	return g.Colourise(blurred, width, height)
}

// ExportPNG composites the heatmap overlay onto a resized copy of the
// base image (using x/image/draw for high-quality resampling) and
// returns the encoded PNG bytes.
func (g *Generator) ExportPNG(base image.Image, width, height int, points []Point) ([]byte, error) {
	resizedBase := image.NewRGBA(image.Rect(0, 0, width, height))
	ximage.CatmullRom.Scale(resizedBase, resizedBase.Bounds(), base, base.Bounds(), ximage.Over, nil)

	overlay := g.Render(width, height, points)

	out := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(out, out.Bounds(), resizedBase, image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), overlay, image.Point{}, draw.Over)

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
