// Package dataset loads video clip archives for diffusion training.
//
// The input is a NumPy .npy archive of shape [N, F, C, H, W]: N clips
// of F frames each. Loading runs the same preparation pipeline as the
// training data was authored against: spatial 2x2 average pooling,
// reordering to channels-first [N, C, F, H, W], truncation to a fixed
// frame count, and dropping clips that are unusable. The prepared
// clips feed the batch loader.
package dataset

import (
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/sbinet/npyio"

	"github.com/drift-ml/drift/internal/tensor"
)

// Config controls clip preparation.
type Config struct {
	// NumFrames is the clip length after truncation. Archives with
	// fewer frames per clip cannot be used.
	NumFrames int
}

// DefaultConfig matches the training data layout: 8-frame clips.
func DefaultConfig() Config {
	return Config{NumFrames: 8}
}

// Dataset holds prepared clips as one contiguous channels-first
// block. Clips are fixed-shape [C, F, H, W] float32 volumes.
type Dataset struct {
	data  []float32
	clip  tensor.Shape // [C, F, H, W]
	count int
}

// Load reads a .npy clip archive and runs the preparation pipeline:
// 2x2 average pooling over H and W (stride 2), transposition from
// [N, F, C, H, W] to channels-first, truncation to cfg.NumFrames
// frames, and removal of clips containing non-finite values. Supported
// element types are little-endian float32 ("<f4"), float64 ("<f8") and
// bytes ("|u1"); everything is converted to float32 verbatim.
func Load(path string, cfg Config, backend tensor.Backend) (*Dataset, error) {
	if cfg.NumFrames <= 0 {
		return nil, fmt.Errorf("dataset: frame count must be positive, got %d", cfg.NumFrames)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: failed to open archive: %w", err)
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("dataset: failed to parse npy header: %w", err)
	}

	shape := r.Header.Descr.Shape
	if len(shape) != 5 {
		return nil, fmt.Errorf("dataset: archive must be 5D [N,F,C,H,W], got shape %v", shape)
	}
	if r.Header.Descr.Fortran {
		return nil, fmt.Errorf("dataset: fortran-ordered archives are not supported")
	}

	n, frames, channels, h, w := shape[0], shape[1], shape[2], shape[3], shape[4]
	if frames < cfg.NumFrames {
		return nil, fmt.Errorf("dataset: clips have %d frames, need at least %d", frames, cfg.NumFrames)
	}
	if h < 2 || w < 2 {
		return nil, fmt.Errorf("dataset: frames of %dx%d are too small to pool", h, w)
	}

	values, err := readValues(r, n*frames*channels*h*w)
	if err != nil {
		return nil, err
	}

	raw, err := tensor.NewRaw(tensor.Shape{n, frames, channels, h, w}, tensor.Float32, backend.Device())
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	copy(raw.AsFloat32(), values)

	// Pool H and W by 2. The frame axis sits in the channel slot here,
	// which the pooling kernel never touches.
	pooled := backend.AvgPool3D(raw, [3]int{1, 2, 2}, [3]int{1, 2, 2})
	chanFirst := backend.Transpose(pooled, 0, 2, 1, 3, 4)

	d := truncateAndFilter(chanFirst, cfg.NumFrames)
	slog.Info("dataset loaded",
		"path", path,
		"clips", d.count,
		"dropped", n-d.count,
		"clip_shape", d.clip)

	return d, nil
}

// readValues decodes the archive payload into float32 values.
func readValues(r *npyio.Reader, count int) ([]float32, error) {
	switch r.Header.Descr.Type {
	case "<f4":
		values := make([]float32, count)
		if err := r.Read(&values); err != nil {
			return nil, fmt.Errorf("dataset: failed to read float32 payload: %w", err)
		}
		return values, nil
	case "<f8":
		doubles := make([]float64, count)
		if err := r.Read(&doubles); err != nil {
			return nil, fmt.Errorf("dataset: failed to read float64 payload: %w", err)
		}
		values := make([]float32, count)
		for i, v := range doubles {
			values[i] = float32(v)
		}
		return values, nil
	case "|u1":
		bytes := make([]uint8, count)
		if err := r.Read(&bytes); err != nil {
			return nil, fmt.Errorf("dataset: failed to read byte payload: %w", err)
		}
		values := make([]float32, count)
		for i, v := range bytes {
			values[i] = float32(v)
		}
		return values, nil
	default:
		return nil, fmt.Errorf("dataset: unsupported element type %q (want <f4, <f8 or |u1)", r.Header.Descr.Type)
	}
}

// truncateAndFilter keeps the first numFrames frames of every clip and
// drops clips containing NaN or infinite values.
func truncateAndFilter(chanFirst *tensor.RawTensor, numFrames int) *Dataset {
	shape := chanFirst.Shape()
	n, channels, frames := shape[0], shape[1], shape[2]
	h, w := shape[3], shape[4]

	src := chanFirst.AsFloat32()
	frameVol := h * w
	clipVol := channels * numFrames * frameVol

	clips := make([][]float32, 0, n)
	for i := 0; i < n; i++ {
		clip := make([]float32, 0, clipVol)
		for c := 0; c < channels; c++ {
			start := ((i*channels + c) * frames) * frameVol
			clip = append(clip, src[start:start+numFrames*frameVol]...)
		}
		if !allFinite(clip) {
			slog.Warn("dropping clip with non-finite values", "clip", i)
			continue
		}
		clips = append(clips, clip)
	}

	data := make([]float32, 0, len(clips)*clipVol)
	for _, clip := range clips {
		data = append(data, clip...)
	}

	return &Dataset{
		data:  data,
		clip:  tensor.Shape{channels, numFrames, h, w},
		count: len(clips),
	}
}

func allFinite(values []float32) bool {
	for _, v := range values {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// FromClips wraps already-prepared clip data, one flat [C*F*H*W] block
// per clip, skipping the archive pipeline. Synthetic datasets are built
// this way.
func FromClips(values []float32, clip tensor.Shape) (*Dataset, error) {
	if len(clip) != 4 {
		return nil, fmt.Errorf("dataset: clip shape must be 4D [C,F,H,W], got %v", clip)
	}
	vol := clip.NumElements()
	if vol <= 0 {
		return nil, fmt.Errorf("dataset: empty clip shape %v", clip)
	}
	if len(values) == 0 || len(values)%vol != 0 {
		return nil, fmt.Errorf("dataset: %d values do not tile clips of shape %v", len(values), clip)
	}
	return &Dataset{
		data:  values,
		clip:  clip.Clone(),
		count: len(values) / vol,
	}, nil
}

// Len returns the number of usable clips.
func (d *Dataset) Len() int {
	return d.count
}

// ClipShape returns the per-clip tensor shape [C, F, H, W].
func (d *Dataset) ClipShape() tensor.Shape {
	return d.clip.Clone()
}

// clipAt returns the backing values of clip i.
func (d *Dataset) clipAt(i int) []float32 {
	vol := d.clip.NumElements()
	return d.data[i*vol : (i+1)*vol]
}
