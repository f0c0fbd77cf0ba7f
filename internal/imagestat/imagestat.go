package imagestat

import (
	"fmt"
	"image"
	"os"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP format support
)

// MaxStatDimension bounds the pixel area scanned for statistics. Larger
// images are downscaled first; the downscale is deterministic so the
// derived stats stay stable across runs.
const MaxStatDimension = 1024

// Stats holds derived numeric facts about one bitmap. The record is a
// pure memo: recomputing it from the source file always produces the
// same value (modulo floating point).
type Stats struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Channels int    `json:"channels"`
	Dtype    string `json:"dtype"`

	// Min and Max are per-channel, normalized to [0, 1].
	Min []float64 `json:"min"`
	Max []float64 `json:"max"`

	// DominantColor is the most frequent quantized RGB color, [0, 1].
	DominantColor []float64 `json:"dominant_color"`

	// Roles classifies each channel: "color", "gray" or "alpha".
	Roles []string `json:"roles"`
}

// Compute derives Stats for the image file at path.
func Compute(path string) (*Stats, error) {
	dims, err := probeDimensions(path)
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w", path, err)
	}

	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	channels, dtype := channelLayout(img)

	// Scan a bounded, deterministically downscaled copy.
	scan := img
	if dims.width > MaxStatDimension || dims.height > MaxStatDimension {
		scan = imaging.Fit(img, MaxStatDimension, MaxStatDimension, imaging.NearestNeighbor)
	}

	stats := &Stats{
		Width:    dims.width,
		Height:   dims.height,
		Channels: channels,
		Dtype:    dtype,
	}
	stats.scanPixels(scan, channels)
	return stats, nil
}

type dimensions struct {
	width, height int
}

// probeDimensions reads image dimensions without fully decoding.
func probeDimensions(path string) (dimensions, error) {
	f, err := os.Open(path)
	if err != nil {
		return dimensions{}, err
	}
	defer f.Close()

	config, _, err := image.DecodeConfig(f)
	if err != nil {
		return dimensions{}, err
	}
	return dimensions{width: config.Width, height: config.Height}, nil
}

// channelLayout inspects the decoded representation for channel count
// and sample type.
func channelLayout(img image.Image) (channels int, dtype string) {
	switch img.(type) {
	case *image.Gray:
		return 1, "uint8"
	case *image.Gray16:
		return 1, "uint16"
	case *image.YCbCr:
		return 3, "uint8"
	case *image.NRGBA64, *image.RGBA64:
		return 4, "uint16"
	default:
		return 4, "uint8"
	}
}

// scanPixels fills Min, Max, DominantColor and Roles from the pixels of
// scan. Colors are histogrammed at 4 bits per channel for the dominant
// color; the returned value is the bucket center.
func (s *Stats) scanPixels(scan image.Image, channels int) {
	const buckets = 16

	s.Min = make([]float64, channels)
	s.Max = make([]float64, channels)
	for i := range s.Min {
		s.Min[i] = 1
	}

	histogram := map[[3]uint8]int{}
	bounds := scan.Bounds()
	grayscale := true

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := scan.At(x, y).RGBA()
			sample := [4]float64{
				float64(r) / 0xffff,
				float64(g) / 0xffff,
				float64(b) / 0xffff,
				float64(a) / 0xffff,
			}

			if r != g || g != b {
				grayscale = false
			}

			for c := 0; c < channels; c++ {
				v := sample[c]
				if channels == 1 {
					v = sample[0]
				}
				if v < s.Min[c] {
					s.Min[c] = v
				}
				if v > s.Max[c] {
					s.Max[c] = v
				}
			}

			key := [3]uint8{
				uint8(r >> 12),
				uint8(g >> 12),
				uint8(b >> 12),
			}
			histogram[key]++
		}
	}

	if bounds.Empty() {
		for i := range s.Min {
			s.Min[i] = 0
		}
	}

	// Map iteration order is random, so ties resolve to the lowest
	// bucket to keep recomputation stable.
	best, bestCount := [3]uint8{}, -1
	for key, count := range histogram {
		if count > bestCount || (count == bestCount && bucketLess(key, best)) {
			best, bestCount = key, count
		}
	}
	if bestCount >= 0 {
		s.DominantColor = []float64{
			(float64(best[0]) + 0.5) / buckets,
			(float64(best[1]) + 0.5) / buckets,
			(float64(best[2]) + 0.5) / buckets,
		}
	}

	s.Roles = make([]string, channels)
	for c := range s.Roles {
		switch {
		case c == 3:
			s.Roles[c] = "alpha"
		case channels == 1 || grayscale:
			s.Roles[c] = "gray"
		default:
			s.Roles[c] = "color"
		}
	}
}

func bucketLess(a, b [3]uint8) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
