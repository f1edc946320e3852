// Package imageproc provides the thumbnail derivation for submission images:
// decode -> {resize, normalize, passthrough} -> encode, as a pure function of
// the source bytes and content-type. No storage or network in here.
package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/UnendingLoop/FilmWeekly/internal/model"
	"github.com/disintegration/imaging"

	// imaging itself encodes/decodes jpeg, png, gif, tiff and bmp only;
	// webp uploads need this decoder registered to take the passthrough branch
	_ "golang.org/x/image/webp"
)

type Branch string

const (
	// BranchResize - longer side exceeded the cap, downscaled and re-encoded lossy
	BranchResize Branch = "resize"
	// BranchNormalize - size is fine but the source format is not displayable, re-encoded without resizing
	BranchNormalize Branch = "normalize"
	// BranchPassthrough - original bytes are good as-is
	BranchPassthrough Branch = "passthrough"
)

// Policy - product policy values, not architectural invariants; they come from config
type Policy struct {
	MaxSide          int // cap for the longer side, px
	ResizeQuality    int // JPEG quality for the downscale branch
	NormalizeQuality int // JPEG quality for the normalize branch
}

type Thumbnail struct {
	Data        []byte
	ContentType string
	Width       int // natural width of the source
	Height      int // natural height of the source
	Branch      Branch
}

// Generate derives a thumbnail from the original bytes. Decode failure is
// returned as an error - the caller decides the fallback (the worker writes
// the original bytes back under the thumbnail key).
func Generate(data []byte, contentType string, p Policy) (*Thumbnail, error) {
	if len(data) == 0 {
		return nil, errors.New("empty source provided to thumbnail generator")
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode source image: %w", err)
	}

	w := img.Bounds().Dx()
	h := img.Bounds().Dy()

	longer := w
	if h > longer {
		longer = h
	}

	switch {
	case p.MaxSide > 0 && longer > p.MaxSide:
		tw, th := targetDims(w, h, p.MaxSide)
		resized := imaging.Resize(img, tw, th, imaging.Lanczos)

		var buf bytes.Buffer
		if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(p.ResizeQuality)); err != nil {
			return nil, fmt.Errorf("failed to encode resized thumbnail: %w", err)
		}
		return &Thumbnail{Data: buf.Bytes(), ContentType: model.JPEG, Width: w, Height: h, Branch: BranchResize}, nil

	case !model.DisplayableCTypes[contentType]:
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(p.NormalizeQuality)); err != nil {
			return nil, fmt.Errorf("failed to encode normalized thumbnail: %w", err)
		}
		return &Thumbnail{Data: buf.Bytes(), ContentType: model.JPEG, Width: w, Height: h, Branch: BranchNormalize}, nil

	default:
		return &Thumbnail{Data: data, ContentType: contentType, Width: w, Height: h, Branch: BranchPassthrough}, nil
	}
}

// targetDims scales proportionally so the longer side equals maxSide,
// rounding to nearest with a 1px floor
func targetDims(w, h, maxSide int) (int, int) {
	longer := w
	if h > longer {
		longer = h
	}
	scale := float64(maxSide) / float64(longer)

	tw := int(math.Round(float64(w) * scale))
	th := int(math.Round(float64(h) * scale))
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}
	return tw, th
}
