package imageproc

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/UnendingLoop/FilmWeekly/internal/model"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

func testPolicy() Policy {
	return Policy{MaxSide: 720, ResizeQuality: 85, NormalizeQuality: 90}
}

func testImageBytes(t *testing.T, w, h int, format imaging.Format) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 100, G: 100, B: 200, A: 255})
		}
	}

	var buf bytes.Buffer
	err := imaging.Encode(&buf, img, format)
	require.NoError(t, err)

	return buf.Bytes()
}

func mustDecode(t *testing.T, data []byte) image.Image {
	t.Helper()

	img, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.NotNil(t, img)

	return img
}

// DOWNSCALE - longer side over the cap
func TestGenerate_Resize(t *testing.T) {
	src := testImageBytes(t, 1440, 720, imaging.JPEG)

	res, err := Generate(src, model.JPEG, testPolicy())
	require.NoError(t, err)
	require.Equal(t, BranchResize, res.Branch)
	require.Equal(t, model.JPEG, res.ContentType)

	// natural dimensions of the source are reported, not the thumbnail's
	require.Equal(t, 1440, res.Width)
	require.Equal(t, 720, res.Height)

	thumb := mustDecode(t, res.Data)
	require.Equal(t, 720, thumb.Bounds().Dx())
	require.Equal(t, 360, thumb.Bounds().Dy())
}

// PASSTHROUGH - small displayable source stays byte-identical
func TestGenerate_Passthrough(t *testing.T) {
	src := testImageBytes(t, 300, 200, imaging.PNG)

	res, err := Generate(src, model.PNG, testPolicy())
	require.NoError(t, err)
	require.Equal(t, BranchPassthrough, res.Branch)
	require.Equal(t, model.PNG, res.ContentType)
	require.Equal(t, src, res.Data)
	require.Equal(t, 300, res.Width)
	require.Equal(t, 200, res.Height)
}

// NORMALIZE - decodable but not a displayable content-type
func TestGenerate_Normalize(t *testing.T) {
	src := testImageBytes(t, 300, 200, imaging.BMP)

	res, err := Generate(src, "image/bmp", testPolicy())
	require.NoError(t, err)
	require.Equal(t, BranchNormalize, res.Branch)
	require.Equal(t, model.JPEG, res.ContentType)

	thumb := mustDecode(t, res.Data)
	require.Equal(t, 300, thumb.Bounds().Dx())
	require.Equal(t, 200, thumb.Bounds().Dy())
}

// IDEMPOTENCE - same input, same branch and dimensions on a rerun
func TestGenerate_Repeatable(t *testing.T) {
	src := testImageBytes(t, 900, 900, imaging.JPEG)

	first, err := Generate(src, model.JPEG, testPolicy())
	require.NoError(t, err)
	second, err := Generate(src, model.JPEG, testPolicy())
	require.NoError(t, err)

	require.Equal(t, first.Branch, second.Branch)
	require.Equal(t, first.ContentType, second.ContentType)
	require.Equal(t, first.Data, second.Data)
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		cType string
	}{
		{name: "empty source", data: nil, cType: model.JPEG},
		{name: "broken image", data: []byte("not-an-image"), cType: model.JPEG},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Generate(tt.data, tt.cType, testPolicy())
			require.Error(t, err)
		})
	}
}

func TestTargetDims(t *testing.T) {
	tests := []struct {
		name     string
		w, h     int
		maxSide  int
		wantW    int
		wantH    int
	}{
		{name: "landscape", w: 1440, h: 720, maxSide: 720, wantW: 720, wantH: 360},
		{name: "portrait", w: 720, h: 2880, maxSide: 720, wantW: 180, wantH: 720},
		{name: "rounding", w: 1000, h: 333, maxSide: 720, wantW: 720, wantH: 240},
		{name: "1px floor", w: 10000, h: 2, maxSide: 720, wantW: 720, wantH: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := targetDims(tt.w, tt.h, tt.maxSide)
			require.Equal(t, tt.wantW, w)
			require.Equal(t, tt.wantH, h)
		})
	}
}

// WEBP DECODING IS REGISTERED - UPLOADS IN THAT FORMAT MUST NOT FALL BACK
func TestGenerate_WebpDecoderRegistered(t *testing.T) {
	// a sniffable-but-truncated webp stream: if the decoder is registered the
	// error is a webp decode failure, not image.ErrFormat
	header := append([]byte("RIFF\x28\x00\x00\x00WEBPVP8 "), make([]byte, 32)...)

	_, _, err := image.Decode(bytes.NewReader(header))
	require.Error(t, err)
	require.NotErrorIs(t, err, image.ErrFormat)
}
