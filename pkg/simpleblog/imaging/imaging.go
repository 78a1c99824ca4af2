// Package imaging bounds the pixel size of uploaded images before they reach the blob store.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"strings"

	"github.com/nfnt/resize"
	"github.com/tendant/simple-blog/pkg/simpleblog"
)

// DefaultAvatarDimension is the longest edge, in pixels, of a stored avatar.
const DefaultAvatarDimension = 512

// DefaultJPEGQuality is used when re-encoding a downscaled jpeg.
const DefaultJPEGQuality = 85

// DefaultMaxPixels caps the decoded size of an image (width times height).
const DefaultMaxPixels = 40_000_000

// Downscaler shrinks jpeg and png uploads so neither edge exceeds MaxDimension.
// Other content types, and images already within bounds, pass through unchanged.
// Images whose header declares more than MaxPixels are never decoded.
type Downscaler struct {
	MaxDimension uint
	Quality      int
	MaxPixels    int
}

var _ simpleblog.Transformer = (*Downscaler)(nil)

// NewDownscaler returns a Downscaler bounding images to maxDimension pixels.
func NewDownscaler(maxDimension uint) *Downscaler {
	if maxDimension == 0 {
		maxDimension = DefaultAvatarDimension
	}
	return &Downscaler{MaxDimension: maxDimension, Quality: DefaultJPEGQuality, MaxPixels: DefaultMaxPixels}
}

// Transform implements simpleblog.Transformer. The upload's reader is consumed;
// the returned upload always carries a fresh reader over the resulting bytes.
func (d *Downscaler) Transform(upload *simpleblog.Upload) (*simpleblog.Upload, error) {
	data, err := io.ReadAll(upload.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	out, err := d.downscale(data, upload.ContentType)
	if err != nil {
		slog.Debug("Keeping original image", "file_name", upload.FileName, "reason", err)
		out = data
	}

	return &simpleblog.Upload{
		Reader:      bytes.NewReader(out),
		FileName:    upload.FileName,
		ContentType: upload.ContentType,
		Size:        int64(len(out)),
	}, nil
}

func (d *Downscaler) downscale(data []byte, contentType string) ([]byte, error) {
	var (
		decode       func(io.Reader) (image.Image, error)
		decodeConfig func(io.Reader) (image.Config, error)
	)
	format := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	switch format {
	case "image/jpeg", "image/jpg":
		decode, decodeConfig = jpeg.Decode, jpeg.DecodeConfig
	case "image/png":
		decode, decodeConfig = png.Decode, png.DecodeConfig
	default:
		return nil, fmt.Errorf("unsupported content type %q", contentType)
	}

	cfg, err := decodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to read image header: %w", err)
	}
	maxPixels := d.MaxPixels
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > maxPixels/cfg.Height {
		return nil, fmt.Errorf("image of %dx%d exceeds %d pixels", cfg.Width, cfg.Height, maxPixels)
	}

	img, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	if uint(bounds.Dx()) <= d.MaxDimension && uint(bounds.Dy()) <= d.MaxDimension {
		return data, nil
	}

	// Thumbnail keeps the aspect ratio
	scaled := resize.Thumbnail(d.MaxDimension, d.MaxDimension, img, resize.Lanczos3)

	var buf bytes.Buffer
	if format == "image/png" {
		err = png.Encode(&buf, scaled)
	} else {
		quality := d.Quality
		if quality <= 0 {
			quality = DefaultJPEGQuality
		}
		err = jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: quality})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
