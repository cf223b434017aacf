// Package encode implements the image encoder: deterministic
// resize-then-encode of a captured frame to JPEG, PNG, or WebP.
package encode

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"time"

	xdraw "golang.org/x/image/draw"

	"github.com/breeze-rmm/remote-desktop/internal/capture"
	"github.com/breeze-rmm/remote-desktop/internal/wireproto"
	"github.com/chai2010/webp"
)

// Config configures one Encode call.
type Config struct {
	Format        wireproto.ImageFormat
	Quality       int
	MaxWidth      int
	MaxHeight     int
	PreserveAlpha bool
}

// EncodedImage is the result of a successful Encode.
type EncodedImage struct {
	Format       wireproto.ImageFormat
	Width        int
	Height       int
	Data         []byte
	TimestampMs  int64
	MonitorIndex int
	EncodeTime   time.Duration
}

// ErrUnsupportedFormat is returned for formats the encoder does not
// implement (AVIF is reserved in the wire enum but never implemented).
var ErrUnsupportedFormat = fmt.Errorf("encode: unsupported format")

// Encode resizes frame per cfg's preprocessing order and encodes it with
// the requested codec.
func Encode(frame *capture.Frame, cfg Config) (*EncodedImage, error) {
	start := time.Now()

	if cfg.Format == wireproto.ImageFormatAVIF {
		return nil, ErrUnsupportedFormat
	}

	quality := cfg.Quality
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}

	img := frameToRGBA(frame)

	img = resizeToFit(img, cfg.MaxWidth, cfg.MaxHeight)

	var data []byte
	var err error

	switch cfg.Format {
	case wireproto.ImageFormatJPEG:
		if !cfg.PreserveAlpha {
			img = flattenToOpaque(img)
		}
		data, err = encodeJPEG(img, quality)
	case wireproto.ImageFormatPNG:
		data, err = encodePNG(img)
	case wireproto.ImageFormatWebP:
		data, err = encodeWebP(img, quality)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	return &EncodedImage{
		Format:       cfg.Format,
		Width:        bounds.Dx(),
		Height:       bounds.Dy(),
		Data:         data,
		TimestampMs:  time.Now().UnixMilli(),
		MonitorIndex: frame.MonitorIndex,
		EncodeTime:   time.Since(start),
	}, nil
}

func frameToRGBA(frame *capture.Frame) *image.RGBA {
	return &image.RGBA{
		Pix:    frame.Pix,
		Stride: frame.Width * 4,
		Rect:   image.Rect(0, 0, frame.Width, frame.Height),
	}
}

// resizeToFit downscales img by a single ratio — the minimum of the two
// per-axis ratios — using CatmullRom resampling. It never upscales and
// is a no-op when neither max dimension is set or exceeded.
func resizeToFit(img *image.RGBA, maxWidth, maxHeight int) *image.RGBA {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()

	if maxWidth <= 0 && maxHeight <= 0 {
		return img
	}

	ratio := 1.0
	if maxWidth > 0 && srcW > maxWidth {
		ratio = min(ratio, float64(maxWidth)/float64(srcW))
	}
	if maxHeight > 0 && srcH > maxHeight {
		ratio = min(ratio, float64(maxHeight)/float64(srcH))
	}
	if ratio >= 1.0 {
		return img
	}

	dstW := int(float64(srcW) * ratio)
	dstH := int(float64(srcH) * ratio)
	if dstW < 1 {
		dstW = 1
	}
	if dstH < 1 {
		dstH = 1
	}

	dst := scaledImagePool.Get(dstW, dstH)
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)
	return dst
}

func flattenToOpaque(img *image.RGBA) *image.RGBA {
	bounds := img.Bounds()
	flat := image.NewRGBA(bounds)
	draw.Draw(flat, bounds, image.NewUniform(image.Black), image.Point{}, draw.Src)
	draw.Draw(flat, bounds, img, bounds.Min, draw.Over)
	return flat
}

func encodeJPEG(img *image.RGBA, quality int) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func encodePNG(img *image.RGBA) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)
	if err := png.Encode(buf, img); err != nil {
		return nil, err
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func encodeWebP(img *image.RGBA, quality int) ([]byte, error) {
	lossless := quality >= 90
	buf := new(bytes.Buffer)
	opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
	if err := webp.Encode(buf, img, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
