package manipulator

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"mediaconv/media"
)

type orientation struct {
	rotate int
	flipH  bool
	flipV  bool
}

func (o *orientation) apply(img image.Image) image.Image {
	switch o.rotate {
	case 90:
		img = imaging.Rotate90(img)
	case 180:
		img = imaging.Rotate180(img)
	case -90:
		img = imaging.Rotate270(img)
	}

	if o.flipH {
		img = imaging.FlipH(img)
	}

	if o.flipV {
		img = imaging.FlipV(img)
	}

	return img
}

// Resize applies a resize policy to a bitmap. A policy that resolves to
// the source dimensions returns the bitmap untouched.
func (p *Pipeline) Resize(bm *media.Bitmap, policy ResizePolicy) (*media.Bitmap, error) {
	w, h, err := policy.Resolve(bm.Width(), bm.Height())
	if err != nil {
		return nil, err
	}

	if w == bm.Width() && h == bm.Height() {
		return bm, nil
	}

	resized := imaging.Resize(bm.Image, w, h, imaging.Lanczos)

	return &media.Bitmap{Image: resized, SourceMediaType: bm.SourceMediaType}, nil
}

// Encode serializes a bitmap into the target codec. Quality is ignored
// for lossless targets but still travels in the result metadata.
func (p *Pipeline) Encode(bm *media.Bitmap, targetMediaType string, quality Quality) (*media.Blob, error) {
	if !quality.Valid() {
		return nil, errors.Wrapf(media.ErrInvalidInput, "quality %v is outside [0, 1]", float64(quality))
	}

	buf := &bytes.Buffer{}

	switch targetMediaType {
	case media.PNG:
		if err := png.Encode(buf, bm.Image); err != nil {
			return nil, errors.Wrap(media.ErrEncodeFailed, err.Error())
		}
	case media.JPEG:
		if err := jpeg.Encode(buf, bm.Image, &jpeg.Options{Quality: quality.Percent()}); err != nil {
			return nil, errors.Wrap(media.ErrEncodeFailed, err.Error())
		}
	case media.WEBP:
		if err := webp.Encode(buf, bm.Image, &webp.Options{Quality: float32(quality.Percent())}); err != nil {
			return nil, errors.Wrap(media.ErrEncodeFailed, err.Error())
		}
	default:
		return nil, errors.Wrapf(media.ErrUnsupportedOutputFormat, "pipeline cannot encode %q", targetMediaType)
	}

	return media.NewBlob(buf.Bytes(), targetMediaType), nil
}
