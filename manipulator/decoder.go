package manipulator

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/pkg/errors"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	_ "golang.org/x/image/webp"

	"mediaconv/dispatch"
	"mediaconv/media"
)

// maximum distance into image to look for EXIF tags
const maxExifSize = 1 << 20

// Sanity bounds for decoded rasters; corrupted containers lie about
// their dimensions and a bogus header must not allocate gigabytes.
const (
	maxDimension = 32768
	maxPixelCount    = 64 << 20
)

// rasterized SVG falls back to this canvas when the document declares
// no usable viewport
const defaultVectorSize = 512

func validateBounds(w, h int) error {
	if w <= 0 || h <= 0 {
		return errors.Wrapf(media.ErrDecodeFailure, "image bounds invalid (%d x %d)", w, h)
	}

	if w > maxDimension || h > maxDimension {
		return errors.Wrapf(media.ErrDecodeFailure, "image dimension exceeds limit (%d x %d)", w, h)
	}

	if int64(w)*int64(h) > maxPixelCount {
		return errors.Wrapf(media.ErrDecodeFailure, "image pixel count %d exceeds limit %d", int64(w)*int64(h), int64(maxPixelCount))
	}

	return nil
}

// Decode turns a blob into a bitmap, routing by decoder variant:
// native rasters go through image.Decode, SVG text is rasterized onto a
// canvas, HEIC is delegated to the helper.
func (p *Pipeline) Decode(blob *media.Blob) (*media.Bitmap, error) {
	kind, err := dispatch.KindFor(blob.MediaType())
	if err != nil {
		return nil, err
	}

	switch kind {
	case dispatch.KindNativeRaster:
		return p.decodeRaster(blob)
	case dispatch.KindVectorText:
		return p.decodeVector(blob)
	case dispatch.KindHelperHEIC:
		return p.decodeHeic(blob)
	default:
		return nil, errors.Wrapf(media.ErrDecodeFailure, "%s input cannot be decoded as a single raster", kind)
	}
}

func (p *Pipeline) decodeRaster(blob *media.Blob) (*media.Bitmap, error) {
	img, format, err := image.Decode(blob.Reader())
	if err != nil {
		return nil, errors.Wrap(media.ErrDecodeFailure, err.Error())
	}

	if err := validateBounds(img.Bounds().Dx(), img.Bounds().Dy()); err != nil {
		return nil, err
	}

	if format == "jpeg" {
		img = reorient(img, blob.Reader())
	}

	return &media.Bitmap{Image: img, SourceMediaType: blob.MediaType()}, nil
}

func (p *Pipeline) decodeVector(blob *media.Blob) (*media.Bitmap, error) {
	icon, err := oksvg.ReadIconStream(blob.Reader())
	if err != nil {
		return nil, errors.Wrap(media.ErrDecodeFailure, err.Error())
	}

	w := int(icon.ViewBox.W)
	h := int(icon.ViewBox.H)
	if w <= 0 || h <= 0 {
		w, h = defaultVectorSize, defaultVectorSize
	}

	if err := validateBounds(w, h); err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	icon.SetTarget(0, 0, float64(w), float64(h))

	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1.0)

	return &media.Bitmap{Image: img, SourceMediaType: blob.MediaType()}, nil
}

func (p *Pipeline) decodeHeic(blob *media.Blob) (*media.Bitmap, error) {
	if p.heic == nil {
		return nil, errors.Wrap(media.ErrHeicDecoderUnavailable, "no helper configured")
	}

	img, err := p.heic.Decode(blob.Bytes())
	if err != nil {
		return nil, err
	}

	if err := validateBounds(img.Bounds().Dx(), img.Bounds().Dy()); err != nil {
		return nil, err
	}

	return &media.Bitmap{Image: img, SourceMediaType: blob.MediaType()}, nil
}

// reorient applies the EXIF orientation baked into jpeg files so the
// decoded pixels match what the user sees.
func reorient(img image.Image, r io.Reader) image.Image {
	t := exifOrientation(io.LimitReader(r, maxExifSize))
	if t == nil {
		return img
	}

	return t.apply(img)
}

// Exif Orientation Tag values
// http://sylvana.net/jpegcrop/exif_orientation.html
func exifOrientation(r io.Reader) *orientation {
	const (
		topLeftSide     = 1
		topRightSide    = 2
		bottomRightSide = 3
		bottomLeftSide  = 4
		leftSideTop     = 5
		rightSideTop    = 6
		rightSideBottom = 7
		leftSideBottom  = 8
	)

	exf, err := exif.Decode(r)
	if err != nil {
		return nil
	}

	tag, err := exf.Get(exif.Orientation)
	if err != nil {
		return nil
	}

	orient, err := tag.Int(0)
	if err != nil {
		return nil
	}

	var o orientation
	switch orient {
	case topLeftSide:
		return nil
	case topRightSide:
		o.flipH = true
	case bottomRightSide:
		o.rotate = 180
	case bottomLeftSide:
		o.flipV = true
	case leftSideTop:
		o.rotate = 90
		o.flipV = true
	case rightSideTop:
		o.rotate = -90
	case rightSideBottom:
		o.rotate = 90
		o.flipH = true
	case leftSideBottom:
		o.rotate = 90
	}

	return &o
}
