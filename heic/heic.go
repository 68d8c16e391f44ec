// Package heic wraps the libheif decoder behind a lazily-loaded helper.
package heic

import (
	"image"
	"sync"

	"github.com/pkg/errors"
	"github.com/strukturag/libheif/go/heif"

	"mediaconv/media"
)

// Decoder turns HEIC/HEIF bytes into a decoded raster. The production
// implementation binds libheif; tests inject fakes.
type Decoder interface {
	Decode(b []byte) (image.Image, error)
}

// LibheifDecoder initializes libheif on first use. A failed
// initialization is remembered and every subsequent call reports the
// helper as unavailable rather than retrying.
type LibheifDecoder struct {
	once    sync.Once
	loadErr error
}

func NewLibheifDecoder() *LibheifDecoder {
	return &LibheifDecoder{}
}

func (d *LibheifDecoder) load() {
	defer func() {
		if r := recover(); r != nil {
			d.loadErr = errors.Wrapf(media.ErrHeicDecoderUnavailable, "libheif init panicked: %v", r)
		}
	}()

	if _, err := heif.NewContext(); err != nil {
		d.loadErr = errors.Wrap(media.ErrHeicDecoderUnavailable, err.Error())
	}
}

func (d *LibheifDecoder) Decode(b []byte) (image.Image, error) {
	d.once.Do(d.load)
	if d.loadErr != nil {
		return nil, d.loadErr
	}

	ctx, err := heif.NewContext()
	if err != nil {
		return nil, errors.Wrap(media.ErrHeicDecoderUnavailable, err.Error())
	}

	if err := ctx.ReadFromMemory(b); err != nil {
		return nil, errors.Wrap(media.ErrHeicDecodeFailed, err.Error())
	}

	handle, err := ctx.GetPrimaryImageHandle()
	if err != nil {
		return nil, errors.Wrap(media.ErrHeicDecodeFailed, err.Error())
	}

	img, err := handle.DecodeImage(heif.ColorspaceRGB, heif.ChromaInterleavedRGBA, nil)
	if err != nil {
		return nil, errors.Wrap(media.ErrHeicDecodeFailed, err.Error())
	}

	goImg, err := img.GetImage()
	if err != nil {
		return nil, errors.Wrap(media.ErrHeicDecodeFailed, err.Error())
	}

	return goImg, nil
}
