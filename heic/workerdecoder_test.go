package heic

import (
	"image"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaconv/media"
)

type stubDecoder struct {
	img image.Image
	err error
}

func (d *stubDecoder) Decode([]byte) (image.Image, error) {
	return d.img, d.err
}

func TestWorkerDecoder(t *testing.T) {
	want := image.NewRGBA(image.Rect(0, 0, 6, 4))
	d := NewWorkerDecoder(&stubDecoder{img: want}, nil)
	defer d.Terminate()

	got, err := d.Decode([]byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 6, got.Bounds().Dx())
	assert.Equal(t, 4, got.Bounds().Dy())
}

func TestWorkerDecoder_PropagatesFailureCode(t *testing.T) {
	d := NewWorkerDecoder(&stubDecoder{
		err: errors.Wrap(media.ErrHeicDecodeFailed, "corrupt tiles"),
	}, nil)
	defer d.Terminate()

	_, err := d.Decode([]byte{1})
	require.Error(t, err)
	assert.Equal(t, "HeicDecodeFailed", media.Code(err))
}

func TestWorkerDecoder_Terminated(t *testing.T) {
	d := NewWorkerDecoder(&stubDecoder{}, nil)
	d.Terminate()

	_, err := d.Decode([]byte{1})
	assert.Equal(t, "Cancelled", media.Code(err))
}
