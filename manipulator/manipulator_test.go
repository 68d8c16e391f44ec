package manipulator

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaconv/media"
)

func pngBlob(t *testing.T, w, h int) *media.Blob {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}

	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))

	return media.NewBlob(buf.Bytes(), media.PNG)
}

func jpegBlob(t *testing.T, w, h int) *media.Blob {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	buf := &bytes.Buffer{}
	require.NoError(t, jpeg.Encode(buf, img, nil))

	return media.NewBlob(buf.Bytes(), media.JPEG)
}

func TestPipeline_Decode(t *testing.T) {
	p := New(nil)

	bm, err := p.Decode(pngBlob(t, 10, 10))
	require.NoError(t, err)
	assert.Equal(t, 10, bm.Width())
	assert.Equal(t, 10, bm.Height())
	assert.Equal(t, media.PNG, bm.SourceMediaType)

	_, err = p.Decode(media.NewBlob([]byte("definitely not pixels"), media.PNG))
	assert.Equal(t, "DecodeFailure", media.Code(err))

	_, err = p.Decode(media.NewBlob([]byte{1, 2, 3}, media.PDF))
	assert.Equal(t, "DecodeFailure", media.Code(err))
}

func TestPipeline_DecodeSVG(t *testing.T) {
	p := New(nil)

	svg := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 40 20">
		<rect width="40" height="20" fill="red"/>
	</svg>`

	bm, err := p.Decode(media.NewBlob([]byte(svg), media.SVG))
	require.NoError(t, err)
	assert.Equal(t, 40, bm.Width())
	assert.Equal(t, 20, bm.Height())
}

func TestPipeline_DecodeHeicWithoutHelper(t *testing.T) {
	p := New(nil)

	_, err := p.Decode(media.NewBlob([]byte{0}, media.HEIC))
	assert.Equal(t, "HeicDecoderUnavailable", media.Code(err))
}

type fakeHeic struct {
	img image.Image
	err error
}

func (f *fakeHeic) Decode([]byte) (image.Image, error) {
	return f.img, f.err
}

func TestPipeline_DecodeHeicHelper(t *testing.T) {
	p := New(&fakeHeic{img: image.NewRGBA(image.Rect(0, 0, 8, 4))})

	bm, err := p.Decode(media.NewBlob([]byte{0}, media.HEIF))
	require.NoError(t, err)
	assert.Equal(t, 8, bm.Width())
	assert.Equal(t, 4, bm.Height())
}

func TestPipeline_Convert(t *testing.T) {
	p := New(nil)

	source := pngBlob(t, 200, 100)
	res, err := p.Convert(source, media.JPEG, Options{
		Resize: ResizePolicy{MaxWidth: 100, MaintainAspectRatio: true},
	})
	require.NoError(t, err)

	assert.Equal(t, media.JPEG, res.Blob.MediaType())
	assert.Equal(t, 100, res.Meta.Width)
	assert.Equal(t, 50, res.Meta.Height)
	assert.Equal(t, media.PNG, res.Meta.SourceMediaType)
	assert.Equal(t, media.JPEG, res.Meta.TargetMediaType)
	assert.Equal(t, source.Len(), res.Meta.SourceBytes)
	assert.Equal(t, res.Blob.Len(), res.Meta.OutputBytes)
	assert.InDelta(t, float64(source.Len())/float64(res.Blob.Len()), res.Meta.CompressionRatio, 0.0001)

	// output must decode back to the reported dimensions
	cfg, format, err := image.DecodeConfig(res.Blob.Reader())
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 50, cfg.Height)
}

func TestPipeline_ConvertJpegSource(t *testing.T) {
	p := New(nil)

	res, err := p.Convert(jpegBlob(t, 64, 64), media.PNG, Options{})
	require.NoError(t, err)
	assert.Equal(t, media.PNG, res.Blob.MediaType())
	assert.Equal(t, 64, res.Meta.Width)
	assert.Equal(t, 64, res.Meta.Height)
}

func TestPipeline_EncodeRejectsUnknownTarget(t *testing.T) {
	p := New(nil)

	bm := &media.Bitmap{Image: image.NewRGBA(image.Rect(0, 0, 4, 4)), SourceMediaType: media.PNG}
	_, err := p.Encode(bm, media.PDF, DefaultQuality)
	assert.Equal(t, "UnsupportedOutputFormat", media.Code(err))

	_, err = p.Encode(bm, media.PNG, Quality(2))
	assert.Equal(t, "InvalidInput", media.Code(err))
}

func TestPipeline_ResizeNoop(t *testing.T) {
	p := New(nil)

	bm := &media.Bitmap{Image: image.NewRGBA(image.Rect(0, 0, 20, 10)), SourceMediaType: media.PNG}
	out, err := p.Resize(bm, DefaultResizePolicy())
	require.NoError(t, err)
	assert.Same(t, bm, out)
}
