package media

import (
	"image"
)

// Bitmap is a decoded raster. It lives only inside a conversion task;
// callers outside the pipeline see the encoded Blob, never the pixels.
type Bitmap struct {
	Image           image.Image
	SourceMediaType string
}

func (bm *Bitmap) Width() int {
	return bm.Image.Bounds().Dx()
}

func (bm *Bitmap) Height() int {
	return bm.Image.Bounds().Dy()
}
