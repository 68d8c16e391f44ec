package pdfrender

import (
	"image"

	"github.com/gen2brain/go-fitz"
	"github.com/pkg/errors"

	"mediaconv/media"
)

// baseDPI is the PDF point grid; a render scale multiplies it, so
// scale 2.0 lands at roughly 150 DPI.
const baseDPI = 72

// FitzEngine renders pages through MuPDF.
type FitzEngine struct{}

func NewFitzEngine() *FitzEngine {
	return &FitzEngine{}
}

func (e *FitzEngine) Open(b []byte) (Document, error) {
	doc, err := fitz.NewFromMemory(b)
	if err != nil {
		return nil, errors.Wrap(media.ErrPdfLoadError, err.Error())
	}

	return &fitzDocument{doc: doc}, nil
}

type fitzDocument struct {
	doc *fitz.Document
}

func (d *fitzDocument) PageCount() int {
	return d.doc.NumPage()
}

func (d *fitzDocument) RenderPage(page int, scale float64) (image.Image, error) {
	img, err := d.doc.ImageDPI(page-1, scale*baseDPI)
	if err != nil {
		return nil, errors.Wrap(media.ErrPageConversionError, err.Error())
	}

	return img, nil
}

func (d *fitzDocument) Close() error {
	return d.doc.Close()
}
