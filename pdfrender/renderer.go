// Package pdfrender rasterizes PDF pages through an injected page
// renderer and the shared raster pipeline.
package pdfrender

import (
	"image"
)

// Document is one open PDF. Pages are addressed 1-based.
type Document interface {
	PageCount() int
	RenderPage(page int, scale float64) (image.Image, error)
	Close() error
}

// Engine opens PDF bytes into a document. The production engine binds
// MuPDF; tests inject fakes.
type Engine interface {
	Open(b []byte) (Document, error)
}
