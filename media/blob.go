package media

import (
	"bytes"
	"io"
	"time"
)

// Blob is an immutable byte sequence with a declared media type.
// Decoders and encoders produce blobs; the caller owns them and hands
// long-lived ones to the registry for release.
type Blob struct {
	b         []byte
	mediaType string
}

func NewBlob(b []byte, mediaType string) *Blob {
	return &Blob{b: b, mediaType: mediaType}
}

// Bytes returns the underlying byte slice. Callers must not mutate it.
func (b *Blob) Bytes() []byte {
	return b.b
}

func (b *Blob) Len() int {
	return len(b.b)
}

func (b *Blob) MediaType() string {
	return b.mediaType
}

func (b *Blob) Reader() io.Reader {
	return bytes.NewReader(b.b)
}

// Text observes the blob as UTF-8 text. Useful for SVG sources.
func (b *Blob) Text() string {
	return string(b.b)
}

// Metadata describes a single finished conversion.
type Metadata struct {
	SourceMediaType  string        `json:"sourceMediaType"`
	TargetMediaType  string        `json:"targetMediaType"`
	SourceBytes      int           `json:"sourceBytes"`
	OutputBytes      int           `json:"outputBytes"`
	Width            int           `json:"width"`
	Height           int           `json:"height"`
	CompressionRatio float64       `json:"compressionRatio"`
	Elapsed          time.Duration `json:"elapsedMs"`
	UsedWorker       bool          `json:"usedOffThread"`
}

// Ratio computes sourceBytes/outputBytes; re-encoding may expand, so the
// result can be below 1.
func Ratio(sourceBytes, outputBytes int) float64 {
	if outputBytes == 0 {
		return 0
	}

	return float64(sourceBytes) / float64(outputBytes)
}

type ConversionResult struct {
	Blob *Blob    `json:"-"`
	Meta Metadata `json:"metadata"`
}

// PixelFrame is a single RGBA8 frame exchanged with the encoder worker.
// Pix is packed row-major, 4 bytes per pixel.
type PixelFrame struct {
	Width  int
	Height int
	Pix    []byte
}
