// Package converter holds the facades the host wires to: still-image
// conversion with optional batching, and the base64 text surface.
package converter

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"mediaconv/batch"
	"mediaconv/dispatch"
	"mediaconv/manipulator"
	"mediaconv/media"
	"mediaconv/registry"
)

// File is an input artifact with the name it arrived under. The name
// backs extension-based type detection when the declared type is
// missing or opaque.
type File struct {
	Name string
	Blob *media.Blob
}

type Image struct {
	pipeline *manipulator.Pipeline
	reg      *registry.Registry
	log      logrus.FieldLogger
}

func NewImage(pipeline *manipulator.Pipeline, reg *registry.Registry, log logrus.FieldLogger) *Image {
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Image{pipeline: pipeline, reg: reg, log: log}
}

// Convert runs one file through the raster pipeline. The source blob is
// tracked in the registry for the duration of the conversion and
// released before returning, success or not.
func (c *Image) Convert(ctx context.Context, file File, targetMediaType string, opts manipulator.Options) (*media.ConversionResult, error) {
	if file.Blob == nil || file.Blob.Len() == 0 {
		return nil, errors.Wrap(media.ErrInvalidInput, "empty file")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(media.ErrCancelled, err.Error())
	}

	mediaType, kind, err := dispatch.Route(file.Blob.MediaType(), file.Name, targetMediaType)
	if err != nil {
		return nil, err
	}

	switch kind {
	case dispatch.KindPDFPage, dispatch.KindVideoFrames:
		return nil, errors.Wrapf(media.ErrUnsupportedInputFormat,
			"%q is not a still image", mediaType)
	}

	if err := media.ValidateImageInput(mediaType, file.Blob.Len()); err != nil {
		return nil, err
	}

	blob := file.Blob
	if blob.MediaType() != mediaType {
		blob = media.NewBlob(blob.Bytes(), mediaType)
	}

	handle := c.reg.Acquire(nil, registry.Info{
		Kind:      "source-blob",
		Owner:     "image-converter",
		Size:      blob.Len(),
		MediaType: mediaType,
	})
	defer func() { _ = c.reg.Release(handle) }()

	res, err := c.pipeline.Convert(blob, targetMediaType, opts)
	if err != nil {
		c.log.WithError(err).WithField("file", file.Name).Debug("conversion failed")
		return nil, err
	}

	return res, nil
}

// BatchOptions extends per-file conversion options with scheduling
// knobs forwarded to the batch runner.
type BatchOptions struct {
	manipulator.Options

	MaxConcurrent   int
	ContinueOnError *bool
	OnProgress      func(batch.Progress)
}

// Batch converts files concurrently with per-item failure isolation.
// Results keep input order and carry the input file names.
func (c *Image) Batch(ctx context.Context, files []File, targetMediaType string, opts BatchOptions) (*batch.Result, error) {
	items := make([]batch.Item, len(files))
	for i, f := range files {
		items[i] = batch.Item{Name: f.Name, Blob: f.Blob}
	}

	return batch.Run(ctx, items, func(ctx context.Context, item batch.Item) (*media.ConversionResult, error) {
		return c.Convert(ctx, File{Name: item.Name, Blob: item.Blob}, targetMediaType, opts.Options)
	}, batch.Options{
		MaxConcurrent:   opts.MaxConcurrent,
		ContinueOnError: opts.ContinueOnError,
		OnProgress:      opts.OnProgress,
	})
}
