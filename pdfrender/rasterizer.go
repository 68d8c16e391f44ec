package pdfrender

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"mediaconv/dispatch"
	"mediaconv/manipulator"
	"mediaconv/media"
	"mediaconv/registry"
)

const (
	DefaultScale = 2.0

	// A4 page in PDF points, used for output size estimation
	a4Width  = 595
	a4Height = 842
)

// Load progress milestones; rendering then walks 50 -> 100.
const (
	progressIngest = 10
	progressParse  = 30
	progressReady  = 50
)

type ProgressFunc func(percentage int)

// RenderOptions controls one page render.
type RenderOptions struct {
	Scale   float64
	Format  string
	Quality manipulator.Quality
}

func (o RenderOptions) withDefaults() RenderOptions {
	if o.Scale == 0 {
		o.Scale = DefaultScale
	}
	if o.Format == "" {
		o.Format = media.PNG
	}
	if o.Quality == 0 {
		o.Quality = manipulator.DefaultQuality
	}

	return o
}

func (o RenderOptions) validate() error {
	if o.Scale <= 0 {
		return errors.Wrapf(media.ErrInvalidInput, "scale %v must be positive", o.Scale)
	}

	return dispatch.CheckOutput(dispatch.KindPDFPage, o.Format)
}

// PageResult is one rendered page.
type PageResult struct {
	Blob       *media.Blob
	PageNumber int
	Meta       media.Metadata
}

// DocumentInfo describes the currently loaded document.
type DocumentInfo struct {
	PageCount    int
	SourceBytes  int
	OriginalName string
}

// Rasterizer holds at most one open document. Loading a new document
// releases the previous one; Release is explicit and idempotent.
type Rasterizer struct {
	engine   Engine
	pipeline *manipulator.Pipeline
	reg      *registry.Registry

	mu     sync.Mutex
	doc    Document
	info   DocumentInfo
	handle registry.Handle
}

func New(engine Engine, pipeline *manipulator.Pipeline, reg *registry.Registry) *Rasterizer {
	return &Rasterizer{engine: engine, pipeline: pipeline, reg: reg}
}

// Load parses PDF bytes into the rasterizer's document slot.
func (r *Rasterizer) Load(ctx context.Context, blob *media.Blob, name string, onProgress ProgressFunc) (DocumentInfo, error) {
	report := func(pct int) {
		if onProgress != nil {
			onProgress(pct)
		}
	}

	if err := media.ValidatePDFInput(blob.MediaType(), blob.Len()); err != nil {
		return DocumentInfo{}, err
	}
	report(progressIngest)

	if err := ctx.Err(); err != nil {
		return DocumentInfo{}, errors.Wrap(media.ErrCancelled, err.Error())
	}

	doc, err := r.engine.Open(blob.Bytes())
	if err != nil {
		return DocumentInfo{}, err
	}
	report(progressParse)

	if doc.PageCount() < 1 {
		_ = doc.Close()
		return DocumentInfo{}, errors.Wrap(media.ErrPdfLoadError, "document has no pages")
	}

	r.mu.Lock()
	r.closeLocked()
	r.doc = doc
	r.info = DocumentInfo{PageCount: doc.PageCount(), SourceBytes: blob.Len(), OriginalName: name}
	if r.reg != nil {
		r.handle = r.reg.Replace("pdfrender", func() { _ = doc.Close() }, registry.Info{
			Kind:      "pdf-document",
			Size:      blob.Len(),
			MediaType: media.PDF,
		})
	}
	info := r.info
	r.mu.Unlock()

	report(progressReady)

	return info, nil
}

// Info reports the loaded document, if any.
func (r *Rasterizer) Info() (DocumentInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.info, r.doc != nil
}

// RenderPage rasterizes one page and encodes it.
func (r *Rasterizer) RenderPage(ctx context.Context, page int, opts RenderOptions) (*PageResult, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	doc := r.doc
	info := r.info
	r.mu.Unlock()

	if doc == nil {
		return nil, errors.Wrap(media.ErrPdfLoadError, "no document loaded")
	}

	if page < 1 || page > info.PageCount {
		return nil, errors.Wrapf(media.ErrInvalidPageNumber, "page %d of %d", page, info.PageCount)
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(media.ErrCancelled, err.Error())
	}

	started := time.Now()
	img, err := doc.RenderPage(page, opts.Scale)
	if err != nil {
		return nil, err
	}

	bm := &media.Bitmap{Image: img, SourceMediaType: media.PDF}
	blob, err := r.pipeline.Encode(bm, opts.Format, opts.Quality)
	if err != nil {
		return nil, errors.Wrap(media.ErrPageConversionError, err.Error())
	}

	return &PageResult{
		Blob:       blob,
		PageNumber: page,
		Meta: media.Metadata{
			SourceMediaType:  media.PDF,
			TargetMediaType:  opts.Format,
			SourceBytes:      info.SourceBytes,
			OutputBytes:      blob.Len(),
			Width:            bm.Width(),
			Height:           bm.Height(),
			CompressionRatio: media.Ratio(info.SourceBytes, blob.Len()),
			Elapsed:          time.Since(started),
		},
	}, nil
}

// RenderAll rasterizes every page in ascending order. Progress picks up
// where Load left off and ends at 100.
func (r *Rasterizer) RenderAll(ctx context.Context, opts RenderOptions, onProgress ProgressFunc) ([]*PageResult, error) {
	r.mu.Lock()
	info := r.info
	loaded := r.doc != nil
	r.mu.Unlock()

	if !loaded {
		return nil, errors.Wrap(media.ErrPdfLoadError, "no document loaded")
	}

	results := make([]*PageResult, 0, info.PageCount)
	for page := 1; page <= info.PageCount; page++ {
		res, err := r.RenderPage(ctx, page, opts)
		if err != nil {
			return nil, errors.Wrapf(err, "page %d", page)
		}

		results = append(results, res)
		if onProgress != nil {
			onProgress(progressReady + progressReady*page/info.PageCount)
		}
	}

	return results, nil
}

// EstimateOutputBytes predicts the total output size assuming A4 pages.
func (r *Rasterizer) EstimateOutputBytes(opts RenderOptions) int {
	opts = opts.withDefaults()

	r.mu.Lock()
	pages := r.info.PageCount
	r.mu.Unlock()

	perPage := float64(a4Width) * float64(a4Height) * opts.Scale * opts.Scale / 4
	factor := 4.0
	if opts.Format == media.JPEG {
		factor = 0.75
	}

	return int(float64(pages) * perPage * factor)
}

// Release closes the loaded document. Safe to call repeatedly.
func (r *Rasterizer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeLocked()
}

// closeLocked drops the current document. Caller holds r.mu.
func (r *Rasterizer) closeLocked() {
	if r.doc == nil {
		return
	}

	if r.reg != nil && r.handle != 0 {
		// the registry owns the close callback
		_ = r.reg.Release(r.handle)
	} else {
		_ = r.doc.Close()
	}

	r.doc = nil
	r.info = DocumentInfo{}
	r.handle = 0
}
