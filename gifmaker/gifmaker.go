// Package gifmaker assembles animated GIFs from video clips or image
// sequences. Frame extraction happens in the caller's goroutine; the
// palette quantization and encode run on an encoder worker.
package gifmaker

import (
	"context"
	"image"
	"image/draw"
	"math"
	"time"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"mediaconv/manipulator"
	"mediaconv/media"
	"mediaconv/worker"
)

type ProgressFunc func(percentage int)

// Stage weights differ by source: a clip spends most of its time in
// seek-capture, an image sequence in the encoder.
const (
	videoLoadEnd    = 10
	videoExtractEnd = 70
	imageLoadEnd    = 30
	imageProcessEnd = 60
)

type Maker struct {
	pipeline *manipulator.Pipeline
	opener   VideoOpener
	worker   *worker.Worker
	log      logrus.FieldLogger
}

func New(pipeline *manipulator.Pipeline, opener VideoOpener, log logrus.FieldLogger) *Maker {
	if log == nil {
		log = logrus.StandardLogger()
	}

	w := worker.New(log.WithField("component", "gif-encoder"))
	w.Handle(worker.EncodeGIF, encodeGIF)

	return &Maker{pipeline: pipeline, opener: opener, worker: w, log: log}
}

// Terminate tears down the encoder worker; in-flight encodes reject.
func (m *Maker) Terminate() {
	m.worker.Terminate()
}

// reporter keeps task progress monotone and lands on exactly 100.
type reporter struct {
	cb   ProgressFunc
	last int
}

func (r *reporter) report(pct int) {
	if r.cb == nil {
		return
	}

	if pct > r.last {
		r.last = pct
		r.cb(pct)
	}
}

// VideoToGIF clips a video into an animated GIF by seek-capture.
func (m *Maker) VideoToGIF(ctx context.Context, blob *media.Blob, opts Options, onProgress ProgressFunc) (*Result, error) {
	opts = opts.withVideoDefaults()
	started := time.Now()
	rep := &reporter{cb: onProgress}

	if err := media.ValidateVideoInput(blob.MediaType(), blob.Len()); err != nil {
		return nil, err
	}
	if err := media.ValidateFrameRate(opts.FrameRate); err != nil {
		return nil, err
	}
	if err := media.ValidateGIFQuality(opts.Quality); err != nil {
		return nil, err
	}
	if err := media.ValidateLoopCount(opts.LoopCount); err != nil {
		return nil, err
	}

	src, err := m.opener.Open(blob)
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()

	info := src.Info()
	actualEnd := opts.EndTime
	if actualEnd == 0 {
		actualEnd = info.Duration
	}
	if err := media.ValidateTimeRange(opts.StartTime, actualEnd, info.Duration); err != nil {
		return nil, err
	}
	rep.report(videoLoadEnd)

	width, height := info.Width, info.Height
	if opts.Width == 0 && opts.Height == 0 {
		width, height = shrinkDim(info.Width), shrinkDim(info.Height)
	} else {
		policy := manipulator.ResizePolicy{MaxWidth: opts.Width, MaxHeight: opts.Height, MaintainAspectRatio: true}
		width, height, err = policy.Resolve(info.Width, info.Height)
		if err != nil {
			return nil, err
		}
	}

	frameCount := int(math.Ceil((actualEnd - opts.StartTime) * float64(opts.FrameRate)))
	step := 1 / float64(opts.FrameRate)

	frames := make([]*media.PixelFrame, 0, frameCount)
	for i := 0; i < frameCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(media.ErrCancelled, err.Error())
		}

		at := opts.StartTime + float64(i)*step
		if at >= actualEnd {
			break
		}

		frame, err := src.CaptureAt(at)
		if err != nil {
			return nil, err
		}

		if frame.Width != width || frame.Height != height {
			frame = resizeFrame(frame, width, height)
		}

		frames = append(frames, frame)
		rep.report(videoLoadEnd + (videoExtractEnd-videoLoadEnd)*(i+1)/frameCount)
	}
	rep.report(videoExtractEnd)

	blobOut, err := m.encode(ctx, &EncodePayload{
		Frames:     frames,
		Width:      width,
		Height:     height,
		Quality:    opts.Quality,
		LoopCount:  opts.LoopCount,
		FrameDelay: time.Duration(float64(time.Second) / float64(opts.FrameRate)),
	}, rep, videoExtractEnd)
	if err != nil {
		return nil, err
	}

	rep.report(100)

	return &Result{
		Blob:       blobOut,
		FrameCount: len(frames),
		Meta: media.Metadata{
			SourceMediaType:  blob.MediaType(),
			TargetMediaType:  media.GIF,
			SourceBytes:      blob.Len(),
			OutputBytes:      blobOut.Len(),
			Width:            width,
			Height:           height,
			CompressionRatio: media.Ratio(blob.Len(), blobOut.Len()),
			Elapsed:          time.Since(started),
			UsedWorker:       true,
		},
	}, nil
}

// ImagesToGIF assembles stills into an animated GIF. The first image,
// or the explicit dimensions with aspect completion, fixes the frame
// size; every frame is resized to it.
func (m *Maker) ImagesToGIF(ctx context.Context, blobs []*media.Blob, opts Options, onProgress ProgressFunc) (*Result, error) {
	opts = opts.withImageDefaults()
	started := time.Now()
	rep := &reporter{cb: onProgress}

	if len(blobs) == 0 {
		return nil, errors.Wrap(media.ErrInvalidInput, "no frames provided")
	}
	if err := media.ValidateFrameDelay(opts.FrameDelay); err != nil {
		return nil, err
	}
	if err := media.ValidateGIFQuality(opts.Quality); err != nil {
		return nil, err
	}
	if err := media.ValidateLoopCount(opts.LoopCount); err != nil {
		return nil, err
	}

	sourceBytes := 0
	bitmaps := make([]*media.Bitmap, 0, len(blobs))
	for i, blob := range blobs {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(media.ErrCancelled, err.Error())
		}

		if err := media.ValidateImageInput(blob.MediaType(), blob.Len()); err != nil {
			return nil, errors.Wrapf(err, "frame %d", i)
		}

		bm, err := m.pipeline.Decode(blob)
		if err != nil {
			return nil, errors.Wrapf(media.ErrImageLoadError, "frame %d: %s", i, err)
		}

		sourceBytes += blob.Len()
		bitmaps = append(bitmaps, bm)
		rep.report(imageLoadEnd * (i + 1) / len(blobs))
	}
	rep.report(imageLoadEnd)

	width, height := bitmaps[0].Width(), bitmaps[0].Height()
	if opts.Width != 0 || opts.Height != 0 {
		policy := manipulator.ResizePolicy{
			MaxWidth:            opts.Width,
			MaxHeight:           opts.Height,
			MaintainAspectRatio: opts.maintainAspect(),
		}

		var err error
		width, height, err = policy.Resolve(width, height)
		if err != nil {
			return nil, err
		}
	}

	frames := make([]*media.PixelFrame, 0, len(bitmaps))
	for i, bm := range bitmaps {
		img := bm.Image
		if bm.Width() != width || bm.Height() != height {
			img = imaging.Resize(img, width, height, imaging.Lanczos)
		}

		frames = append(frames, imageToFrame(img))
		rep.report(imageLoadEnd + (imageProcessEnd-imageLoadEnd)*(i+1)/len(bitmaps))
	}
	rep.report(imageProcessEnd)

	blobOut, err := m.encode(ctx, &EncodePayload{
		Frames:     frames,
		Width:      width,
		Height:     height,
		Quality:    opts.Quality,
		LoopCount:  opts.LoopCount,
		FrameDelay: opts.FrameDelay,
	}, rep, imageProcessEnd)
	if err != nil {
		return nil, err
	}

	rep.report(100)

	return &Result{
		Blob:       blobOut,
		FrameCount: len(frames),
		Meta: media.Metadata{
			SourceMediaType:  blobs[0].MediaType(),
			TargetMediaType:  media.GIF,
			SourceBytes:      sourceBytes,
			OutputBytes:      blobOut.Len(),
			Width:            width,
			Height:           height,
			CompressionRatio: media.Ratio(sourceBytes, blobOut.Len()),
			Elapsed:          time.Since(started),
			UsedWorker:       true,
		},
	}, nil
}

// encode hands buffered frames to the encoder worker, mapping its
// 0..100 frames into the tail of the stage scale.
func (m *Maker) encode(ctx context.Context, payload *EncodePayload, rep *reporter, stageStart int) (*media.Blob, error) {
	result, err := m.worker.Submit(ctx, worker.EncodeGIF, payload, func(pct int) {
		rep.report(stageStart + (100-stageStart)*pct/100)
	})
	if err != nil {
		return nil, err
	}

	blob, ok := result.(*media.Blob)
	if !ok {
		return nil, errors.Wrapf(media.ErrWorkerError, "encoder returned %T", result)
	}

	return blob, nil
}

func imageToFrame(img image.Image) *media.PixelFrame {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || b.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Rect, img, b.Min, draw.Src)
	}

	return &media.PixelFrame{Width: b.Dx(), Height: b.Dy(), Pix: rgba.Pix}
}

func resizeFrame(frame *media.PixelFrame, width, height int) *media.PixelFrame {
	rgba := &image.RGBA{
		Pix:    frame.Pix,
		Stride: frame.Width * 4,
		Rect:   image.Rect(0, 0, frame.Width, frame.Height),
	}

	return imageToFrame(imaging.Resize(rgba, width, height, imaging.Lanczos))
}
