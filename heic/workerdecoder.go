package heic

import (
	"context"
	"image"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"mediaconv/media"
	"mediaconv/worker"
)

// WorkerDecoder runs an inner decoder behind the worker protocol, so a
// heavy HEIC decode shares the executor's correlation and termination
// semantics with the GIF encoder.
type WorkerDecoder struct {
	w *worker.Worker
}

func NewWorkerDecoder(inner Decoder, log logrus.FieldLogger) *WorkerDecoder {
	if log == nil {
		log = logrus.StandardLogger()
	}

	w := worker.New(log.WithField("component", "heic-decoder"))
	w.Handle(worker.DecodeHEIC, func(payload interface{}, progress func(float64)) (interface{}, error) {
		b, ok := payload.([]byte)
		if !ok {
			return nil, errors.Wrapf(media.ErrWorkerError, "unexpected payload %T", payload)
		}

		img, err := inner.Decode(b)
		if err != nil {
			return nil, err
		}
		progress(1)

		return img, nil
	})

	return &WorkerDecoder{w: w}
}

func (d *WorkerDecoder) Decode(b []byte) (image.Image, error) {
	result, err := d.w.Submit(context.Background(), worker.DecodeHEIC, b, nil)
	if err != nil {
		return nil, err
	}

	img, ok := result.(image.Image)
	if !ok {
		return nil, errors.Wrapf(media.ErrWorkerError, "decoder returned %T", result)
	}

	return img, nil
}

// Terminate stops the underlying worker; further decodes reject.
func (d *WorkerDecoder) Terminate() {
	d.w.Terminate()
}
