package converter

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"mediaconv/dataurl"
	"mediaconv/manipulator"
	"mediaconv/media"
)

// Base64 is the textual surface of the converter: data URLs and bare
// payloads in, image blobs out, and the reverse.
type Base64 struct {
	pipeline *manipulator.Pipeline
	log      logrus.FieldLogger
}

func NewBase64(pipeline *manipulator.Pipeline, log logrus.FieldLogger) *Base64 {
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Base64{pipeline: pipeline, log: log}
}

// TextOptions controls ToText output. IncludePrefix defaults to true
// so callers get a complete data URL unless they opt out.
type TextOptions struct {
	IncludePrefix *bool
}

func (o TextOptions) includePrefix() bool {
	if o.IncludePrefix == nil {
		return true
	}

	return *o.IncludePrefix
}

// TextMetadata describes a ToText encoding.
type TextMetadata struct {
	SourceName    string        `json:"sourceName"`
	MediaType     string        `json:"mediaType"`
	SourceBytes   int           `json:"sourceBytes"`
	PayloadLength int           `json:"payloadLength"`
	Elapsed       time.Duration `json:"elapsedMs"`
}

// TextResult is an encoded payload with its metadata.
type TextResult struct {
	Payload string       `json:"payload"`
	Meta    TextMetadata `json:"metadata"`
}

// ToImage turns base64 text into an image blob. The payload is size
// gated by estimate before any decoding, then decoded and run through
// the raster pipeline once to learn its dimensions. A bare payload
// without a data-URL header is assumed to carry a PNG; a data URL with
// a non-image media type is admitted here and left to the decoder.
func (c *Base64) ToImage(text string) (*media.ConversionResult, error) {
	if text == "" {
		return nil, errors.Wrap(media.ErrInvalidInput, "empty input")
	}

	payload := text
	if strings.HasPrefix(text, "data:") {
		_, p, err := dataurl.Parse(text)
		if err != nil {
			return nil, err
		}
		payload = p
	}

	if estimated := dataurl.EstimateDecodedBytes(payload); estimated > media.MaxImageBytes {
		return nil, errors.Wrapf(media.ErrBase64TooLarge,
			"estimated %d decoded bytes, limit is %d", estimated, media.MaxImageBytes)
	}

	blob, err := dataurl.ToBlob(text)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	bm, err := c.pipeline.Decode(blob)
	if err != nil {
		return nil, err
	}

	return &media.ConversionResult{
		Blob: blob,
		Meta: media.Metadata{
			SourceMediaType:  blob.MediaType(),
			TargetMediaType:  blob.MediaType(),
			SourceBytes:      blob.Len(),
			OutputBytes:      blob.Len(),
			Width:            bm.Width(),
			Height:           bm.Height(),
			CompressionRatio: 1,
			Elapsed:          time.Since(started),
		},
	}, nil
}

// ToText renders an image file as base64 text. Limits are checked
// before the bytes are touched.
func (c *Base64) ToText(file File, opts TextOptions) (*TextResult, error) {
	if file.Blob == nil || file.Blob.Len() == 0 {
		return nil, errors.Wrap(media.ErrInvalidInput, "empty file")
	}

	mediaType := media.DetectMediaType(file.Blob.MediaType(), file.Name)
	if err := media.ValidateImageInput(mediaType, file.Blob.Len()); err != nil {
		return nil, err
	}

	started := time.Now()
	encoded := dataurl.FromBytes(file.Blob.Bytes(), mediaType)
	payload := encoded
	if !opts.includePrefix() {
		payload = dataurl.StripPrefix(encoded)
	}

	return &TextResult{
		Payload: payload,
		Meta: TextMetadata{
			SourceName:    file.Name,
			MediaType:     mediaType,
			SourceBytes:   file.Blob.Len(),
			PayloadLength: len(payload),
			Elapsed:       time.Since(started),
		},
	}, nil
}
