// Package dispatch maps an input artifact to the decoder variant that
// can handle it and polices the input/output format matrix.
package dispatch

import (
	"github.com/pkg/errors"

	"mediaconv/media"
)

// Kind is a tagged decoder variant. Adding an input format means adding
// a Kind and a row in kindByType; the raster pipeline stays untouched.
type Kind int

const (
	KindUnknown Kind = iota
	KindNativeRaster
	KindVectorText
	KindHelperHEIC
	KindPDFPage
	KindVideoFrames
)

func (k Kind) String() string {
	switch k {
	case KindNativeRaster:
		return "native-raster"
	case KindVectorText:
		return "vector-text"
	case KindHelperHEIC:
		return "helper-heic"
	case KindPDFPage:
		return "pdf-page"
	case KindVideoFrames:
		return "video-frames"
	default:
		return "unknown"
	}
}

var kindByType = map[string]Kind{
	media.PNG:  KindNativeRaster,
	media.JPEG: KindNativeRaster,
	media.GIF:  KindNativeRaster,
	media.WEBP: KindNativeRaster,
	media.SVG:  KindVectorText,
	media.HEIC: KindHelperHEIC,
	media.HEIF: KindHelperHEIC,
	media.PDF:  KindPDFPage,
	media.MP4:  KindVideoFrames,
	media.MOV:  KindVideoFrames,
	media.WEBM: KindVideoFrames,
}

// outputsByKind is the supported output matrix, checked before any
// decoder runs.
var outputsByKind = map[Kind]map[string]bool{
	KindNativeRaster: {media.PNG: true, media.JPEG: true, media.WEBP: true},
	KindVectorText:   {media.PNG: true, media.JPEG: true, media.WEBP: true},
	KindHelperHEIC:   {media.PNG: true, media.JPEG: true, media.WEBP: true},
	KindPDFPage:      {media.PNG: true, media.JPEG: true},
	KindVideoFrames:  {media.GIF: true},
}

// KindFor selects the decoder variant for a media type.
func KindFor(mediaType string) (Kind, error) {
	k, ok := kindByType[mediaType]
	if !ok {
		return KindUnknown, errors.Wrapf(media.ErrUnsupportedInputFormat, "no decoder for %q", mediaType)
	}

	return k, nil
}

// CheckOutput verifies the requested target against the matrix.
func CheckOutput(k Kind, targetMediaType string) error {
	outputs, ok := outputsByKind[k]
	if !ok {
		return errors.Wrapf(media.ErrUnsupportedInputFormat, "no decoder variant %s", k)
	}

	if !outputs[targetMediaType] {
		return errors.Wrapf(media.ErrUnsupportedOutputFormat, "%s cannot produce %q", k, targetMediaType)
	}

	return nil
}

// Route resolves an artifact's effective type and decoder variant and
// checks that the target is reachable from it.
func Route(declared, filename, targetMediaType string) (string, Kind, error) {
	mediaType := media.DetectMediaType(declared, filename)
	if mediaType == "" {
		return "", KindUnknown, errors.Wrapf(media.ErrUnsupportedInputFormat, "cannot determine media type of %q", filename)
	}

	k, err := KindFor(mediaType)
	if err != nil {
		return "", KindUnknown, err
	}

	if err := CheckOutput(k, targetMediaType); err != nil {
		return "", KindUnknown, err
	}

	return mediaType, k, nil
}
