package manipulator

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"mediaconv/media"
)

type prefix string

const (
	width   prefix = "w"
	height  prefix = "h"
	quality prefix = "q"
	aspect  prefix = "ar"
)

const (
	minPixels  = 1
	maxPixels  = 10000
	minPercent = 1
	maxPercent = 100
)

var segmentExpr = regexp.MustCompile(`^(ar|[whq])(\d{1,5})$`)

// ParseSpec turns a compact transformation spec such as "w200_h100_q80"
// into conversion options. Recognized segments: w<px>, h<px>,
// q<percent>, ar{0|1}. Aspect ratio preservation defaults to on.
func ParseSpec(spec string) (Options, error) {
	opts := Options{Resize: DefaultResizePolicy()}
	if spec == "" {
		return opts, nil
	}

	seen := make(map[prefix]bool)
	for _, segment := range strings.Split(strings.ToLower(spec), "_") {
		m := segmentExpr.FindStringSubmatch(segment)
		if m == nil {
			return opts, errors.Wrapf(media.ErrInvalidInput, "malformed spec segment %q", segment)
		}

		p := prefix(m[1])
		if seen[p] {
			return opts, errors.Wrapf(media.ErrInvalidInput, "duplicate spec segment %q", segment)
		}
		seen[p] = true

		v, err := strconv.Atoi(m[2])
		if err != nil {
			return opts, errors.Wrapf(media.ErrInvalidInput, "malformed spec segment %q", segment)
		}

		switch p {
		case width:
			if v < minPixels || v > maxPixels {
				return opts, errors.Wrapf(media.ErrInvalidInput, "width %d is outside [%d, %d]", v, minPixels, maxPixels)
			}
			opts.Resize.MaxWidth = v
		case height:
			if v < minPixels || v > maxPixels {
				return opts, errors.Wrapf(media.ErrInvalidInput, "height %d is outside [%d, %d]", v, minPixels, maxPixels)
			}
			opts.Resize.MaxHeight = v
		case quality:
			if v < minPercent || v > maxPercent {
				return opts, errors.Wrapf(media.ErrInvalidInput, "quality %d is outside [%d, %d]", v, minPercent, maxPercent)
			}
			opts.Quality = Quality(float64(v) / 100)
		case aspect:
			if v != 0 && v != 1 {
				return opts, errors.Wrapf(media.ErrInvalidInput, "aspect flag must be 0 or 1, got %d", v)
			}
			opts.Resize.MaintainAspectRatio = v == 1
		}
	}

	return opts, nil
}
