package manipulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaconv/media"
)

func TestParseSpec(t *testing.T) {
	tt := []struct {
		spec string
		opts Options
		code string
	}{
		{
			spec: "",
			opts: Options{Resize: ResizePolicy{MaintainAspectRatio: true}},
		},
		{
			spec: "w200_h100_q80",
			opts: Options{
				Resize:  ResizePolicy{MaxWidth: 200, MaxHeight: 100, MaintainAspectRatio: true},
				Quality: 0.8,
			},
		},
		{
			spec: "W640",
			opts: Options{Resize: ResizePolicy{MaxWidth: 640, MaintainAspectRatio: true}},
		},
		{
			spec: "w200_h100_ar0",
			opts: Options{Resize: ResizePolicy{MaxWidth: 200, MaxHeight: 100}},
		},
		{spec: "w0", code: "InvalidInput"},
		{spec: "w200_w300", code: "InvalidInput"},
		{spec: "q101", code: "InvalidInput"},
		{spec: "ar2", code: "InvalidInput"},
		{spec: "x100", code: "InvalidInput"},
		{spec: "w", code: "InvalidInput"},
	}

	for _, tc := range tt {
		t.Run(tc.spec, func(t *testing.T) {
			opts, err := ParseSpec(tc.spec)
			if tc.code != "" {
				assert.Equal(t, tc.code, media.Code(err))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.opts, opts)
		})
	}
}
