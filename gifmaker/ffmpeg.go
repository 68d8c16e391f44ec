package gifmaker

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"mediaconv/media"
	"mediaconv/registry"
)

// FFmpegOpener extracts frames with the ffmpeg and ffprobe binaries.
// The clip is spooled to a temp file because ffmpeg cannot seek a pipe.
type FFmpegOpener struct {
	FFmpegBin  string
	FFprobeBin string
	Registry   *registry.Registry
}

func NewFFmpegOpener(reg *registry.Registry) *FFmpegOpener {
	return &FFmpegOpener{FFmpegBin: "ffmpeg", FFprobeBin: "ffprobe", Registry: reg}
}

func (o *FFmpegOpener) Open(blob *media.Blob) (VideoSource, error) {
	f, err := ioutil.TempFile("", "mediaconv-clip-*")
	if err != nil {
		return nil, errors.Wrap(media.ErrVideoLoadError, err.Error())
	}

	path := f.Name()
	if _, err := f.Write(blob.Bytes()); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, errors.Wrap(media.ErrVideoLoadError, err.Error())
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, errors.Wrap(media.ErrVideoLoadError, err.Error())
	}

	info, err := o.probe(path)
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	src := &ffmpegSource{bin: o.FFmpegBin, path: path, info: info}
	if o.Registry != nil {
		src.handle = o.Registry.Acquire(func() { _ = os.Remove(path) }, registry.Info{
			Kind:      "tempfile",
			Size:      blob.Len(),
			MediaType: blob.MediaType(),
		})
		src.reg = o.Registry
	}

	return src, nil
}

func (o *FFmpegOpener) probe(path string) (ClipInfo, error) {
	out, err := exec.Command(o.FFprobeBin,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		path,
	).Output()
	if err != nil {
		return ClipInfo{}, errors.Wrapf(media.ErrVideoLoadError, "ffprobe: %v", err)
	}

	// two csv rows: "width,height" then "duration"
	var info ClipInfo
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		fields := strings.Split(strings.TrimSpace(line), ",")
		if len(fields) == 2 {
			info.Width, _ = strconv.Atoi(fields[0])
			info.Height, _ = strconv.Atoi(fields[1])
		} else if len(fields) == 1 && fields[0] != "" {
			info.Duration, _ = strconv.ParseFloat(fields[0], 64)
		}
	}

	if info.Width < 1 || info.Height < 1 || info.Duration <= 0 {
		return ClipInfo{}, errors.Wrapf(media.ErrVideoLoadError, "ffprobe reported %dx%d over %.3fs", info.Width, info.Height, info.Duration)
	}

	return info, nil
}

type ffmpegSource struct {
	bin    string
	path   string
	info   ClipInfo
	reg    *registry.Registry
	handle registry.Handle
}

func (s *ffmpegSource) Info() ClipInfo {
	return s.info
}

// CaptureAt seeks the clip and decodes exactly one frame as raw RGBA.
func (s *ffmpegSource) CaptureAt(seconds float64) (*media.PixelFrame, error) {
	var out bytes.Buffer
	cmd := exec.Command(s.bin,
		"-ss", fmt.Sprintf("%.4f", seconds),
		"-i", s.path,
		"-frames:v", "1",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-v", "error",
		"pipe:1",
	)
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return nil, errors.Wrapf(media.ErrVideoFrameExtraction, "ffmpeg at %.3fs: %v", seconds, err)
	}

	want := s.info.Width * s.info.Height * 4
	if out.Len() != want {
		return nil, errors.Wrapf(media.ErrVideoFrameExtraction,
			"ffmpeg produced %d bytes at %.3fs, want %d", out.Len(), seconds, want)
	}

	return &media.PixelFrame{Width: s.info.Width, Height: s.info.Height, Pix: out.Bytes()}, nil
}

func (s *ffmpegSource) Close() error {
	if s.reg != nil {
		return s.reg.Release(s.handle)
	}

	return os.Remove(s.path)
}
