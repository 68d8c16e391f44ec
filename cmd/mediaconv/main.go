// Command mediaconv converts media files on the local machine: images
// between raster formats, base64 text to and from images, PDF pages to
// rasters and video clips or stills to animated GIFs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"mediaconv/batch"
	"mediaconv/cmd/initialize"
	"mediaconv/converter"
	"mediaconv/gifmaker"
	"mediaconv/manipulator"
	"mediaconv/media"
	"mediaconv/pdfrender"
)

const envPrefix = "MEDIACONV_"

var log *logrus.Logger

func main() {
	initialize.DotEnv()
	log = initialize.Logger()

	app := cli.NewApp()
	app.Name = "mediaconv"
	app.Usage = "local media converter"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "out, o",
			Value:  ".",
			Usage:  "output directory",
			EnvVar: envPrefix + "OUT",
		},
		cli.StringFlag{
			Name:   "ffmpeg",
			Usage:  "ffmpeg binary",
			EnvVar: envPrefix + "FFMPEG",
		},
		cli.StringFlag{
			Name:   "ffprobe",
			Usage:  "ffprobe binary",
			EnvVar: envPrefix + "FFPROBE",
		},
		cli.Int64Flag{
			Name:   "max-out-bytes",
			Usage:  "cap on total bytes written, 0 for unlimited",
			EnvVar: envPrefix + "MAX_OUT_BYTES",
		},
	}

	app.Commands = []cli.Command{
		{
			Name:      "convert",
			Usage:     "convert images to png, jpeg or webp",
			ArgsUsage: "FILE [FILE...]",
			Action:    convertAction,
			Flags: []cli.Flag{
				cli.StringFlag{Name: "to, t", Value: "png", Usage: "target format: png, jpeg or webp"},
				cli.StringFlag{Name: "geometry, g", Usage: "compact transform such as w200_h100_q80"},
				cli.IntFlag{Name: "max-width, w", Usage: "bound output width"},
				cli.IntFlag{Name: "max-height, H", Usage: "bound output height"},
				cli.BoolFlag{Name: "stretch", Usage: "ignore aspect ratio when both bounds are set"},
				cli.Float64Flag{Name: "quality, q", Usage: "encode quality in [0,1]"},
				cli.IntFlag{Name: "concurrency, c", Usage: "parallel conversions"},
				cli.BoolFlag{Name: "fail-fast", Usage: "stop scheduling after the first failure"},
			},
		},
		{
			Name:  "base64",
			Usage: "move images in and out of base64 text",
			Subcommands: []cli.Command{
				{
					Name:      "encode",
					Usage:     "emit a file as a data URL on stdout",
					ArgsUsage: "FILE",
					Action:    base64EncodeAction,
					Flags: []cli.Flag{
						cli.BoolFlag{Name: "raw", Usage: "emit the bare payload without the data: prefix"},
					},
				},
				{
					Name:      "decode",
					Usage:     "decode a data URL (from the argument or stdin) into an image file",
					ArgsUsage: "[TEXT]",
					Action:    base64DecodeAction,
				},
			},
		},
		{
			Name:      "pdf",
			Usage:     "rasterize every page of a PDF",
			ArgsUsage: "FILE",
			Action:    pdfAction,
			Flags: []cli.Flag{
				cli.Float64Flag{Name: "scale", Value: pdfrender.DefaultScale, Usage: "render scale, 1.0 is 72 DPI"},
				cli.StringFlag{Name: "format, f", Value: "png", Usage: "page format: png or jpeg"},
				cli.Float64Flag{Name: "quality, q", Usage: "encode quality in [0,1]"},
			},
		},
		{
			Name:      "gif",
			Usage:     "build an animated GIF from a video clip or a list of stills",
			ArgsUsage: "FILE [FILE...]",
			Action:    gifAction,
			Flags: []cli.Flag{
				cli.Float64Flag{Name: "start", Usage: "clip start in seconds"},
				cli.Float64Flag{Name: "end", Usage: "clip end in seconds, 0 for end of video"},
				cli.IntFlag{Name: "fps", Value: gifmaker.DefaultFrameRate, Usage: "frames per second for video input"},
				cli.IntFlag{Name: "delay-ms", Usage: "frame delay in milliseconds for still input"},
				cli.IntFlag{Name: "width, w", Usage: "output width"},
				cli.IntFlag{Name: "height, H", Usage: "output height"},
				cli.IntFlag{Name: "quality, q", Value: gifmaker.DefaultQuality, Usage: "gif quality 1..30, lower is better"},
				cli.IntFlag{Name: "loop", Usage: "loop count, 0 for forever"},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Error("mediaconv failed")
		os.Exit(1)
	}
}

func services(c *cli.Context) (*initialize.Services, context.Context, func()) {
	svc := initialize.NewServices(initialize.Config{
		FFmpegBin:   c.GlobalString("ffmpeg"),
		FFprobeBin:  c.GlobalString("ffprobe"),
		OutDir:      c.GlobalString("out"),
		MaxOutBytes: c.GlobalInt64("max-out-bytes"),
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-stopCh
		cancel()
	}()

	return svc, ctx, func() {
		signal.Stop(stopCh)
		cancel()
		svc.Close()
	}
}

func targetType(name string) (string, error) {
	t := media.GuessMimeFromExtension(strings.ToLower(name))
	if t == "" {
		return "", errors.Wrapf(media.ErrUnsupportedFormat, "unknown target format %q", name)
	}

	return t, nil
}

func outputName(input, mediaType string) string {
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "." + media.ExtensionFor(mediaType)
}

func convertAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("no input files")
	}

	target, err := targetType(c.String("to"))
	if err != nil {
		return err
	}

	svc, ctx, closeAll := services(c)
	defer closeAll()

	files := make([]converter.File, 0, c.NArg())
	for _, path := range c.Args() {
		blob, err := svc.Store.Fetch(ctx, path)
		if err != nil {
			return err
		}
		files = append(files, converter.File{Name: path, Blob: blob})
	}

	opts, err := manipulator.ParseSpec(c.String("geometry"))
	if err != nil {
		return err
	}
	if c.IsSet("max-width") {
		opts.Resize.MaxWidth = c.Int("max-width")
	}
	if c.IsSet("max-height") {
		opts.Resize.MaxHeight = c.Int("max-height")
	}
	if c.Bool("stretch") {
		opts.Resize.MaintainAspectRatio = false
	}
	if c.IsSet("quality") {
		opts.Quality = manipulator.Quality(c.Float64("quality"))
	}

	res, err := svc.Images.Batch(ctx, files, target, converter.BatchOptions{
		Options: opts,
		MaxConcurrent:   c.Int("concurrency"),
		ContinueOnError: boolPtr(!c.Bool("fail-fast")),
		OnProgress: func(p batch.Progress) {
			log.WithFields(logrus.Fields{
				"completed": p.Completed, "total": p.Total, "failed": p.Failed,
			}).Infof("%d%%", p.Percentage)
		},
	})
	if err != nil {
		return err
	}

	for _, item := range res.Items {
		if !item.OK {
			log.WithError(item.Err).Warnf("%s failed", item.FileName)
			continue
		}

		stored, err := svc.Store.Put(ctx, outputName(item.FileName, target), item.Result.Blob.Reader())
		if err != nil {
			return err
		}

		log.WithFields(logrus.Fields{
			"out":   stored.Path,
			"size":  stored.Size,
			"ratio": fmt.Sprintf("%.2f", item.Result.Meta.CompressionRatio),
		}).Infof("%s -> %dx%d", item.FileName, item.Result.Meta.Width, item.Result.Meta.Height)
	}

	s := res.Summary
	log.Infof("done: %d ok, %d failed, %.1fms avg", s.Successful, s.Failed, s.AverageMs)

	return nil
}

func base64EncodeAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one file")
	}

	svc, ctx, closeAll := services(c)
	defer closeAll()

	path := c.Args().First()
	blob, err := svc.Store.Fetch(ctx, path)
	if err != nil {
		return err
	}

	res, err := svc.Base64.ToText(converter.File{Name: path, Blob: blob}, converter.TextOptions{
		IncludePrefix: boolPtr(!c.Bool("raw")),
	})
	if err != nil {
		return err
	}

	fmt.Println(res.Payload)
	log.WithFields(logrus.Fields{
		"source": res.Meta.SourceName, "type": res.Meta.MediaType, "payload": res.Meta.PayloadLength,
	}).Debug("encoded")

	return nil
}

func base64DecodeAction(c *cli.Context) error {
	svc, ctx, closeAll := services(c)
	defer closeAll()

	text := c.Args().First()
	if text == "" {
		b, err := os.ReadFile("/dev/stdin")
		if err != nil {
			return err
		}
		text = strings.TrimSpace(string(b))
	}

	res, err := svc.Base64.ToImage(text)
	if err != nil {
		return err
	}

	name := "decoded." + media.ExtensionFor(res.Blob.MediaType())
	stored, err := svc.Store.Put(ctx, name, res.Blob.Reader())
	if err != nil {
		return err
	}

	log.Infof("%s: %dx%d, %d bytes", stored.Path, res.Meta.Width, res.Meta.Height, stored.Size)

	return nil
}

func pdfAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one file")
	}

	target, err := targetType(c.String("format"))
	if err != nil {
		return err
	}

	svc, ctx, closeAll := services(c)
	defer closeAll()

	path := c.Args().First()
	blob, err := svc.Store.Fetch(ctx, path)
	if err != nil {
		return err
	}

	info, err := svc.PDF.Load(ctx, blob, path, func(pct int) {
		log.Debugf("load %d%%", pct)
	})
	if err != nil {
		return err
	}

	opts := pdfrender.RenderOptions{
		Scale:   c.Float64("scale"),
		Format:  target,
		Quality: manipulator.Quality(c.Float64("quality")),
	}

	log.WithFields(logrus.Fields{
		"pages":    info.PageCount,
		"estimate": svc.PDF.EstimateOutputBytes(opts),
	}).Infof("rendering %s", path)

	pages, err := svc.PDF.RenderAll(ctx, opts, func(pct int) {
		log.Debugf("render %d%%", pct)
	})
	if err != nil {
		return err
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for _, page := range pages {
		name := fmt.Sprintf("%s-page-%d.%s", base, page.PageNumber, media.ExtensionFor(target))
		stored, err := svc.Store.Put(ctx, name, page.Blob.Reader())
		if err != nil {
			return err
		}
		log.Infof("%s: %dx%d", stored.Path, page.Meta.Width, page.Meta.Height)
	}

	return nil
}

func gifAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("no input files")
	}

	svc, ctx, closeAll := services(c)
	defer closeAll()

	opts := gifmaker.Options{
		Width:     c.Int("width"),
		Height:    c.Int("height"),
		StartTime: c.Float64("start"),
		EndTime:   c.Float64("end"),
		FrameRate: c.Int("fps"),
		Quality:   c.Int("quality"),
		LoopCount: c.Int("loop"),
	}
	if ms := c.Int("delay-ms"); ms > 0 {
		opts.FrameDelay = time.Duration(ms) * time.Millisecond
	}

	onProgress := func(pct int) { log.Debugf("gif %d%%", pct) }

	first, err := svc.Store.Fetch(ctx, c.Args().First())
	if err != nil {
		return err
	}

	var res *gifmaker.Result
	if media.IsVideoType(first.MediaType()) {
		if c.NArg() != 1 {
			return fmt.Errorf("a video GIF takes exactly one input")
		}
		res, err = svc.GIF.VideoToGIF(ctx, first, opts, onProgress)
	} else {
		blobs := []*media.Blob{first}
		for _, path := range c.Args().Tail() {
			blob, err := svc.Store.Fetch(ctx, path)
			if err != nil {
				return err
			}
			blobs = append(blobs, blob)
		}
		res, err = svc.GIF.ImagesToGIF(ctx, blobs, opts, onProgress)
	}
	if err != nil {
		return err
	}

	stored, err := svc.Store.Put(ctx, outputName(c.Args().First(), media.GIF), res.Blob.Reader())
	if err != nil {
		return err
	}

	log.Infof("%s: %d frames, %dx%d, %d bytes",
		stored.Path, res.FrameCount, res.Meta.Width, res.Meta.Height, stored.Size)

	return nil
}

func boolPtr(b bool) *bool { return &b }
