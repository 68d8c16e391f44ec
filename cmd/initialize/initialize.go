// Package initialize assembles the conversion service graph for the
// CLI binary.
package initialize

import (
	"os"
	"time"

	"github.com/denismitr/goenv"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"mediaconv/converter"
	"mediaconv/gifmaker"
	"mediaconv/heic"
	"mediaconv/manipulator"
	"mediaconv/pdfrender"
	"mediaconv/registry"
	"mediaconv/storage/localstorage"
)

// DotEnv loads a .env file when one is present. A missing file is not
// an error for a CLI; a present but unreadable one is.
func DotEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}

	if err := godotenv.Load(); err != nil {
		panic("Error loading .env file")
	}
}

func Logger() *logrus.Logger {
	log := logrus.New()
	log.Out = os.Stderr
	log.Formatter = &logrus.TextFormatter{
		TimestampFormat: time.StampMilli,
		FullTimestamp:   true,
	}

	if goenv.IsTruthy("MEDIACONV_DEBUG") {
		log.SetLevel(logrus.DebugLevel)
	}

	return log
}

// Config carries the CLI-level knobs the service graph needs.
type Config struct {
	FFmpegBin   string
	FFprobeBin  string
	OutDir      string
	MaxOutBytes int64
}

// Services is the full conversion engine wired together. Close tears
// everything down in dependency order.
type Services struct {
	Registry *registry.Registry
	Pipeline *manipulator.Pipeline
	Images   *converter.Image
	Base64   *converter.Base64
	PDF      *pdfrender.Rasterizer
	GIF      *gifmaker.Maker
	Store    *localstorage.LocalStorage

	heic *heic.WorkerDecoder
}

func NewServices(cfg Config, log *logrus.Logger) *Services {
	reg := registry.New(registry.Config{Log: log})
	heicDecoder := heic.NewWorkerDecoder(heic.NewLibheifDecoder(), log)
	pipeline := manipulator.New(heicDecoder)

	opener := gifmaker.NewFFmpegOpener(reg)
	if cfg.FFmpegBin != "" {
		opener.FFmpegBin = cfg.FFmpegBin
	}
	if cfg.FFprobeBin != "" {
		opener.FFprobeBin = cfg.FFprobeBin
	}

	return &Services{
		Registry: reg,
		Pipeline: pipeline,
		Images:   converter.NewImage(pipeline, reg, log),
		Base64:   converter.NewBase64(pipeline, log),
		PDF:      pdfrender.New(pdfrender.NewFitzEngine(), pipeline, reg),
		GIF:      gifmaker.New(pipeline, opener, log),
		Store:    localstorage.New(localstorage.Config{OutDir: cfg.OutDir, MaxBytes: cfg.MaxOutBytes}),
		heic:     heicDecoder,
	}
}

func (s *Services) Close() {
	s.GIF.Terminate()
	s.heic.Terminate()
	s.PDF.Release()
	s.Registry.Close()
}
