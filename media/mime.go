package media

import (
	"path/filepath"
	"strings"
)

const (
	PNG  = "image/png"
	JPEG = "image/jpeg"
	GIF  = "image/gif"
	WEBP = "image/webp"
	HEIC = "image/heic"
	HEIF = "image/heif"
	SVG  = "image/svg+xml"
	MP4  = "video/mp4"
	MOV  = "video/quicktime"
	WEBM = "video/webm"
	PDF  = "application/pdf"
)

var mimes = map[string]string{
	"png":  PNG,
	"jpg":  JPEG,
	"jpeg": JPEG,
	"gif":  GIF,
	"webp": WEBP,
	"heic": HEIC,
	"heif": HEIF,
	"svg":  SVG,
	"mp4":  MP4,
	"mov":  MOV,
	"webm": WEBM,
	"pdf":  PDF,
}

// GuessMimeFromExtension maps a file extension to a media type.
// Empty string when the extension is unknown.
func GuessMimeFromExtension(ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if m, ok := mimes[ext]; ok {
		return m
	}

	return ""
}

// DetectMediaType resolves the effective media type of an input: the
// declared type wins unless it is empty or opaque, in which case the
// file name's extension decides.
func DetectMediaType(declared, filename string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}

	return GuessMimeFromExtension(filepath.Ext(filename))
}

// ExtensionFor is the inverse table used when naming output files.
func ExtensionFor(mediaType string) string {
	switch mediaType {
	case PNG:
		return "png"
	case JPEG:
		return "jpg"
	case GIF:
		return "gif"
	case WEBP:
		return "webp"
	case PDF:
		return "pdf"
	default:
		return "bin"
	}
}
