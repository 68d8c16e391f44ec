package media

import (
	"github.com/pkg/errors"
)

// Stable failure identifiers. The message of each sentinel is the
// identifier itself so callers can match on Code(err) without caring how
// many layers of context were wrapped on top.
var (
	ErrInvalidInput            = errors.New("InvalidInput")
	ErrUnsupportedFormat       = errors.New("UnsupportedFormat")
	ErrUnsupportedInputFormat  = errors.New("UnsupportedInputFormat")
	ErrUnsupportedOutputFormat = errors.New("UnsupportedOutputFormat")
	ErrFileTooLarge            = errors.New("FileTooLarge")
	ErrBase64TooLarge          = errors.New("Base64TooLarge")
	ErrInvalidDataURL          = errors.New("InvalidDataURL")
	ErrInvalidBase64           = errors.New("InvalidBase64")
	ErrInvalidTimeRange        = errors.New("InvalidTimeRange")
	ErrInvalidPageNumber       = errors.New("InvalidPageNumber")
	ErrInvalidFileType         = errors.New("InvalidFileType")

	ErrDecodeFailure            = errors.New("DecodeFailure")
	ErrImageLoadError           = errors.New("ImageLoadError")
	ErrHeicDecoderUnavailable   = errors.New("HeicDecoderUnavailable")
	ErrHeicDecodeFailed         = errors.New("HeicDecodeFailed")
	ErrPdfLoadError             = errors.New("PdfLoadError")
	ErrPageConversionError      = errors.New("PageConversionError")
	ErrVideoLoadError           = errors.New("VideoLoadError")
	ErrVideoFrameExtraction     = errors.New("VideoFrameExtractionError")
	ErrGifEncodingError         = errors.New("GifEncodingError")
	ErrEncodeFailed             = errors.New("EncodeFailed")
	ErrFileReadError            = errors.New("FileReadError")

	ErrWorkerError   = errors.New("WorkerError")
	ErrCancelled     = errors.New("Cancelled")
	ErrStorageError  = errors.New("StorageError")
	ErrQuotaExceeded = errors.New("QuotaExceeded")
)

// Code resolves any wrapped error chain to its stable identifier.
// Unknown errors report as WorkerError's generic sibling "InternalError".
func Code(err error) string {
	if err == nil {
		return ""
	}

	cause := errors.Cause(err)
	switch cause {
	case ErrInvalidInput, ErrUnsupportedFormat, ErrUnsupportedInputFormat,
		ErrUnsupportedOutputFormat, ErrFileTooLarge, ErrBase64TooLarge,
		ErrInvalidDataURL, ErrInvalidBase64, ErrInvalidTimeRange,
		ErrInvalidPageNumber, ErrInvalidFileType, ErrDecodeFailure,
		ErrImageLoadError, ErrHeicDecoderUnavailable, ErrHeicDecodeFailed,
		ErrPdfLoadError, ErrPageConversionError, ErrVideoLoadError,
		ErrVideoFrameExtraction, ErrGifEncodingError, ErrEncodeFailed,
		ErrFileReadError, ErrWorkerError, ErrCancelled, ErrStorageError,
		ErrQuotaExceeded:
		return cause.Error()
	}

	return "InternalError"
}
