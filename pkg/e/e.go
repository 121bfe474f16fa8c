package e

import "fmt"

var (
	// Ошибки каталога
	ErrSchema      = fmt.Errorf("catalog has no usable image column")
	ErrCSVNotFound = fmt.Errorf("products csv not found")

	// Ошибки получения и декодирования изображений
	ErrImageNotFound = fmt.Errorf("local image not found")
	ErrFetchFailed   = fmt.Errorf("image fetch failed")
	ErrDecodeFailed  = fmt.Errorf("image decode failed")

	// Ошибки индекса
	ErrEmptyIndex      = fmt.Errorf("no images could be indexed")
	ErrCorruptIndex    = fmt.Errorf("index artifacts mismatch")
	ErrIndexNotReady   = fmt.Errorf("index not built")
	ErrBuildInProgress = fmt.Errorf("index build already in progress")
	ErrEmptyVector     = fmt.Errorf("vector embedding is empty")

	// 422 Unprocessable Entity
	ErrMinSimilarityRange = fmt.Errorf("min_similarity must be in [0,1]")
	ErrInvalidTopK        = fmt.Errorf("top_k must be positive")
	ErrMissingQueryImage  = fmt.Errorf("provide 'image_url' form field or upload a file")
	ErrBothQuerySources   = fmt.Errorf("'image_url' and file upload are mutually exclusive")
	ErrExpectedForm       = fmt.Errorf("expected form data")

	// Внутренние ошибки
	ErrInternalServerError  = fmt.Errorf("internal server error")
	ErrIncorrectEnvVariable = fmt.Errorf("incorrect env variable")
	ErrUnsupportedMediaType = fmt.Errorf("unsupported media type")
	ErrFileTooLarge         = fmt.Errorf("file too large")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}
