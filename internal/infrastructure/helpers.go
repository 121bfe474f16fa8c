package infrastructure

import (
	"strings"

	"github.com/DRSN-tech/visual-matcher/pkg/e"
)

// GetMIMEFromExtension возвращает MIME-тип изображения по расширению файла.
// Поддерживает jpeg, jpg, png, gif, webp, bmp. Возвращает e.ErrUnsupportedMediaType для остальных.
func GetMIMEFromExtension(ext string) (string, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg":
		return "image/jpeg", nil
	case "png":
		return "image/png", nil
	case "gif":
		return "image/gif", nil
	case "webp":
		return "image/webp", nil
	case "bmp":
		return "image/bmp", nil
	default:
		return "", e.ErrUnsupportedMediaType
	}
}
