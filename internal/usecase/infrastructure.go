package usecase

import (
	"context"
	"image"
)

// FetcherInfra разрешает источник изображения (URL, локальный путь, minio://)
// в декодированное изображение, приведённое к трёхканальному RGB.
type FetcherInfra interface {
	OpenImage(ctx context.Context, source string) (image.Image, error)
	DecodeUpload(data []byte) (image.Image, error)
}

// ExtractorInfra — граница внешнего сервиса извлечения признаков.
// Vectorize возвращает вектор фиксированной размерности; нормализацию выполняет вызывающая сторона.
type ExtractorInfra interface {
	Vectorize(ctx context.Context, img image.Image) ([]float32, error)
	Device() string
}

type EventProducerInfra interface {
	PublishIndexRebuilt(ctx context.Context, event *IndexRebuiltEvent) error
}
