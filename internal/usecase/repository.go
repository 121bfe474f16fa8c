package usecase

import (
	"context"

	"github.com/DRSN-tech/visual-matcher/internal/domain"
)

type CatalogRepository interface {
	Load(ctx context.Context) ([]domain.Product, error)
	Exists() bool
}

type IndexRepository interface {
	Save(ctx context.Context, index *domain.Index) error
	Load(ctx context.Context) (*domain.Index, error)
	MatrixExists() bool
	IDsExist() bool
}

// ImageCacheRepository кэширует сырые байты скачанных изображений между пересборками.
// Промах возвращает (nil, nil); все ошибки кэша некритичны.
type ImageCacheRepository interface {
	GetImage(ctx context.Context, source string) ([]byte, error)
	SetImage(ctx context.Context, source string, data []byte) error
}

// ObjectStorageRepository отдаёт объекты для источников вида minio://bucket/key.
type ObjectStorageRepository interface {
	Download(ctx context.Context, bucket string, key string) ([]byte, error)
	Upload(ctx context.Context, image *domain.StoredObject) (string, error)
}
