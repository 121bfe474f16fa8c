package domain

// StoredObject описывает изображение каталога, которое хранится в S3-совместимом хранилище.
type StoredObject struct {
	Bucket      string
	ObjectKey   string
	Bytes       []byte
	Size        int64
	ContentType string // Example: "image/jpeg"
}

func NewStoredObject(bucket string, objectKey string, data []byte, contentType string) *StoredObject {
	return &StoredObject{
		Bucket:      bucket,
		ObjectKey:   objectKey,
		Bytes:       data,
		Size:        int64(len(data)),
		ContentType: contentType,
	}
}
