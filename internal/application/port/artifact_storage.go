package port

import (
	"context"
	"time"
)

// StoredObject описывает объект во внешнем хранилище
type StoredObject struct {
	Key          string
	URL          string
	LastModified time.Time
	SizeBytes    int64
}

// ArtifactStorage определяет интерфейс хранилища выгруженных отчетов.
type ArtifactStorage interface {
	// PutObject загружает объект и возвращает URL для чтения.
	PutObject(ctx context.Context, key, contentType string, body []byte) (string, error)

	ListObjects(ctx context.Context, prefix string, limit int) ([]StoredObject, error)

	GetObjectURL(ctx context.Context, key string) (string, error)
}
