package ports

import (
	"context"
	"io"
)

type PutObjectInput struct {
	ObjectKey          string
	ContentType        string
	ContentDisposition string
	// Public asks the provider to make the object readable by anyone with the URL.
	Public bool
	Reader io.Reader
	Size   int64
}

type PutObjectOutput struct {
	// localfs and s3 echo the object key; gdrive returns the Drive fileId.
	ObjectKey string
	Size      int64
	URL       string
}

// StorageProvider is implemented by the localfs, s3 and gdrive adapters.
type StorageProvider interface {
	Provider() string

	PutObject(ctx context.Context, in PutObjectInput) (PutObjectOutput, error)
	GetObject(ctx context.Context, objectKey string) (rc io.ReadCloser, contentType string, size int64, err error)
	DeleteObject(ctx context.Context, objectKey string) error

	// PublicURL is the address a public object is served from.
	PublicURL(objectKey string) string
	Ping(ctx context.Context) error
}
