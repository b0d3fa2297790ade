package s3

import (
	"context"
	"io"
)

// Object is a blob read handle.
type Object interface {
	io.ReadCloser
	ContentLength() int64
	ContentType() string
}

type object struct {
	io.ReadCloser
	contentLength int64
	contentType   string
}

func (o *object) ContentLength() int64 {
	return o.contentLength
}

func (o *object) ContentType() string {
	return o.contentType
}

// Storage is the blob store consumed by the file, trash and preview
// services. Keys are opaque; the file layer derives them from owner and
// file UUID.
type Storage interface {
	UploadBytes(ctx context.Context, key string, data []byte) error
	GetObject(ctx context.Context, key string) (Object, error)
	GetObjectRange(ctx context.Context, key string, start, end int64) (Object, error)
	GetReader(ctx context.Context, key string) (io.ReadCloser, error)
	DeleteObject(ctx context.Context, key string) error

	CreateMultipartUpload(ctx context.Context, key string) (string, error)
	UploadPart(ctx context.Context, uploadID string, key string, partNumber int, data []byte) (string, error)
	CompleteMultipartUpload(ctx context.Context, uploadID string, key string, parts []CompletedPart) error
	AbortMultipartUpload(ctx context.Context, uploadID string, key string) error
}

type CompletedPart struct {
	PartNumber int
	ETag       string
}
