package storage

import "context"

// Providers
const (
	ProviderFake  = "fake"
	ProviderMinio = "minio"
)

type IService interface {
	// StoreFile uploads a local file and returns its URL.
	StoreFile(ctx context.Context, fileName string) (string, error)
	// StoreBytes uploads an in-memory object under key and returns its URL.
	StoreBytes(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
