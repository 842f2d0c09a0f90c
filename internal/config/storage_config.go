package config

type StorageConfig interface {
	GetRedisAddr() string
	GetRedisPassword() string
	GetStorageNamespace() string
}

type Storage struct{}

var _ StorageConfig = Storage{}

func (Storage) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Storage) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

// GetStorageNamespace returns the app-wide key prefix. Every key the product
// persists lives under this namespace so a full credential wipe can clear by
// prefix.
func (Storage) GetStorageNamespace() string {
	return GetEnv("STORAGE_NAMESPACE", "svw")
}
