package config

type Config interface {
	EnvConfig
	IdentityConfig
	StorageConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetPlatformBaseURL() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
	Identity
	Storage
}

func New() Config {
	return mainConfig{}
}
