package config

import "fmt"

type StorageConfig struct {
	Mode     string // "local" or "s3"
	LocalDir string
	S3       S3Config
}

type S3Config struct {
	Region string
	Bucket string
	Prefix string
}

func loadStorageConfig() StorageConfig {
	return StorageConfig{
		Mode:     getEnv("STORAGE_MODE", "local"),
		LocalDir: getEnv("STORAGE_LOCAL_DIR", "./data"),
		S3: S3Config{
			Region: getEnv("AWS_REGION", "us-east-1"),
			Bucket: getEnv("S3_BUCKET", ""),
			Prefix: getEnv("S3_PREFIX", ""),
		},
	}
}

func (s StorageConfig) Validate() error {
	switch s.Mode {
	case "local":
		return nil
	case "s3":
		if s.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_MODE=s3")
		}
		return nil
	default:
		return fmt.Errorf("STORAGE_MODE must be local or s3, got %q", s.Mode)
	}
}
