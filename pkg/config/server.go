package config

type ServerConfig struct {
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
	BaseURL     string
	CORSOrigins []string
	BodyLimit   int
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:        getEnvInt("SERVER_PORT", 8080),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "console"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		CORSOrigins: getEnvStringSlice("CORS_ORIGINS", []string{"http://localhost:3000"}),
		BodyLimit:   getEnvInt("SERVER_BODY_LIMIT", 4*1024*1024),
	}
}
