package utils

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	UrlPrefix       string
	DbConnectionUrl string
	SentryDsn       string
	CacheType       string
	RedisUrl        string
	NotificationUrl string
	EnableProfiler  bool
	StartTime       int
}

func GetConfig() *AppConfig {
	godotenv.Load()

	var appConfig = AppConfig{
		UrlPrefix: "/tether",
		StartTime: int(time.Now().Unix()),
	}

	if urlPrefix := os.Getenv("URL_PREFIX"); len(urlPrefix) > 0 {
		appConfig.UrlPrefix = urlPrefix
	}

	if dbConnectionUrl := os.Getenv("DB_CONNECTION_URL"); len(dbConnectionUrl) > 0 {
		appConfig.DbConnectionUrl = dbConnectionUrl
	}

	if sentryDsn := os.Getenv("SENTRY_DSN"); len(sentryDsn) > 0 {
		appConfig.SentryDsn = sentryDsn
	}

	appConfig.CacheType = os.Getenv("CACHE_TYPE")
	appConfig.RedisUrl = os.Getenv("REDIS_URL")
	appConfig.NotificationUrl = os.Getenv("NOTIFICATION_URL")

	if enableProfiler := os.Getenv("ENABLE_PROFILER"); enableProfiler == "true" {
		appConfig.EnableProfiler = true
	}

	return &appConfig
}
