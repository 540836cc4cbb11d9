package s3

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

type Config struct {
	Region          string
	EndpointURL     string // set for LocalStack / minio; empty for AWS
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

type ConfigErrorCode string

const (
	ConfigErrorMissingRegion   ConfigErrorCode = "missing_region"
	ConfigErrorInvalidEndpoint ConfigErrorCode = "invalid_endpoint"
)

type ConfigError struct {
	Code  ConfigErrorCode
	Value string
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "invalid s3 config"
	}
	switch e.Code {
	case ConfigErrorMissingRegion:
		return "AWS_REGION is required"
	case ConfigErrorInvalidEndpoint:
		return fmt.Sprintf(
			"invalid AWS_ENDPOINT_URL=%q; expected absolute URL like http://localstack:4566",
			e.Value,
		)
	default:
		return "invalid s3 config"
	}
}

func ConfigFromEnv() Config {
	return Config{
		Region:          strings.TrimSpace(os.Getenv("AWS_REGION")),
		EndpointURL:     strings.TrimSpace(os.Getenv("AWS_ENDPOINT_URL")),
		AccessKeyID:     strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID")),
		SecretAccessKey: strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY")),
		// Custom endpoints (LocalStack, minio) generally require path-style addressing.
		UsePathStyle: strings.TrimSpace(os.Getenv("AWS_ENDPOINT_URL")) != "",
	}
}

func ValidateConfig(cfg Config) error {
	if cfg.Region == "" {
		return &ConfigError{Code: ConfigErrorMissingRegion}
	}
	if cfg.EndpointURL != "" {
		u, err := url.Parse(cfg.EndpointURL)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return &ConfigError{Code: ConfigErrorInvalidEndpoint, Value: cfg.EndpointURL}
		}
	}
	return nil
}
