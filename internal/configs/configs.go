/*
Package configs is responsible for loading and parsing the application's configuration settings.

It primarily configures server parameters by reading operating system environment variables,
including the running environment, port, CORS allowed origins, token secret, relay backend
targets, the session policy, and the media storage credentials.
*/
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig contains all configuration parameters required for the application to run.
// All configuration values are loaded from environment variables.
type AppConfig struct {
	// General Server Settings
	Environment string
	Port        int

	// Security Settings
	AllowedOrigins  []string
	AccessSecretKey string

	// SessionPolicy controls simultaneous sockets per user: "single" or "multi".
	SessionPolicy string

	// Relay Settings: client type to backend base URL.
	BackendURLs  map[string]string
	RelayTimeout time.Duration

	// S3 Storage Settings. Optional; media endpoints are disabled when the
	// bucket name is absent.
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// MediaEnabled reports whether enough storage configuration is present to
// serve the media presign endpoints.
func (c *AppConfig) MediaEnabled() bool {
	return c.S3BucketName != "" && c.S3Endpoint != "" && c.S3AccessKeyID != "" && c.S3SecretAccessKey != ""
}

// LoadConfig reads and parses the application configuration from environment variables.
// It provides default values for each configuration item and performs necessary type conversions and validation.
// It returns a pointer to the AppConfig struct and any error encountered.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}

	// --- General Server Settings ---
	// Environment
	cfg.Environment = os.Getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	// Port
	portStr := os.Getenv("PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT environment variable: %w", err)
	}
	cfg.Port = port

	if cfg.Port < 1024 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", cfg.Port, 1024, 65535)
	}

	// --- Security Settings ---
	// AllowedOrigins
	originsStr := os.Getenv("ALLOWED_ORIGINS")
	if originsStr != "" {
		origins := strings.Split(originsStr, ",")
		for _, origin := range origins {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	} else {
		cfg.AllowedOrigins = []string{}
	}

	// AccessSecretKey
	secretKey := os.Getenv("ACCESS_SECRET_KEY")
	if cfg.Environment == "development" {
		if secretKey == "" {
			secretKey = "your_default_insecure_secret_key_change_me"
		}
	} else {
		if secretKey == "" {
			return nil, fmt.Errorf("ACCESS_SECRET_KEY environment variable is required in %s environment for security", cfg.Environment)
		}
	}
	cfg.AccessSecretKey = secretKey

	// SessionPolicy
	cfg.SessionPolicy = os.Getenv("SESSION_POLICY")
	if cfg.SessionPolicy == "" {
		cfg.SessionPolicy = "single"
	}
	if cfg.SessionPolicy != "single" && cfg.SessionPolicy != "multi" {
		return nil, fmt.Errorf("invalid SESSION_POLICY %q: must be \"single\" or \"multi\"", cfg.SessionPolicy)
	}

	// --- Relay Settings ---
	// BackendURLs: comma-separated clientType=baseURL pairs.
	backendsStr := os.Getenv("BACKEND_URLS")
	if backendsStr == "" {
		if cfg.Environment == "development" {
			backendsStr = "web=http://localhost:3000,mobile=http://localhost:3000"
		} else {
			return nil, fmt.Errorf("BACKEND_URLS environment variable is required in %s environment", cfg.Environment)
		}
	}
	backends, err := parseBackendURLs(backendsStr)
	if err != nil {
		return nil, err
	}
	cfg.BackendURLs = backends

	// RelayTimeout
	timeoutStr := os.Getenv("RELAY_TIMEOUT_SECONDS")
	if timeoutStr == "" {
		timeoutStr = "5"
	}
	timeoutSecs, err := strconv.Atoi(timeoutStr)
	if err != nil || timeoutSecs <= 0 {
		return nil, fmt.Errorf("invalid RELAY_TIMEOUT_SECONDS environment variable: %q", timeoutStr)
	}
	cfg.RelayTimeout = time.Duration(timeoutSecs) * time.Second

	// --- S3 Storage Settings ---
	cfg.S3BucketName = os.Getenv("S3_BUCKET_NAME")
	cfg.S3Endpoint = os.Getenv("S3_ENDPOINT")
	cfg.S3AccessKeyID = os.Getenv("S3_ACCESS_KEY_ID")
	cfg.S3SecretAccessKey = os.Getenv("S3_SECRET_ACCESS_KEY")

	if cfg.S3BucketName != "" && !cfg.MediaEnabled() {
		return nil, fmt.Errorf("incomplete S3 configuration: S3_ENDPOINT, S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required when S3_BUCKET_NAME is set")
	}

	return cfg, nil
}

// parseBackendURLs parses "web=https://a.example,mobile=https://b.example"
// into the client type table.
func parseBackendURLs(value string) (map[string]string, error) {
	backends := make(map[string]string)

	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		clientType, baseURL, found := strings.Cut(pair, "=")
		clientType = strings.TrimSpace(strings.ToLower(clientType))
		baseURL = strings.TrimSpace(baseURL)
		if !found || clientType == "" || baseURL == "" {
			return nil, fmt.Errorf("invalid BACKEND_URLS entry %q: expected clientType=baseURL", pair)
		}

		backends[clientType] = baseURL
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("BACKEND_URLS contained no valid entries")
	}

	return backends, nil
}
