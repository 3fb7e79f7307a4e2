package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	appEnvVar              = "APP_ENV"
	environmentDevelopment = "development"
	environmentProduction  = "production"
	environmentStaging     = "staging"
)

const (
	EnvironmentDevelopment = environmentDevelopment
	EnvironmentProduction  = environmentProduction
	EnvironmentStaging     = environmentStaging
)

var environmentAliases = map[string]string{
	"prod":  environmentProduction,
	"live":  environmentProduction,
	"stag":  environmentStaging,
	"dev":   environmentDevelopment,
	"local": environmentDevelopment,
}

// getAppEnvironment reads the application environment from APP_ENV and
// defaults to development when no value is provided.
func getAppEnvironment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv(appEnvVar)))
	if env == "" {
		return environmentDevelopment
	}
	if canonical, ok := environmentAliases[env]; ok {
		return canonical
	}
	return env
}

// AppEnvironment exposes the normalised APP_ENV value.
func AppEnvironment() string {
	return getAppEnvironment()
}

// IsProductionLike reports whether the provided environment should behave like
// a production deployment.
func IsProductionLike(env string) bool {
	switch env {
	case environmentProduction, environmentStaging:
		return true
	default:
		return false
	}
}

// DefaultMode picks the venue mode used when the configuration leaves
// gateway.mode empty. Only production trades against live endpoints.
func DefaultMode() string {
	if getAppEnvironment() == environmentProduction {
		return ModeLive
	}
	return ModeTest
}

// ResolveConfigPath swaps the default config path for an environment specific
// sibling (config.production.yml next to config.yml) when one exists.
func ResolveConfigPath(path, defaultPath string) string {
	if path == "" {
		path = defaultPath
	}
	if path != defaultPath {
		return path
	}

	ext := filepath.Ext(defaultPath)
	base := strings.TrimSuffix(defaultPath, ext)
	candidate := fmt.Sprintf("%s.%s%s", base, getAppEnvironment(), ext)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return path
}
