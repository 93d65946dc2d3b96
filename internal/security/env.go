package security

import (
	"os"
	"strings"
)

// sensitiveEnvPrefixes are environment variable prefixes that are stripped
// from child process environments.
var sensitiveEnvPrefixes = []string{
	"GEMINI_",
	"GOOGLE_API_KEY",
	"GOOGLE_APPLICATION_CREDENTIALS",
	"OPENAI_",
	"ANTHROPIC_",
	"OPENROUTER_",
	"TELEGRAM_",
	"MAJLIS_",
	"AWS_SECRET",
	"AWS_SESSION_TOKEN",
	"GITHUB_TOKEN",
	"GH_TOKEN",
}

// sensitiveEnvExact are environment variable names that are stripped exactly.
var sensitiveEnvExact = map[string]struct{}{
	"DATABASE_URL": {},
	"DB_PASSWORD":  {},
}

// SanitizedEnv returns a copy of os.Environ() without sensitive variables.
// Any of secrets (of at least 8 bytes) appearing in a remaining value is
// replaced by RedactPlaceholder.
func SanitizedEnv(secrets ...string) []string {
	env := os.Environ()
	result := make([]string, 0, len(env))

	for _, entry := range env {
		key, _, ok := strings.Cut(entry, "=")
		if !ok || isSensitiveEnvVar(key) {
			continue
		}

		sanitized := entry
		for _, secret := range secrets {
			if len(secret) >= 8 && strings.Contains(sanitized, secret) {
				sanitized = strings.ReplaceAll(sanitized, secret, RedactPlaceholder)
			}
		}
		result = append(result, sanitized)
	}
	return result
}

func isSensitiveEnvVar(name string) bool {
	upper := strings.ToUpper(name)
	if _, ok := sensitiveEnvExact[upper]; ok {
		return true
	}
	for _, prefix := range sensitiveEnvPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}
