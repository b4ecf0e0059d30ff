package logger

import (
	"fmt"
	"log/slog"
	"strings"
)

// Key patterns whose string values are never logged.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"token",
	"credential",
	"auth",
}

// Keys whose values are raw state bytes. They are logged as a length only.
var payloadKeys = []string{
	"payload",
	"state",
	"record",
}

const redactedValue = "***REDACTED***"

func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		if IsSensitiveKey(a.Key) && a.Value.String() != "" {
			return slog.String(a.Key, redactedValue)
		}

	case slog.KindAny:
		if b, ok := a.Value.Any().([]byte); ok && isPayloadKey(a.Key) {
			return slog.String(a.Key, SummarizeBytes(b))
		}

	case slog.KindGroup:
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	return a
}

// SummarizeBytes renders b as its length and leading bytes.
func SummarizeBytes(b []byte) string {
	const head = 8
	if len(b) <= head {
		return fmt.Sprintf("<%d bytes %x>", len(b), b)
	}
	return fmt.Sprintf("<%d bytes %x...>", len(b), b[:head])
}

// IsSensitiveKey checks if a key name suggests secret content.
func IsSensitiveKey(key string) bool {
	return containsAny(strings.ToLower(key), sensitiveKeyPatterns)
}

func isPayloadKey(key string) bool {
	return containsAny(strings.ToLower(key), payloadKeys)
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
