package types

import "log/slog"

// redactedPlaceholder replaces secret values in logs and serialized output.
const redactedPlaceholder = "***REDACTED***"

// SecretString holds a sensitive value (database URL, credentials) and hides it
// from fmt, encoding/json, and slog output. Call Unmask only where the plaintext
// is actually consumed, such as when handing the DSN to the pgx pool.
type SecretString string

// String implements fmt.Stringer.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// GoString implements fmt.GoStringer so %#v is redacted as well.
func (s SecretString) GoString() string {
	return redactedPlaceholder
}

// MarshalJSON implements json.Marshaler.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redactedPlaceholder + `"`), nil
}

// LogValue implements slog.LogValuer.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(redactedPlaceholder)
}

// Unmask returns the raw plaintext value.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsZero reports whether the secret is unset.
func (s SecretString) IsZero() bool {
	return s == ""
}
