package core

import "log/slog"

const redacted = "[REDACTED]"

// Secret is a credential that never prints its value. fmt, encoding/json,
// encoding/text and log/slog all render it as [REDACTED].
//
//	key := core.Secret("sk-abc123")
//	slog.Info("backend", "api_key", key) // api_key=[REDACTED]
//	key.Expose()                         // "sk-abc123"
type Secret string

// String implements fmt.Stringer.
func (s Secret) String() string { return redacted }

// GoString implements fmt.GoStringer.
func (s Secret) GoString() string { return "core.Secret(" + redacted + ")" }

// MarshalText implements encoding.TextMarshaler, which JSON and YAML encoders use.
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// LogValue implements slog.LogValuer.
func (s Secret) LogValue() slog.Value { return slog.StringValue(redacted) }

// Expose returns the value. Only pass it to the transport that needs it.
func (s Secret) Expose() string { return string(s) }

// IsEmpty reports whether no credential is set.
func (s Secret) IsEmpty() bool { return s == "" }
