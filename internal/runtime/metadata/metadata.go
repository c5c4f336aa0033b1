package metadata

import (
	"net/http"
	"net/textproto"
)

// Metadata holds the headers carried alongside an invocation. Keys are stored
// in canonical MIME form so lookups match regardless of the sender's casing.
type Metadata map[string]string

// FromHTTPHeader flattens an HTTP header into Metadata, keeping the first
// value of every key.
func FromHTTPHeader(header http.Header) Metadata {
	md := make(Metadata, len(header))
	for key, values := range header {
		if len(values) == 0 {
			continue
		}
		md[textproto.CanonicalMIMEHeaderKey(key)] = values[0]
	}
	return md
}

// Get returns the value stored under key, matching case-insensitively.
func (m Metadata) Get(key string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return m[textproto.CanonicalMIMEHeaderKey(key)]
}

// Clone returns a shallow copy of the metadata map.
func (m Metadata) Clone() Metadata {
	cloned := make(Metadata, len(m))
	for k, v := range m {
		cloned[k] = v
	}
	return cloned
}

// With returns a cloned metadata map containing the provided key/value pair.
// Empty values are skipped.
func (m Metadata) With(key, value string) Metadata {
	cloned := m.Clone()
	if value != "" {
		cloned[textproto.CanonicalMIMEHeaderKey(key)] = value
	}
	return cloned
}

// New constructs a Metadata map from alternating key/value pairs.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i < len(pairs)-1; i += 2 {
		md[textproto.CanonicalMIMEHeaderKey(pairs[i])] = pairs[i+1]
	}
	return md
}
