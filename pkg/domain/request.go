package domain

import (
	"net/url"
	"path/filepath"
	"strings"
)

// Request describes an effect the engine asks the host to perform.
// Implementations are NetworkRequest, FileReadRequest and FileWriteRequest.
type Request interface {
	Kind() OperationKind
	// Validate checks the request is fully populated. It never touches the network or disk.
	Validate() error
}

// Header is a single header field. Headers keep insertion order.
type Header struct {
	Name  string `json:"name" yaml:"name" mapstructure:"name"`
	Value string `json:"value" yaml:"value" mapstructure:"value"`
}

// Headers is an ordered header mapping. Lookups are case-insensitive, as in HTTP.
type Headers []Header

// Get returns the first value stored under name.
func (h Headers) Get(name string) (string, bool) {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// Set replaces every value stored under name, keeping the position of the first one.
func (h Headers) Set(name, value string) Headers {
	out := make(Headers, 0, len(h)+1)
	replaced := false
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			if !replaced {
				out = append(out, Header{Name: f.Name, Value: value})
				replaced = true
			}
			continue
		}
		out = append(out, f)
	}
	if !replaced {
		out = append(out, Header{Name: name, Value: value})
	}
	return out
}

// Add appends a value without touching existing ones.
func (h Headers) Add(name, value string) Headers {
	return append(h, Header{Name: name, Value: value})
}

// Len returns the number of fields, counting repeated names.
func (h Headers) Len() int { return len(h) }

// Clone returns an independent copy.
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	return append(Headers(nil), h...)
}

// NetworkRequest asks the host to perform an HTTP request.
type NetworkRequest struct {
	Method  string  `json:"method" yaml:"method" mapstructure:"method"`
	URL     string  `json:"url" yaml:"url" mapstructure:"url"`
	Headers Headers `json:"headers,omitempty" yaml:"headers,omitempty" mapstructure:"headers"`
	Body    []byte  `json:"body,omitempty" yaml:"body,omitempty" mapstructure:"body"`
}

func (NetworkRequest) Kind() OperationKind { return KindNetwork }

// Validate rejects an empty method and any URL that is not absolute with a scheme and host.
// A bad URL is reported as a NetworkError with code NetworkErrInvalidURL.
func (r NetworkRequest) Validate() error {
	if strings.TrimSpace(r.Method) == "" {
		return &RequestError{Kind: KindNetwork, Field: KeyMethod, Reason: "must not be empty"}
	}
	if err := ValidateURL(r.URL); err != nil {
		return err
	}
	return nil
}

// ValidateURL checks that raw parses as an absolute URL.
func ValidateURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return &NetworkError{Code: NetworkErrInvalidURL, URL: raw, Underlying: err.Error()}
	}
	if u.Scheme == "" || u.Host == "" {
		return &NetworkError{Code: NetworkErrInvalidURL, URL: raw, Underlying: "missing scheme or host"}
	}
	return nil
}

// FileReadRequest asks the host to read a whole file.
type FileReadRequest struct {
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

func (FileReadRequest) Kind() OperationKind { return KindFileRead }

func (r FileReadRequest) Validate() error {
	return validatePath(KindFileRead, r.Path)
}

// FileWriteRequest asks the host to write Contents to Path, honouring Strategy when the
// target already exists.
type FileWriteRequest struct {
	Path     string         `json:"path" yaml:"path" mapstructure:"path"`
	Contents []byte         `json:"contents" yaml:"contents" mapstructure:"contents"`
	Strategy ExistsStrategy `json:"strategy" yaml:"strategy" mapstructure:"strategy"`
}

func (FileWriteRequest) Kind() OperationKind { return KindFileWrite }

func (r FileWriteRequest) Validate() error {
	if err := validatePath(KindFileWrite, r.Path); err != nil {
		return err
	}
	if !r.Strategy.Valid() {
		return &RequestError{Kind: KindFileWrite, Field: KeyStrategy, Reason: "unknown exists strategy"}
	}
	return nil
}

// validatePath accepts OS absolute paths and slash-rooted keys (used by key/value hosts).
func validatePath(kind OperationKind, path string) error {
	if path == "" {
		return &RequestError{Kind: kind, Field: KeyPath, Reason: "must not be empty"}
	}
	if !filepath.IsAbs(path) && !strings.HasPrefix(path, "/") {
		return &RequestError{Kind: kind, Field: KeyPath, Reason: "must be absolute"}
	}
	return nil
}
