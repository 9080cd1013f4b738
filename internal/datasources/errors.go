package datasources

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned by build-tag stubbed sources whose backing
// library was not compiled in.
var ErrUnsupported = errors.New("datasources: source not supported in this build")

// RequestError reports a non-success HTTP response from a remote source.
// It fails that source's resolution and rejects the whole requester result.
type RequestError struct {
	Namespace string
	URL       string
	Status    int
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request for %q failed: %s returned status %d", e.Namespace, e.URL, e.Status)
}

// ParseError reports a field expected by a field spec that was absent from
// a parsed response.
type ParseError struct {
	Namespace string
	Field     string
	OutName   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse of %q response: field %q (requested as %q) not present", e.Namespace, e.Field, e.OutName)
}

// ConfigurationError reports an unknown source type, namespace or other
// setup mistake. It is fatal: callers abort initialization on it.
type ConfigurationError struct {
	Detail string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Detail
}
