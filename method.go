package vovk

import "strings"

// HTTPMethod is one of the seven verbs a route decorator can claim.
type HTTPMethod string

const (
	GET     HTTPMethod = "GET"
	POST    HTTPMethod = "POST"
	PUT     HTTPMethod = "PUT"
	PATCH   HTTPMethod = "PATCH"
	DELETE  HTTPMethod = "DELETE"
	HEAD    HTTPMethod = "HEAD"
	OPTIONS HTTPMethod = "OPTIONS"
)

// Methods lists every supported verb in a stable order.
var Methods = []HTTPMethod{GET, POST, PUT, PATCH, DELETE, HEAD, OPTIONS}

// Valid reports whether m is a supported verb.
func (m HTTPMethod) Valid() bool {
	switch m {
	case GET, POST, PUT, PATCH, DELETE, HEAD, OPTIONS:
		return true
	}
	return false
}

// decoratorName is the name users write for the verb's route decorator.
func (m HTTPMethod) decoratorName() string {
	if m == DELETE {
		return "del"
	}
	return strings.ToLower(string(m))
}

// trimPath strips surrounding whitespace and one leading and trailing slash.
func trimPath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "/")
	return strings.TrimSuffix(path, "/")
}

// joinPath joins a controller prefix and a handler path.
func joinPath(prefix, path string) string {
	switch {
	case prefix == "":
		return path
	case path == "":
		return prefix
	}
	return prefix + "/" + path
}

// kebabCase inserts a hyphen before every upper-case letter and lowercases
// the result, so "UserController" becomes "user-controller".
func kebabCase(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
