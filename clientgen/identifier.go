package clientgen

import (
	"errors"
	"fmt"
	"unicode"
)

// ErrInvalidIdentifier is returned when a controller or worker name cannot be
// used as an export name in the generated modules.
var ErrInvalidIdentifier = errors.New("clientgen: invalid identifier")

// Reserved words of ECMAScript and TypeScript declarations.
var reservedWords = map[string]bool{
	"await":      true,
	"break":      true,
	"case":       true,
	"catch":      true,
	"class":      true,
	"const":      true,
	"continue":   true,
	"debugger":   true,
	"default":    true,
	"delete":     true,
	"do":         true,
	"else":       true,
	"enum":       true,
	"export":     true,
	"extends":    true,
	"false":      true,
	"finally":    true,
	"for":        true,
	"function":   true,
	"if":         true,
	"implements": true,
	"import":     true,
	"in":         true,
	"instanceof": true,
	"interface":  true,
	"let":        true,
	"new":        true,
	"null":       true,
	"package":    true,
	"private":    true,
	"protected":  true,
	"public":     true,
	"return":     true,
	"static":     true,
	"super":      true,
	"switch":     true,
	"this":       true,
	"throw":      true,
	"true":       true,
	"try":        true,
	"type":       true,
	"typeof":     true,
	"var":        true,
	"void":       true,
	"while":      true,
	"with":       true,
	"yield":      true,
}

// Names the generated modules declare themselves.
var generatedNames = map[string]bool{
	"clientizeController": true,
	"promisifyWorker":     true,
	"VovkClientFetcher":   true,
	"Controllers":         true,
	"Workers":             true,
	"Options":             true,
	"schema":              true,
	"fetcher":             true,
	"streamFetcher":       true,
	"validateOnClient":    true,
	"prefix":              true,
}

// checkIdentifier reports whether name can be exported as-is.
// Names are never rewritten: the export must match the server-side name.
func checkIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidIdentifier)
	}
	for i, r := range name {
		if i == 0 && unicode.IsDigit(r) {
			return fmt.Errorf("%w: %q starts with a digit", ErrInvalidIdentifier, name)
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '$' {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidIdentifier, name, r)
		}
	}
	if reservedWords[name] {
		return fmt.Errorf("%w: %q is a reserved word", ErrInvalidIdentifier, name)
	}
	if generatedNames[name] {
		return fmt.Errorf("%w: %q collides with a generated binding", ErrInvalidIdentifier, name)
	}
	return nil
}
