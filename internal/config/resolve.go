package config

import (
	"errors"
	"fmt"
	"os"
)

// ErrMissingCredential is wrapped by every MissingFieldError.
var ErrMissingCredential = errors.New("missing credential")

// MissingFieldError reports a credential that was neither passed
// explicitly nor found in the environment.
type MissingFieldError struct {
	Field  string
	EnvVar string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s is required (pass it explicitly or set %s)", e.Field, e.EnvVar)
}

func (e *MissingFieldError) Unwrap() error {
	return ErrMissingCredential
}

// LookupFunc looks up a named variable. It has the shape of os.LookupEnv.
type LookupFunc func(name string) (string, bool)

// OSLookup reads the process environment.
func OSLookup(name string) (string, bool) {
	return os.LookupEnv(name)
}

// MapLookup returns a LookupFunc backed by m.
func MapLookup(m map[string]string) LookupFunc {
	return func(name string) (string, bool) {
		v, ok := m[name]
		return v, ok
	}
}

// Resolve returns explicit when it is non-empty, otherwise the value of
// envVar. An empty environment value counts as unset.
func Resolve(field, explicit, envVar string, lookup LookupFunc) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if lookup == nil {
		lookup = OSLookup
	}
	if v, ok := lookup(envVar); ok && v != "" {
		return v, nil
	}
	return "", &MissingFieldError{Field: field, EnvVar: envVar}
}
