package models

import "strings"

// Identity is a self-asserted display name whose ticket verified.
// A nil *Identity means the request is anonymous.
type Identity struct {
	Name string `json:"name"`
}

// NormalizeName trims surrounding whitespace from a submitted display name.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}
