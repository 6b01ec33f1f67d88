package entity

import (
	"sort"
	"strings"

	"github.com/astrodock/fuel-exports-tracker/constants"
)

// ServiceSet is an unordered set of dockside service identifiers. The
// comma-delimited text form exists only at the storage edge; everywhere else
// services are normalized tokens (trimmed, lowercased, deduplicated).
type ServiceSet []string

// ParseServiceSet converts the delimited storage form into a normalized set.
// Unknown tokens are kept (the generator occasionally ships services ahead of
// this taxonomy); empty tokens are dropped.
func ParseServiceSet(raw string) ServiceSet {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var out ServiceSet
	for _, tok := range strings.Split(raw, ",") {
		svc, _ := constants.CanonicalizeService(tok)
		if svc == "" {
			continue
		}
		if _, dup := seen[string(svc)]; dup {
			continue
		}
		seen[string(svc)] = struct{}{}
		out = append(out, string(svc))
	}
	sort.Strings(out)
	return out
}

// NewServiceSet normalizes a slice of raw tokens into a set.
func NewServiceSet(tokens []string) ServiceSet {
	return ParseServiceSet(strings.Join(tokens, ","))
}

// String renders the delimited storage form. Order is sorted so the same set
// always serializes identically.
func (s ServiceSet) String() string {
	return strings.Join(s, ",")
}

// Contains reports whether the set includes the given service.
func (s ServiceSet) Contains(svc constants.Service) bool {
	for _, v := range s {
		if v == string(svc) {
			return true
		}
	}
	return false
}
