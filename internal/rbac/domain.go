package rbac

import (
	"fmt"
	"sort"
	"strings"

	"github.com/metrik/metrik/internal/shared"
)

// RoleOwner bypasses permission checks for its business.
const RoleOwner = "owner"

// Common actions used across modules.
const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionEdit   = "edit"
	ActionDelete = "delete"
	ActionCancel = "cancel"
)

// Permission is one capability: an action on a module.
type Permission struct {
	Module string
	Action string
}

// String renders the permission as "module:action".
func (p Permission) String() string {
	return p.Module + ":" + p.Action
}

// ErrInvalidPermission indicates a string that is not "module:action".
var ErrInvalidPermission = fmt.Errorf("%w: rbac: permission must be module:action", shared.ErrBadRequest)

// ParsePermission parses "module:action". Both halves are lower-cased and
// trimmed; either may be "*" to match everything.
func ParsePermission(raw string) (Permission, error) {
	module, action, ok := strings.Cut(strings.ToLower(strings.TrimSpace(raw)), ":")
	module = strings.TrimSpace(module)
	action = strings.TrimSpace(action)
	if !ok || module == "" || action == "" || strings.Contains(action, ":") {
		return Permission{}, ErrInvalidPermission
	}
	return Permission{Module: module, Action: action}, nil
}

// Set is an unordered collection of permissions.
type Set map[Permission]struct{}

// NewSet parses raw permission strings, skipping malformed entries.
func NewSet(raw ...string) Set {
	set := make(Set, len(raw))
	for _, r := range raw {
		p, err := ParsePermission(r)
		if err != nil {
			continue
		}
		set[p] = struct{}{}
	}
	return set
}

// Has reports whether the set grants p, honouring "*" wildcards.
func (s Set) Has(p Permission) bool {
	for _, candidate := range []Permission{
		p,
		{Module: p.Module, Action: "*"},
		{Module: "*", Action: p.Action},
		{Module: "*", Action: "*"},
	} {
		if _, ok := s[candidate]; ok {
			return true
		}
	}
	return false
}

// Strings returns the sorted string form of the set.
func (s Set) Strings() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p.String())
	}
	sort.Strings(out)
	return out
}

// Allowed evaluates whether role holding set may perform action on module.
func Allowed(role string, set Set, module, action string) bool {
	if strings.EqualFold(strings.TrimSpace(role), RoleOwner) {
		return true
	}
	p := Permission{Module: strings.ToLower(strings.TrimSpace(module)), Action: strings.ToLower(strings.TrimSpace(action))}
	if p.Module == "" || p.Action == "" {
		return false
	}
	return set.Has(p)
}
