package auth

import (
	"net/http"
	"strings"
)

// Rule requires Role for requests under Prefix. An empty Methods matches
// every method.
type Rule struct {
	Prefix  string
	Methods []string
	Role    Role
}

func (r Rule) matches(req *http.Request) bool {
	if !strings.HasPrefix(req.URL.Path, r.Prefix) {
		return false
	}
	if len(r.Methods) == 0 {
		return true
	}
	for _, method := range r.Methods {
		if req.Method == method {
			return true
		}
	}
	return false
}

// DefaultRules lets viewers read the API and operators change the line.
var DefaultRules = []Rule{
	{Prefix: "/api/v1/scenarios/", Methods: []string{http.MethodPost}, Role: RoleOperator},
	{Prefix: "/api/v1/tags/", Methods: []string{http.MethodPut}, Role: RoleOperator},
	{Prefix: "/api/", Methods: []string{http.MethodGet, http.MethodHead, http.MethodOptions}, Role: RoleViewer},
	{Prefix: "/api/", Role: RoleOperator},
}

// Policy maps requests to required roles. The first matching rule wins;
// requests no rule matches pass without a token.
type Policy struct {
	exemptPaths    map[string]struct{}
	exemptPrefixes []string
	rules          []Rule
}

// NewDefaultPolicy builds a policy over DefaultRules with exemptions.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	return NewPolicy(DefaultRules, exemptPaths, exemptPrefixes)
}

// NewPolicy builds a policy over rules with exemptions.
func NewPolicy(rules []Rule, exemptPaths []string, exemptPrefixes []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{
		exemptPaths:    set,
		exemptPrefixes: append([]string(nil), exemptPrefixes...),
		rules:          append([]Rule(nil), rules...),
	}
}

// IsExempt returns true when a request should skip auth/RBAC.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	if _, ok := p.exemptPaths[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range p.exemptPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// RequiredRole resolves the role a request needs.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	if r == nil {
		return "", false
	}
	for _, rule := range p.rules {
		if rule.matches(r) {
			return rule.Role, true
		}
	}
	return "", false
}
