package core

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Capability is the access level a route requires.
type Capability struct {
	kind capabilityKind
	role string
}

type capabilityKind int

const (
	capPublic capabilityKind = iota
	capAuthenticated
	capRole
)

func Public() Capability           { return Capability{kind: capPublic} }
func AnyAuthenticated() Capability { return Capability{kind: capAuthenticated} }

func RoleEqualTo(role string) Capability {
	return Capability{kind: capRole, role: role}
}

// Rule pairs a path pattern with the capability it requires.
// A pattern ending in "/*" matches exactly one extra segment
// ("/admin/*" matches "/admin/1" but not "/admin" or "/admin/a/b");
// any other pattern matches exactly. Matching is case-sensitive.
type Rule struct {
	Pattern  string
	Required Capability
}

// Matches reports whether the rule's pattern covers path.
func (r Rule) Matches(path string) bool {
	if prefix, ok := strings.CutSuffix(r.Pattern, "/*"); ok {
		rest, found := strings.CutPrefix(path, prefix+"/")
		return found && rest != "" && !strings.Contains(rest, "/")
	}
	return path == r.Pattern
}

// Denial reasons for authorization.
type DenyReason int

const (
	DenyNone DenyReason = iota
	DenyNotAuthenticated
	DenyInsufficientRole
)

// RuleTable is the ordered authorization rule sequence, fixed at startup.
// Rules are evaluated top to bottom and the first match wins; declaration
// order is part of the contract. Paths no rule matches require any
// authenticated user.
type RuleTable struct {
	rules []Rule
}

func NewRuleTable(rules []Rule) *RuleTable {
	return &RuleTable{rules: rules}
}

// DefaultRuleTable mirrors the stock route surface: landing, login, failure
// and signup pages are public, /admin/* needs ADMIN, /user/* needs USER.
func DefaultRuleTable() *RuleTable {
	return NewRuleTable([]Rule{
		{Pattern: "/auth/login", Required: Public()},
		{Pattern: "/auth/fail", Required: Public()},
		{Pattern: "/user/signup", Required: Public()},
		{Pattern: "/", Required: Public()},
		{Pattern: "/main", Required: Public()},
		{Pattern: "/healthz", Required: Public()},
		{Pattern: "/admin/*", Required: RoleEqualTo("ADMIN")},
		{Pattern: "/user/*", Required: RoleEqualTo("USER")},
	})
}

// Authorize evaluates path against the table for the given user (nil when
// the request carries no live session).
func (t *RuleTable) Authorize(path string, user *User) DenyReason {
	required := AnyAuthenticated()
	for _, r := range t.rules {
		if r.Matches(path) {
			required = r.Required
			break
		}
	}

	switch required.kind {
	case capPublic:
		return DenyNone
	case capAuthenticated:
		if user == nil {
			return DenyNotAuthenticated
		}
		return DenyNone
	default:
		if user == nil {
			return DenyNotAuthenticated
		}
		if !user.HasRole(required.role) {
			return DenyInsufficientRole
		}
		return DenyNone
	}
}

// ruleSpec is the YAML form of a rule:
//
//	rules:
//	  - path: /auth/login
//	    access: public
//	  - path: /admin/*
//	    role: ADMIN
//	  - path: /reports
//	    access: authenticated
type ruleSpec struct {
	Path   string `yaml:"path"`
	Access string `yaml:"access"`
	Role   string `yaml:"role"`
}

type rulesFile struct {
	Rules []ruleSpec `yaml:"rules"`
}

// LoadRuleTable reads an ordered rule table from a YAML file. An empty
// path yields the default table.
func LoadRuleTable(path string) (*RuleTable, error) {
	if path == "" {
		return DefaultRuleTable(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}

	var rf rulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}
	if len(rf.Rules) == 0 {
		return nil, fmt.Errorf("rules file %s declares no rules", path)
	}

	rules := make([]Rule, 0, len(rf.Rules))
	for i, spec := range rf.Rules {
		if spec.Path == "" {
			return nil, fmt.Errorf("rules file %s: rule %d has no path", path, i)
		}
		switch {
		case spec.Role != "":
			rules = append(rules, Rule{Pattern: spec.Path, Required: RoleEqualTo(spec.Role)})
		case strings.EqualFold(spec.Access, "public"):
			rules = append(rules, Rule{Pattern: spec.Path, Required: Public()})
		case strings.EqualFold(spec.Access, "authenticated") || spec.Access == "":
			rules = append(rules, Rule{Pattern: spec.Path, Required: AnyAuthenticated()})
		default:
			return nil, fmt.Errorf("rules file %s: rule %d has unknown access %q", path, i, spec.Access)
		}
	}
	return NewRuleTable(rules), nil
}
