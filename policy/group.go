// Package policy assigns per-namespace settings by matching namespace names
// against groups of exact, prefix and regex rules.
package policy

import (
	"regexp"
	"strings"
	"time"

	"github.com/Keksclan/goRawrStash/ratelimit"
)

// Policy holds the settings applied to every namespace of a group.
type Policy struct {
	// RateLimit limits lookup calls of each matched namespace separately.
	// Nil leaves the server-wide fallback in place.
	RateLimit *ratelimit.Rule
	// CreatorTimeout bounds each creator call. Zero means no bound.
	CreatorTimeout time.Duration
}

type matchKind int

const (
	kindExact matchKind = iota
	kindPrefix
	kindRegex
)

type rule struct {
	kind    matchKind
	pattern string
	re      *regexp.Regexp
}

// match reports whether namespace matches r and the length of the matched
// portion.
func (r *rule) match(namespace string) (bool, int) {
	switch r.kind {
	case kindExact:
		if namespace == r.pattern {
			return true, len(r.pattern)
		}
	case kindPrefix:
		if strings.HasPrefix(namespace, r.pattern) {
			return true, len(r.pattern)
		}
	case kindRegex:
		if loc := r.re.FindStringIndex(namespace); loc != nil {
			return true, loc[1] - loc[0]
		}
	}
	return false, 0
}

// GroupBuilder collects the rules and the policy of one group.
type GroupBuilder struct {
	name   string
	rules  []rule
	policy Policy
}

// Group starts a group called name.
func Group(name string) *GroupBuilder {
	return &GroupBuilder{name: name}
}

// Exact matches the namespace named pattern.
func (g *GroupBuilder) Exact(pattern string) *GroupBuilder {
	g.rules = append(g.rules, rule{kind: kindExact, pattern: pattern})
	return g
}

// Prefix matches every namespace starting with pattern.
func (g *GroupBuilder) Prefix(pattern string) *GroupBuilder {
	g.rules = append(g.rules, rule{kind: kindPrefix, pattern: pattern})
	return g
}

// Regex matches namespaces containing a match of pattern. An invalid pattern
// panics.
func (g *GroupBuilder) Regex(pattern string) *GroupBuilder {
	g.rules = append(g.rules, rule{kind: kindRegex, pattern: pattern, re: regexp.MustCompile(pattern)})
	return g
}

// Policy sets the group's policy.
func (g *GroupBuilder) Policy(p Policy) *GroupBuilder {
	g.policy = p
	return g
}
