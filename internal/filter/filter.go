// Package filter matches namespace/pod/container names against the regex
// sets given on the command line.
package filter

import (
	"fmt"
	"regexp"
)

// Selector holds the compiled regex sets for the three name categories.
// Categories combine with AND; expressions within a category combine with
// OR. An empty category matches everything.
type Selector struct {
	namespaces []*regexp.Regexp
	pods       []*regexp.Regexp
	containers []*regexp.Regexp
}

// NewSelector compiles the given expression sets. A compile failure names
// the offending category and expression so the user can fix the flag.
func NewSelector(namespaces, pods, containers []string) (*Selector, error) {
	ns, err := compileAll("namespace", namespaces)
	if err != nil {
		return nil, err
	}

	ps, err := compileAll("pod", pods)
	if err != nil {
		return nil, err
	}

	cs, err := compileAll("container", containers)
	if err != nil {
		return nil, err
	}

	return &Selector{namespaces: ns, pods: ps, containers: cs}, nil
}

func compileAll(category string, exprs []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid %s regex %q: %w", category, expr, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// Matches reports whether the triple satisfies every non-empty category.
func (s *Selector) Matches(namespace, pod, container string) bool {
	return matchAny(s.namespaces, namespace) &&
		matchAny(s.pods, pod) &&
		matchAny(s.containers, container)
}

// MatchesNamespace checks only the namespace category. Discovery uses it to
// skip listing pods in namespaces that can never match.
func (s *Selector) MatchesNamespace(namespace string) bool {
	return matchAny(s.namespaces, namespace)
}

// HasNamespaceFilters reports whether any namespace expressions were given.
func (s *Selector) HasNamespaceFilters() bool {
	return len(s.namespaces) > 0
}

func matchAny(set []*regexp.Regexp, name string) bool {
	if len(set) == 0 {
		return true
	}
	for _, re := range set {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}
