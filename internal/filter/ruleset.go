package filter

import (
	"strings"

	"github.com/synctree/rsyncd/pkg/flist"
)

// RuleSet is an ordered list of filter rules evaluated first-match-wins:
// the first rule whose pattern matches a candidate path decides its
// fate, with no later rule able to override that decision (spec.md 4.4
// names this collaborator without specifying the algebra in detail; this
// follows upstream rsync's own documented first-match-wins rule order,
// rather than the teacher's last-match-with-negation gitignore style).
type RuleSet struct {
	rules []Rule
}

// NewRuleSet parses lines (as from a filter file or a --filter/--include/
// --exclude option list) into a RuleSet, skipping blank lines and
// comments.
func NewRuleSet(lines []string) (*RuleSet, error) {
	rs := &RuleSet{}
	for _, line := range lines {
		rule, ok, err := ParseRule(line)
		if err != nil {
			return nil, err
		}
		if ok {
			rs.rules = append(rs.rules, rule)
		}
	}
	return rs, nil
}

// ParseRuleFile splits a merge-file's raw contents into lines and builds
// a RuleSet from them.
func ParseRuleFile(contents []byte) (*RuleSet, error) {
	return NewRuleSet(strings.Split(string(contents), "\n"))
}

// decide reports the first matching rule's verdict, and whether any rule
// matched at all (an empty RuleSet, or one where nothing matched, always
// reports matched=false so a caller can fall through to the next, less
// specific RuleSet in its stack).
func (rs *RuleSet) decide(relativePath string, isDir bool) (flist.FilterDecision, bool) {
	if rs == nil {
		return flist.FilterInclude, false
	}
	for _, rule := range rs.rules {
		if rule.matches(relativePath, isDir) {
			if rule.Verb == VerbInclude {
				return flist.FilterInclude, true
			}
			return flist.FilterExclude, true
		}
	}
	return flist.FilterInclude, false
}

// Empty reports whether the rule set carries no rules.
func (rs *RuleSet) Empty() bool {
	return rs == nil || len(rs.rules) == 0
}
