// Package filter implements the external filter evaluator pkg/flist.Walk
// consults during a directory walk: rsync's own include/exclude rule
// algebra (not shell globbing against the full path, and not a
// gitignore-style accumulation), plus dir-merge loading of per-directory
// ".rsync-filter" files.
package filter

import (
	"strings"

	"github.com/pkg/errors"
)

// Verb is a rule's action when it matches a candidate path.
type Verb int

const (
	// VerbInclude admits a matching path, halting further rule
	// evaluation for it.
	VerbInclude Verb = iota
	// VerbExclude rejects a matching path, halting further rule
	// evaluation for it.
	VerbExclude
)

// DefaultMergeFilename is the per-directory filter file dir-merge rules
// load, matching upstream rsync's default (spec.md 4.4).
const DefaultMergeFilename = ".rsync-filter"

// Rule is one parsed filter directive. Unlike a shell glob matched
// against an entire relative path, an unanchored pattern containing no
// slash is matched only against a candidate's final path component
// (rsync's documented behavior for bare patterns), while an anchored
// pattern, or one containing an internal slash, is matched against the
// full path relative to the transfer root. This holds for rules loaded
// from a dir-merge file too: their patterns are not rebased onto the
// directory that holds the merge file.
type Rule struct {
	Verb     Verb
	Pattern  string
	Anchored bool
	DirOnly  bool
}

// ParseRule parses one line of filter-file syntax: "+ pattern" or
// "- pattern" (and the compact "+pattern"/"-pattern" forms), a leading
// "/" anchoring the pattern to the transfer root, and a trailing "/"
// restricting the rule to directories. Blank lines and "#"-prefixed
// comments parse as (zero value, false, nil) so callers can skip them.
func ParseRule(line string) (Rule, bool, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Rule{}, false, nil
	}

	var verb Verb
	var rest string
	switch {
	case strings.HasPrefix(line, "+ "):
		verb, rest = VerbInclude, line[2:]
	case strings.HasPrefix(line, "- "):
		verb, rest = VerbExclude, line[2:]
	case strings.HasPrefix(line, "+") && len(line) > 1:
		verb, rest = VerbInclude, line[1:]
	case strings.HasPrefix(line, "-") && len(line) > 1:
		verb, rest = VerbExclude, line[1:]
	default:
		return Rule{}, false, errors.Errorf("filter rule missing +/- verb: %q", line)
	}

	rest = strings.TrimSpace(rest)
	anchored := strings.HasPrefix(rest, "/")
	if anchored {
		rest = rest[1:]
	}
	dirOnly := strings.HasSuffix(rest, "/")
	if dirOnly {
		rest = rest[:len(rest)-1]
	}
	if rest == "" {
		return Rule{}, false, errors.Errorf("filter rule has an empty pattern: %q", line)
	}

	return Rule{Verb: verb, Pattern: rest, Anchored: anchored, DirOnly: dirOnly}, true, nil
}

// matches reports whether the rule applies to relativePath, honoring
// DirOnly and the anchored-vs-basename matching rule described on Rule.
func (r Rule) matches(relativePath string, isDir bool) bool {
	if r.DirOnly && !isDir {
		return false
	}
	if r.Anchored || strings.Contains(r.Pattern, "/") {
		return Match(r.Pattern, relativePath)
	}
	return Match(r.Pattern, basename(relativePath))
}

func basename(relativePath string) string {
	if idx := strings.LastIndexByte(relativePath, '/'); idx >= 0 {
		return relativePath[idx+1:]
	}
	return relativePath
}
