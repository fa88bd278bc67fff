package filter

import (
	"github.com/synctree/rsyncd/internal/logging"
	"github.com/synctree/rsyncd/pkg/flist"
)

// MergeSource loads the contents of a per-directory merge file (spec.md
// 4.4's "dir-merge" directive) by the relative path of the directory it
// lives in. Implementations typically wrap a real filesystem; exists is
// false (with a nil error) when the directory simply has no merge file.
type MergeSource interface {
	ReadMergeFile(relativeDirectory string) (contents []byte, exists bool, err error)
}

// Evaluator implements flist.FilterEvaluator over a base rule set plus,
// optionally, dir-merge rule files discovered while walking. Rules from
// the innermost directory are consulted first, falling back through
// each enclosing directory's dir-merge rules, and finally the base rule
// set supplied at construction — the natural generalization of "more
// specific rules win" to a directory hierarchy.
type Evaluator struct {
	base          *RuleSet
	mergeSource   MergeSource
	mergeFilename string
	logger        *logging.Logger

	stack []*RuleSet
}

var _ flist.FilterEvaluator = (*Evaluator)(nil)

// NewEvaluator constructs an Evaluator. mergeSource may be nil to
// disable dir-merge loading entirely (CLI rules only). An empty
// mergeFilename defaults to DefaultMergeFilename.
func NewEvaluator(base *RuleSet, mergeSource MergeSource, mergeFilename string, logger *logging.Logger) *Evaluator {
	if mergeFilename == "" {
		mergeFilename = DefaultMergeFilename
	}
	return &Evaluator{
		base:          base,
		mergeSource:   mergeSource,
		mergeFilename: mergeFilename,
		logger:        logger,
	}
}

// Evaluate implements flist.FilterEvaluator.
func (e *Evaluator) Evaluate(relativePath string, isDir bool) flist.FilterDecision {
	for i := len(e.stack) - 1; i >= 0; i-- {
		if decision, matched := e.stack[i].decide(relativePath, isDir); matched {
			return decision
		}
	}
	if decision, matched := e.base.decide(relativePath, isDir); matched {
		return decision
	}
	return flist.FilterInclude
}

// EnterDirectory implements flist.FilterEvaluator, loading relativePath's
// dir-merge file (if any) and pushing it onto the rule stack.
func (e *Evaluator) EnterDirectory(relativePath string) {
	rules := &RuleSet{}
	if e.mergeSource != nil {
		contents, exists, err := e.mergeSource.ReadMergeFile(relativePath)
		if err != nil {
			e.logger.Warn(err)
		} else if exists {
			parsed, perr := ParseRuleFile(contents)
			if perr != nil {
				e.logger.Warn(perr)
			} else {
				rules = parsed
			}
		}
	}
	e.stack = append(e.stack, rules)
}

// ExitDirectory implements flist.FilterEvaluator, popping the rule set
// EnterDirectory pushed for relativePath.
func (e *Evaluator) ExitDirectory(string) {
	if len(e.stack) > 0 {
		e.stack = e.stack[:len(e.stack)-1]
	}
}
