// Package classifier decides whether a shell command line may run without
// human approval. Every path that cannot prove a command read-only asks for
// acceptance.
package classifier

import (
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/toolgate/domain/command"
	"github.com/felixgeelhaar/toolgate/domain/tool"
	"github.com/felixgeelhaar/toolgate/infrastructure/logging"
	"github.com/felixgeelhaar/toolgate/infrastructure/security/pathsafe"
)

// Classifier maps command lines to acceptance verdicts.
// It is immutable after construction and safe for concurrent use.
type Classifier struct {
	categories map[string]command.Category
	sanitizer  *pathsafe.Sanitizer
	confine    bool
	workDir    string
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithCategory assigns a risk category to a command name, overriding the
// built-in table.
func WithCategory(name string, category command.Category) Option {
	return func(c *Classifier) {
		c.categories[name] = category
	}
}

// WithWorkspaceRoots confines path arguments of read-only commands to the
// given roots. Paths outside every root require acceptance.
func WithWorkspaceRoots(roots ...string) Option {
	return func(c *Classifier) {
		c.sanitizer = pathsafe.New(pathsafe.WithRoots(roots...))
		c.confine = len(c.sanitizer.Roots()) > 0
	}
}

// WithSanitizer confines path arguments using s.
func WithSanitizer(s *pathsafe.Sanitizer) Option {
	return func(c *Classifier) {
		c.sanitizer = s
		c.confine = s != nil && len(s.Roots()) > 0
	}
}

// WithWorkingDir sets the directory relative paths are resolved against.
func WithWorkingDir(dir string) Option {
	return func(c *Classifier) {
		c.workDir = dir
	}
}

// New creates a Classifier with the built-in risk table.
func New(opts ...Option) *Classifier {
	c := &Classifier{categories: DefaultCategories()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Analysis is the full result of classifying a command line.
type Analysis struct {
	Pipeline   command.Pipeline
	Categories []command.Category
	Validation command.Validation
	Err        error
}

// Classify returns the verdict for raw. It never panics and never fails
// open: any internal error yields {RequiresAcceptance: true}.
func (c *Classifier) Classify(raw string) command.Validation {
	return c.Analyze(raw).Validation
}

// Analyze classifies raw and reports how the verdict was reached.
func (c *Classifier) Analyze(raw string) (a Analysis) {
	defer func() {
		if r := recover(); r != nil {
			a = Analysis{
				Validation: command.RequireAcceptance(""),
				Err:        fmt.Errorf("%w: panic: %v", tool.ErrClassification, r),
			}
			logging.Warn().
				Add(logging.Component("classifier")).
				Add(logging.Command(raw)).
				Add(logging.ErrorField(a.Err)).
				Msg("classification failed, requiring acceptance")
		}
	}()

	pipeline, err := Parse(raw)
	if err != nil {
		a.Err = fmt.Errorf("%w: %w", tool.ErrClassification, err)
		a.Validation = command.RequireAcceptance("")
		if !errors.Is(err, command.ErrEmpty) {
			logging.Warn().
				Add(logging.Component("classifier")).
				Add(logging.Command(raw)).
				Add(logging.ErrorField(err)).
				Msg("command could not be parsed, requiring acceptance")
		}
		return a
	}

	a.Pipeline = pipeline
	a.Categories = make([]command.Category, len(pipeline.Segments))
	for i, seg := range pipeline.Segments {
		a.Categories[i] = c.segmentCategory(seg)
	}
	a.Validation = c.evaluate(raw, pipeline, a.Categories)
	return a
}

// Category returns the risk category of a single command name.
func (c *Classifier) Category(name string) command.Category {
	if cat, ok := c.categories[name]; ok {
		return cat
	}
	// mkfs.ext4 and friends
	if base, _, found := strings.Cut(name, "."); found {
		if cat, ok := c.categories[base]; ok {
			return cat
		}
	}
	return command.Unknown
}

// segmentCategory is the category of the command word, raised to the most
// severe command named in the arguments of a wrapper such as xargs or env.
func (c *Classifier) segmentCategory(seg command.Segment) command.Category {
	name := seg.Name()
	cat := c.Category(name)
	if !wrapperCommands[name] {
		return cat
	}
	for _, arg := range seg.Args() {
		if strings.HasPrefix(arg, "-") {
			continue
		}
		inner := c.Category(command.Segment{arg}.Name())
		if inner == command.Unknown {
			continue
		}
		if inner.Severity() > cat.Severity() {
			cat = inner
		}
	}
	return cat
}

func (c *Classifier) evaluate(raw string, p command.Pipeline, categories []command.Category) command.Validation {
	// An operator inside a single token means the lexer and the shell may
	// disagree about where commands start.
	for _, seg := range p.Segments {
		for _, tok := range seg {
			if strings.ContainsAny(tok, operatorRunes) {
				return command.RequireAcceptance(command.WarningOperator)
			}
		}
	}

	verdict := command.Allow()
	worst := command.ReadOnly
	escalate := func(v command.Validation, cat command.Category) {
		if cat.Severity() > worst.Severity() || (!verdict.RequiresAcceptance && v.RequiresAcceptance) {
			verdict = v
			worst = cat
		}
	}

	for i, seg := range p.Segments {
		if i > 0 && isRedirect(p.Operators[i-1]) {
			escalate(command.RequireAcceptance(command.WarningRedirect), command.Mutate)
			continue
		}

		switch categories[i] {
		case command.Destructive:
			return command.RequireAcceptance(command.WarningDestructive)
		case command.Mutate:
			escalate(command.RequireAcceptance(command.WarningMutate), command.Mutate)
		case command.ReadOnly:
			if v, ok := c.checkReadOnly(seg); !ok {
				escalate(v, command.Mutate)
			}
		default:
			escalate(command.RequireAcceptance(""), command.Unknown)
		}
	}

	if p.HasRedirect() && !verdict.RequiresAcceptance {
		verdict = command.RequireAcceptance(command.WarningRedirect)
	}

	if !verdict.RequiresAcceptance && containsDangerousPattern(raw) {
		return command.RequireAcceptance(command.WarningHighRisk)
	}
	return verdict
}

// checkReadOnly looks for substitutions, unsafe flags and out-of-workspace
// paths in a segment whose command is read-only.
func (c *Classifier) checkReadOnly(seg command.Segment) (command.Validation, bool) {
	for _, tok := range seg {
		if containsDangerousPattern(tok) {
			return command.RequireAcceptance(command.WarningHighRisk), false
		}
	}

	if unsafe, ok := unsafeArguments[seg.Name()]; ok {
		for _, arg := range seg.Args() {
			for _, flag := range unsafe {
				if arg == flag || strings.HasPrefix(arg, flag+"=") {
					return command.RequireAcceptance(command.WarningUnsafeArgument), false
				}
			}
		}
	}

	if c.confine {
		for _, arg := range seg.Args() {
			if pathsafe.Unresolvable(arg) {
				return command.RequireAcceptance(command.WarningOutsideWorkspace), false
			}
			candidate := arg
			if strings.HasPrefix(arg, "-") {
				_, value, found := strings.Cut(arg, "=")
				if !found {
					continue
				}
				candidate = value
			}
			if !pathsafe.LooksLikePath(candidate) {
				continue
			}
			if _, err := c.sanitizer.Confine(candidate, c.workDir); err != nil {
				return command.RequireAcceptance(command.WarningOutsideWorkspace), false
			}
		}
	}

	return command.Allow(), true
}

func containsDangerousPattern(s string) bool {
	for _, pattern := range dangerousPatterns {
		if strings.Contains(s, pattern) {
			return true
		}
	}
	return false
}
