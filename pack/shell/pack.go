// Package shell provides the execute_bash tool.
package shell

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/felixgeelhaar/toolgate/domain/command"
	"github.com/felixgeelhaar/toolgate/domain/pack"
	"github.com/felixgeelhaar/toolgate/domain/tool"
	"github.com/felixgeelhaar/toolgate/infrastructure/process"
	"github.com/felixgeelhaar/toolgate/infrastructure/security/classifier"
)

// ToolName is the registered name of the shell tool.
const ToolName = "execute_bash"

// Classifier judges a command line before it runs.
type Classifier interface {
	Classify(raw string) command.Validation
}

// Config configures the shell pack.
type Config struct {
	// Classifier decides whether a command needs acceptance.
	Classifier Classifier

	// Runner spawns and supervises the shell.
	Runner *process.Runner

	// Shell is the shell binary (default: bash).
	Shell string

	// WorkingDir is where commands run. Empty means the process directory.
	WorkingDir string
}

// Option configures the shell pack.
type Option func(*Config)

// WithClassifier sets the command classifier.
func WithClassifier(c Classifier) Option {
	return func(cfg *Config) {
		cfg.Classifier = c
	}
}

// WithRunner sets the process runner.
func WithRunner(r *process.Runner) Option {
	return func(cfg *Config) {
		cfg.Runner = r
	}
}

// WithShell sets the shell binary.
func WithShell(shell string) Option {
	return func(cfg *Config) {
		cfg.Shell = shell
	}
}

// WithWorkingDir sets the directory commands run in.
func WithWorkingDir(dir string) Option {
	return func(cfg *Config) {
		cfg.WorkingDir = dir
	}
}

// New creates the shell pack.
func New(opts ...Option) (*pack.Pack, error) {
	cfg := Config{
		Shell: "bash",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Classifier == nil {
		cfg.Classifier = classifier.New(classifier.WithWorkingDir(cfg.WorkingDir))
	}
	if cfg.Runner == nil {
		cfg.Runner = process.NewRunner()
	}

	if cfg.WorkingDir != "" {
		info, err := os.Stat(cfg.WorkingDir)
		if err != nil {
			return nil, fmt.Errorf("invalid working directory: %w", err)
		}
		if !info.IsDir() {
			return nil, errors.New("working directory is not a directory")
		}
	}

	return pack.NewBuilder("shell").
		WithDescription("Shell command execution behind the command classifier").
		WithVersion("1.0.0").
		AddTools(Definition(&cfg)).
		Build(), nil
}

// Definition returns the execute_bash registration entry.
func Definition(cfg *Config) *tool.Definition {
	return tool.NewBuilder(ToolName).
		WithDescription("Execute the specified bash command. Commands that are not provably read-only require user acceptance.").
		WithInputSchema(tool.ObjectSchema(map[string]json.RawMessage{
			"command": tool.Prop("string", "Bash command to execute"),
		}, []string{"command"})).
		WithRiskLevel(tool.RiskHigh).
		WithTags("shell").
		WithConstructor(func(input json.RawMessage) (tool.Tool, error) {
			var in struct {
				Command string `json:"command"`
			}
			if err := json.Unmarshal(input, &in); err != nil {
				return nil, err
			}
			return &ExecuteBash{Command: in.Command, config: cfg}, nil
		}).
		MustBuild()
}

// ExecuteBash runs one command line through the configured shell.
type ExecuteBash struct {
	Command string

	config *Config
}

// Name returns the tool name.
func (e *ExecuteBash) Name() string { return ToolName }

// Validate rejects an empty command.
func (e *ExecuteBash) Validate(_ context.Context) error {
	if strings.TrimSpace(e.Command) == "" {
		return fmt.Errorf("%w: command is required", tool.ErrValidation)
	}
	return nil
}

// RequiresAcceptance delegates to the classifier.
func (e *ExecuteBash) RequiresAcceptance(_ context.Context) command.Validation {
	return e.config.Classifier.Classify(e.Command)
}

// QueueDescription shows the literal command.
func (e *ExecuteBash) QueueDescription(sink tool.Sink) error {
	if err := sink.Write("I will run the following shell command:\n\n```shell\n" + e.Command + "\n```\n"); err != nil {
		return err
	}
	return sink.End()
}

// Invoke runs the command and returns its exit status and output as JSON.
// Cancellation of ctx kills the whole process group.
func (e *ExecuteBash) Invoke(ctx context.Context, sink tool.Sink) (tool.Output, error) {
	res, err := e.config.Runner.Run(ctx, process.Request{
		Name: e.config.Shell,
		Args: []string{"-c", e.Command},
		Dir:  e.config.WorkingDir,
	}, sink)
	if err != nil {
		return tool.Output{}, err
	}
	return res.Output()
}
