package classifier

import (
	"errors"
	"testing"

	"github.com/felixgeelhaar/toolgate/domain/command"
	"github.com/felixgeelhaar/toolgate/domain/tool"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	c := New()

	tests := []struct {
		name string
		raw  string
		want command.Validation
	}{
		{"read only", "ls -la", command.Allow()},
		{"read only pipeline", "cat a.txt | grep foo | wc -l", command.Allow()},
		{"absolute command path", "/bin/ls", command.Allow()},
		{"destructive after read only", "ls && rm -rf /tmp/x", command.RequireAcceptance(command.WarningDestructive)},
		{"destructive absolute path", "/bin/rm -rf x", command.RequireAcceptance(command.WarningDestructive)},
		{"privilege escalation", "sudo ls", command.RequireAcceptance(command.WarningDestructive)},
		{"filesystem variant", "mkfs.ext4 /dev/sda1", command.RequireAcceptance(command.WarningDestructive)},
		{"mutating", "curl https://example.com", command.RequireAcceptance(command.WarningMutate)},
		{"mutating after read only", "ls; chmod 777 x", command.RequireAcceptance(command.WarningMutate)},
		{"unknown", "make build", command.RequireAcceptance("")},
		{"unknown then mutate", "make && curl x", command.RequireAcceptance(command.WarningMutate)},
		{"wrapper hides destructive", "ls | xargs rm", command.RequireAcceptance(command.WarningDestructive)},
		{"wrapper with read only", "ls | xargs grep foo", command.RequireAcceptance("")},
		{"redirect to file", "echo hi > file", command.RequireAcceptance(command.WarningRedirect)},
		{"redirect over system file", "cat secret.txt > /etc/passwd", command.RequireAcceptance(command.WarningRedirect)},
		{"input redirect", "wc -l < notes.txt", command.RequireAcceptance(command.WarningRedirect)},
		{"command substitution", "echo $(rm -rf /)", command.RequireAcceptance(command.WarningHighRisk)},
		{"backtick substitution", "echo `whoami`", command.RequireAcceptance(command.WarningHighRisk)},
		{"quoted operator", `echo "a && rm -rf /"`, command.RequireAcceptance(command.WarningOperator)},
		{"escaped separator", `echo a\;rm`, command.RequireAcceptance(command.WarningOperator)},
		{"newline smuggling", "ls\nrm -rf /", command.RequireAcceptance(command.WarningDestructive)},
		{"find delete", "find . -name '*.tmp' -delete", command.RequireAcceptance(command.WarningUnsafeArgument)},
		{"sort output file", "sort -o out.txt in.txt", command.RequireAcceptance(command.WarningUnsafeArgument)},
		{"sort output flag with value", "sort --output=out.txt in.txt", command.RequireAcceptance(command.WarningUnsafeArgument)},
		{"empty", "", command.RequireAcceptance("")},
		{"whitespace", "   ", command.RequireAcceptance("")},
		{"unclosed quote", `echo "abc`, command.RequireAcceptance("")},
		{"process substitution", "diff <(ls) x", command.RequireAcceptance("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := c.Classify(tt.raw); got != tt.want {
				t.Errorf("Classify(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestClassify_WithCategory(t *testing.T) {
	t.Parallel()

	c := New(
		WithCategory("git", command.ReadOnly),
		WithCategory("cat", command.Mutate),
	)

	if got := c.Classify("git status"); got.RequiresAcceptance {
		t.Errorf("Classify(git status) = %+v, want allowed", got)
	}
	if got := c.Classify("cat a.txt"); got != command.RequireAcceptance(command.WarningMutate) {
		t.Errorf("Classify(cat a.txt) = %+v, want mutate warning", got)
	}
	if got := New().Classify("git status"); !got.RequiresAcceptance {
		t.Error("override leaked into a fresh classifier")
	}
}

func TestClassify_WorkspaceConfinement(t *testing.T) {
	t.Parallel()

	c := New(WithWorkspaceRoots("/work"), WithWorkingDir("/work/app"))

	tests := []struct {
		raw  string
		want command.Validation
	}{
		{"cat ./main.go", command.Allow()},
		{"cat /work/README.md", command.Allow()},
		{"ls ..", command.Allow()},
		{"cat /etc/passwd", command.RequireAcceptance(command.WarningOutsideWorkspace)},
		{"cat ../../etc/passwd", command.RequireAcceptance(command.WarningOutsideWorkspace)},
		{"grep --file=/etc/shadow x", command.RequireAcceptance(command.WarningOutsideWorkspace)},
		{"cat main.go", command.Allow()},
		{"cat $HOME/.ssh/id_rsa", command.RequireAcceptance(command.WarningOutsideWorkspace)},
		{"cat ${HOME}/.ssh/id_rsa", command.RequireAcceptance(command.WarningOutsideWorkspace)},
		{"grep -r PRIVATE $HOME", command.RequireAcceptance(command.WarningOutsideWorkspace)},
		{"ls $OLDPWD", command.RequireAcceptance(command.WarningOutsideWorkspace)},
		{"cat ~root/.profile", command.RequireAcceptance(command.WarningOutsideWorkspace)},
		{"grep --file=$HOME/patterns x", command.RequireAcceptance(command.WarningOutsideWorkspace)},
		{"grep 'main$' main.go", command.Allow()},
	}

	for _, tt := range tests {
		if got := c.Classify(tt.raw); got != tt.want {
			t.Errorf("Classify(%q) = %+v, want %+v", tt.raw, got, tt.want)
		}
	}
}

func TestClassify_NoRootsDoesNotConfine(t *testing.T) {
	t.Parallel()

	c := New(WithWorkspaceRoots())
	if got := c.Classify("cat /etc/hosts"); got.RequiresAcceptance {
		t.Errorf("Classify() = %+v, want allowed without roots", got)
	}
}

func TestAnalyze(t *testing.T) {
	t.Parallel()

	c := New()

	a := c.Analyze("ls | xargs rm")
	if a.Err != nil {
		t.Fatalf("Analyze() error = %v", a.Err)
	}
	if len(a.Pipeline.Segments) != 2 {
		t.Fatalf("len(Segments) = %d, want 2", len(a.Pipeline.Segments))
	}
	want := []command.Category{command.ReadOnly, command.Destructive}
	for i, cat := range want {
		if a.Categories[i] != cat {
			t.Errorf("Categories[%d] = %v, want %v", i, a.Categories[i], cat)
		}
	}

	bad := c.Analyze(`echo "oops`)
	if !errors.Is(bad.Err, tool.ErrClassification) {
		t.Errorf("Analyze() error = %v, want ErrClassification", bad.Err)
	}
	if !errors.Is(bad.Err, command.ErrUnparsable) {
		t.Errorf("Analyze() error = %v, want ErrUnparsable", bad.Err)
	}
	if !bad.Validation.RequiresAcceptance {
		t.Error("unparsable command must require acceptance")
	}
}

func TestCategory(t *testing.T) {
	t.Parallel()

	c := New()
	tests := map[string]command.Category{
		"ls":        command.ReadOnly,
		"grep":      command.ReadOnly,
		"chmod":     command.Mutate,
		"rm":        command.Destructive,
		"doas":      command.Destructive,
		"mkfs.xfs":  command.Destructive,
		"python3":   command.Unknown,
		"ls.backup": command.ReadOnly,
	}
	for name, want := range tests {
		if got := c.Category(name); got != want {
			t.Errorf("Category(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestDefaultCategories_ReturnsCopy(t *testing.T) {
	t.Parallel()

	table := DefaultCategories()
	table["ls"] = command.Destructive

	if got := DefaultCategories()["ls"]; got != command.ReadOnly {
		t.Errorf("DefaultCategories()[ls] = %v, want %v", got, command.ReadOnly)
	}
}
