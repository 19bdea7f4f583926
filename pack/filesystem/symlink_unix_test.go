//go:build unix

package filesystem_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/toolgate/domain/command"
	"github.com/felixgeelhaar/toolgate/infrastructure/security/pathsafe"
	storagefs "github.com/felixgeelhaar/toolgate/infrastructure/storage/filesystem"
	"github.com/felixgeelhaar/toolgate/pack/filesystem"
)

func TestReadTools_SymlinkOutsideRoots(t *testing.T) {
	workspace := t.TempDir()
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "id_rsa"), []byte("key\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(outside, filepath.Join(workspace, "escape")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(workspace, "notes.txt"), []byte("ok\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	opts := []filesystem.Option{
		filesystem.WithWorkingDir(workspace),
		filesystem.WithSanitizer(pathsafe.New(pathsafe.WithRoots(workspace))),
	}

	tests := []struct {
		name  string
		tool  string
		input string
		want  command.Validation
	}{
		{"read regular file", filesystem.ReadToolName, `{"path": "notes.txt"}`, command.Allow()},
		{"read through symlink", filesystem.ReadToolName, `{"path": "escape/id_rsa"}`, command.RequireAcceptance(command.WarningOutsideWorkspace)},
		{"list symlinked dir", filesystem.ListToolName, `{"path": "escape"}`, command.RequireAcceptance(command.WarningOutsideWorkspace)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newTool(t, storagefs.NewOS(), tt.tool, tt.input, opts...).RequiresAcceptance(context.Background())
			if got != tt.want {
				t.Errorf("RequiresAcceptance() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
