package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/replsnip/internal/cli/config"
	"github.com/leapstack-labs/replsnip/internal/snippet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInitCommand(t *testing.T) {
	tests := []struct {
		name     string
		setupDir func(t *testing.T, dir string)
		args     []string
		wantErr  bool
	}{
		{
			name: "init empty directory",
		},
		{
			name: "init existing config without force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, "replsnip.yaml"), []byte("existing"), 0600)
			},
			wantErr: true,
		},
		{
			name: "init existing config with force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, "replsnip.yaml"), []byte("existing"), 0600)
			},
			args: []string{"--force"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := isolatedWorkspace(t)
			if tt.setupDir != nil {
				tt.setupDir(t, tmpDir)
			}

			cmd := NewInitCommand()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			content, err := os.ReadFile(filepath.Join(tmpDir, "replsnip.yaml"))
			require.NoError(t, err)
			assert.NotEqual(t, "existing", string(content))
		})
	}
}

func TestInitCommandMetadata(t *testing.T) {
	cmd := NewInitCommand()

	assert.Equal(t, "init [directory]", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotNil(t, cmd.Flags().Lookup("force"), "--force flag should exist")
}

func TestInitCreatesLoadableConfig(t *testing.T) {
	tmpDir := isolatedWorkspace(t)

	cmd := NewInitCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"project"})
	require.NoError(t, cmd.Execute())

	projectDir := filepath.Join(tmpDir, "project")
	content, err := os.ReadFile(filepath.Join(projectDir, "replsnip.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "port_file: .nrepl-port")
	assert.Contains(t, string(content), "state_path: .replsnip/state.db")

	config.ResetConfig()
	cfg, err := config.LoadConfig(config.LoadOptions{
		WorkspaceDir: projectDir,
		GlobalFile:   filepath.Join(tmpDir, "absent.yaml"),
	})
	require.NoError(t, err)
	assert.Len(t, cfg.Scopes().Workspace, 4)

	reg, err := snippet.Build(cfg.Scopes(), snippet.Defaults{Repl: "clj"})
	require.NoError(t, err)
	assert.Equal(t, 4, reg.Len())
	label, ok := reg.LabelForKey("f")
	require.True(t, ok)
	assert.Equal(t, "f: Call current function (clj)", label)
	assert.Equal(t, "nrepl", cfg.Repl.Targets["clj"].Type)
}
