package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantErr  bool
		contains []string
		excludes []string
	}{
		{
			name:     "clean schema",
			args:     []string{"schema", "--strict", schemaFile},
			contains: []string{"Prüfschema 2.0: 2 objects", "GB", "WA", "Wand"},
			excludes: []string{"warning:"},
		},
		{
			name:     "schema from flag",
			args:     []string{"schema", "--schema", schemaFile},
			contains: []string{"Gebäude"},
		},
		{
			name:     "warnings are listed",
			args:     []string{"schema", filepath.Join("testdata", "incomplete_schema.yaml")},
			contains: []string{"warning: missing_composition"},
		},
		{
			name:    "warnings fail strict mode",
			args:    []string{"schema", "--strict", filepath.Join("testdata", "incomplete_schema.yaml")},
			wantErr: true,
		},
		{
			name:    "missing file",
			args:    []string{"schema", filepath.Join("testdata", "nope.yaml")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SOMCHECK_SCHEMA", "")
			out, err := execute(t, tt.args...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestSchemaCommand_NoFile(t *testing.T) {
	t.Setenv("SOMCHECK_SCHEMA", "")
	_, err := execute(t, "schema")
	assert.ErrorContains(t, err, "schema file is required")
}

func TestCompareCommand(t *testing.T) {
	out, err := execute(t, "compare", schemaFile, schemaFile)
	require.NoError(t, err)
	assert.Contains(t, out, "schemas are identical")

	out, err = execute(t, "compare", schemaFile, filepath.Join("testdata", "schema_v2.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "added 1.2")
	assert.Contains(t, out, "modified 1.1 / Maße : Breite values")

	_, err = execute(t, "compare", schemaFile)
	assert.Error(t, err)
}
