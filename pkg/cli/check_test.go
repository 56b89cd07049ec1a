package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/somcheck/pkg/checker"
	"github.com/platinummonkey/somcheck/pkg/validation"
)

func TestCheckCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "issues.db")

	out, err := execute(t, "check", "--schema", schemaFile, "--db", db, "--project", "Neubau", hausA, hausB)
	require.NoError(t, err)
	assert.Regexp(t, `haus_a\.yaml\s+checked\s+3\s+0\s+2`, out)
	assert.Regexp(t, `haus_b\.yaml\s+checked\s+2\s+0\s+1`, out)
	assert.Contains(t, out, "idle")
	assert.Contains(t, out, "3 issue(s)")
	assert.Contains(t, out, "issue database: "+db)

	t.Run("issues are queryable", func(t *testing.T) {
		out, err := execute(t, "issues", "--db", db, "--counts", "--json")
		require.NoError(t, err)
		var counts map[string]int
		require.NoError(t, json.Unmarshal([]byte(out), &counts))
		assert.Equal(t, map[string]int{
			validation.IssueRange.String():           1,
			validation.IssueGroupRepetitive.String(): 1,
			validation.IssueUnknownIdent.String():    1,
		}, counts)

		out, err = execute(t, "issues", "--db", db, "--type", "RANGE")
		require.NoError(t, err)
		assert.Contains(t, out, "Maße:Breite")
		assert.NotContains(t, out, "UNKNOWN_IDENT")

		out, err = execute(t, "issues", "--db", db, "--project", "Altbau", "--counts")
		require.NoError(t, err)
		assert.Regexp(t, `total\s+0`, out)
	})
}

func TestCheckCommand_JSON(t *testing.T) {
	db := filepath.Join(t.TempDir(), "issues.db")

	out, err := execute(t, "check", "--schema", schemaFile, "--db", db, "--json", hausA)
	require.NoError(t, err)

	var report checker.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, checker.StateIdle, report.State)
	require.Len(t, report.Files, 1)
	assert.Equal(t, checker.FileChecked, report.Files[0].Status)
	assert.Equal(t, 2, report.IssueCount())
}

func TestCheckCommand_Errors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "issues.db")

	t.Run("no files", func(t *testing.T) {
		_, err := execute(t, "check", "--schema", schemaFile, "--db", db)
		assert.Error(t, err)
	})

	t.Run("no schema", func(t *testing.T) {
		t.Setenv("SOMCHECK_SCHEMA", "")
		_, err := execute(t, "check", "--db", db, hausA)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "schema file is required")
	})

	t.Run("missing model file", func(t *testing.T) {
		missing := filepath.Join("testdata", "missing.yaml")
		out, err := execute(t, "check", "--schema", schemaFile, "--db", db, missing, hausA)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 problem(s)")
		assert.Contains(t, out, "failed: import "+missing)
		assert.Regexp(t, `haus_a\.yaml\s+checked`, out)
	})

	t.Run("invalid export path", func(t *testing.T) {
		export := filepath.Join(t.TempDir(), "no", "such", "dir", "out.db")
		_, err := execute(t, "check", "--schema", schemaFile, "--db", db, "--export", export, hausA)
		assert.Error(t, err)
	})
}

func TestIssuesCommand_Errors(t *testing.T) {
	t.Setenv("SOMCHECK_DB_PATH", "")

	_, err := execute(t, "issues")
	assert.ErrorContains(t, err, "issue database is required")

	_, err = execute(t, "issues", "--db", filepath.Join(t.TempDir(), "none.db"))
	assert.Error(t, err)

	db := filepath.Join(t.TempDir(), "issues.db")
	_, err = execute(t, "check", "--schema", schemaFile, "--db", db, hausA)
	require.NoError(t, err)
	_, err = execute(t, "issues", "--db", db, "--type", "NOPE")
	assert.Error(t, err)
}
