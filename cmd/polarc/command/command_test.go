package command

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/cli"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
)

func testMeta() Meta {
	return Meta{
		Ui:  cli.NewMockUi(),
		Log: hclog.NewNullLogger(),
	}
}

func writeTempPolicy(t *testing.T, name, src string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestCheckCommandOkOnValidFiles(t *testing.T) {
	meta := testMeta()
	cmd := &CheckCommand{Meta: meta}

	a := writeTempPolicy(t, "a.polar", `allow(actor, _action, resource) if actor = resource;`)
	b := writeTempPolicy(t, "b.polar", `f(x) if x = x;`)

	code := cmd.Run([]string{a, b})
	require.Equal(t, 0, code)

	out := meta.Ui.(*cli.MockUi).OutputWriter.String()
	require.Contains(t, out, "ok")
}

func TestCheckCommandFailsOnInvalidFile(t *testing.T) {
	meta := testMeta()
	cmd := &CheckCommand{Meta: meta}

	bad := writeTempPolicy(t, "bad.polar", `f(x, y) if x = 1;`)

	code := cmd.Run([]string{bad})
	require.Equal(t, 1, code)
	require.NotEmpty(t, meta.Ui.(*cli.MockUi).ErrorWriter.String())
}

func TestCheckCommandRequiresAtLeastOneFile(t *testing.T) {
	meta := testMeta()
	cmd := &CheckCommand{Meta: meta}

	code := cmd.Run(nil)
	require.Equal(t, 1, code)
}

func TestQueryCommandPrintsSolution(t *testing.T) {
	meta := testMeta()
	cmd := &QueryCommand{Meta: meta}

	policy := writeTempPolicy(t, "allow.polar", `allow(actor, _action, resource) if actor = resource;`)

	code := cmd.Run([]string{"-q", `allow(1, "read", 1)`, policy})
	require.Equal(t, 0, code)

	out := meta.Ui.(*cli.MockUi).OutputWriter.String()
	require.Contains(t, out, "true")
}

func TestQueryCommandPrintsFalseOnNoSolution(t *testing.T) {
	meta := testMeta()
	cmd := &QueryCommand{Meta: meta}

	policy := writeTempPolicy(t, "allow.polar", `allow(actor, _action, resource) if actor = resource;`)

	code := cmd.Run([]string{"-q", `allow(1, "read", 2)`, policy})
	require.Equal(t, 0, code)

	out := meta.Ui.(*cli.MockUi).OutputWriter.String()
	require.Contains(t, out, "false")
}

func TestQueryCommandRequiresQueryFlag(t *testing.T) {
	meta := testMeta()
	cmd := &QueryCommand{Meta: meta}

	policy := writeTempPolicy(t, "allow.polar", `allow(actor, _action, resource) if actor = resource;`)
	code := cmd.Run([]string{policy})
	require.Equal(t, 1, code)
}
