package cli

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTree(called *string, got *[]string, rtol *float64) *Command {
	return &Command{
		Name:       "parity",
		HelpOutput: &bytes.Buffer{},
		Subcommands: []*Command{
			{
				Name:    "compare",
				Summary: "compare two artifact sets",
				Flags: func() *pflag.FlagSet {
					fs := pflag.NewFlagSet("compare", pflag.ContinueOnError)
					fs.Float64Var(rtol, "rtol", 1e-5, "relative tolerance")
					fs.Bool("early-stop", false, "stop at first failure")
					return fs
				},
				Run: func(args []string) error {
					*called = "compare"
					*got = args
					return nil
				},
			},
			{
				Name:    "version",
				Summary: "print the version",
				Run: func(args []string) error {
					*called = "version"
					return nil
				},
			},
		},
	}
}

func TestExecuteDispatchAndFlags(t *testing.T) {
	var called string
	var args []string
	var rtol float64
	root := testTree(&called, &args, &rtol)

	require.NoError(t, root.Execute([]string{"compare", "--rtol", "0.01", "py_out", "go_out"}))
	assert.Equal(t, "compare", called)
	assert.Equal(t, []string{"py_out", "go_out"}, args)
	assert.Equal(t, 0.01, rtol)

	require.NoError(t, root.Execute([]string{"version"}))
	assert.Equal(t, "version", called)
}

func TestExecuteUnknownCommandSuggests(t *testing.T) {
	var called string
	var args []string
	var rtol float64
	root := testTree(&called, &args, &rtol)

	err := root.Execute([]string{"compar"})
	var usage *UsageError
	require.True(t, errors.As(err, &usage))
	assert.Contains(t, err.Error(), `did you mean "compare"`)

	err = root.Execute([]string{"zzzzzzzzzz"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestExecuteUnknownFlagSuggests(t *testing.T) {
	var called string
	var args []string
	var rtol float64
	root := testTree(&called, &args, &rtol)

	err := root.Execute([]string{"compare", "--rtoll", "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did you mean --rtol?")
	assert.Empty(t, called)
}

func TestExecuteHelp(t *testing.T) {
	var called string
	var args []string
	var rtol float64
	root := testTree(&called, &args, &rtol)
	out := root.HelpOutput.(*bytes.Buffer)

	require.NoError(t, root.Execute([]string{"--help"}))
	assert.Contains(t, out.String(), "compare")
	assert.Contains(t, out.String(), "compare two artifact sets")

	out.Reset()
	require.NoError(t, root.Execute([]string{"compare", "--help"}))
	assert.Contains(t, out.String(), "--rtol")
	assert.Contains(t, out.String(), "parity compare [flags]")

	err := root.Execute(nil)
	var usage *UsageError
	assert.True(t, errors.As(err, &usage))
}

func TestExitStatus(t *testing.T) {
	code, printErr := ExitStatus(nil)
	assert.Equal(t, ExitOK, code)
	assert.False(t, printErr)

	code, printErr = ExitStatus(Exit(ExitFailure))
	assert.Equal(t, ExitFailure, code)
	assert.False(t, printErr)

	code, printErr = ExitStatus(errors.New("boom"))
	assert.Equal(t, ExitUsage, code)
	assert.True(t, printErr)

	assert.NoError(t, Exit(ExitOK))
}

func TestExactArgs(t *testing.T) {
	assert.NoError(t, ExactArgs([]string{"a", "b"}, 2, "LEFT", "RIGHT"))
	err := ExactArgs([]string{"a"}, 2, "LEFT", "RIGHT")
	require.Error(t, err)
	assert.Equal(t, "expected 2 arguments (LEFT RIGHT), got 1", err.Error())
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("pack", "pack"))
	assert.Equal(t, 1, levenshtein("pak", "pack"))
	assert.Equal(t, 3, levenshtein("", "abc"))
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
}

func TestNewLoggerJSONWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("loaded", "arrays", 3)
	assert.Contains(t, buf.String(), `"msg":"loaded"`)
	assert.Contains(t, buf.String(), `"arrays":3`)
	assert.NotContains(t, buf.String(), "hidden")
}
