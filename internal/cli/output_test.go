package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]string{"result": "success"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"result": "success"}, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	details := map[string]any{"file": "kitchen.cue", "line": 7}
	require.NoError(t, formatter.Error(ErrCodeInvalidStep, "unknown identifier x", details))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidStep, resp.Error.Code)
	assert.Equal(t, "unknown identifier x", resp.Error.Message)
	assert.Equal(t, map[string]any{"file": "kitchen.cue", "line": float64(7)}, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success("All queries valid"))
	assert.Equal(t, "All queries valid\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		want    string
	}{
		{name: "quiet", verbose: false, want: "Error [E001]: compilation failed\n"},
		{name: "verbose", verbose: true, want: "Error [E001]: compilation failed\nDetails: map[file:kitchen.cue]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			require.NoError(t, formatter.Error("E001", "compilation failed", map[string]string{"file": "kitchen.cue"}))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestOutputFormatter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Fail(ExitCommandError, ErrCodeNotFound, "queries directory not found: x", nil)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, "E005: queries directory not found: x", err.Error())
	assert.Equal(t, "Error [E005]: queries directory not found: x\n", buf.String())
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name      string
		verbose   bool
		errWriter bool
		wantOut   string
		wantErr   string
	}{
		{name: "disabled", verbose: false},
		{name: "to writer", verbose: true, wantOut: "Processing kitchen.cue\n"},
		{name: "to err writer", verbose: true, errWriter: true, wantErr: "Processing kitchen.cue\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: out, Verbose: tt.verbose}
			if tt.errWriter {
				formatter.ErrWriter = errOut
			}

			formatter.VerboseLog("Processing %s", "kitchen.cue")

			assert.Equal(t, tt.wantOut, out.String())
			assert.Equal(t, tt.wantErr, errOut.String())
		})
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitSuccess},
		{name: "plain", err: errors.New("boom"), want: ExitFailure},
		{name: "exit error", err: NewExitError(ExitCommandError, "missing"), want: ExitCommandError},
		{name: "wrapped", err: fmt.Errorf("outer: %w", NewExitError(ExitCommandError, "missing")), want: ExitCommandError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestExitError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapExitError(ExitCommandError, "failed to save plan", cause)

	assert.Equal(t, "failed to save plan: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
}
