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

func decodeResponse(t *testing.T, buf *bytes.Buffer) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	return resp
}

func TestOutputFormatter_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, f.Success(map[string]int{"states": 13}))
	resp := decodeResponse(t, buf)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"states": float64(13)}, resp.Data)
	assert.Nil(t, resp.Error)

	buf.Reset()
	details := map[string]string{"file": "death.yaml", "step": "2"}
	require.NoError(t, f.Error(ErrCodeInvalid, `unknown state "nap_time"`, details))
	resp = decodeResponse(t, buf)
	assert.Equal(t, "error", resp.Status)
	assert.Nil(t, resp.Data)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalid, resp.Error.Code)
	assert.Equal(t, `unknown state "nap_time"`, resp.Error.Message)
	assert.Equal(t, map[string]any{"file": "death.yaml", "step": "2"}, resp.Error.Details)
}

func TestOutputFormatter_Text(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		details any
		want    []string
		absent  []string
	}{
		{"plain", false, nil, []string{"Error [E_UNKNOWN_RUN]: run not found: r-9"}, []string{"Details:"}},
		{"details hidden", false, "journal.db", nil, []string{"Details:"}},
		{"details shown", true, "journal.db", []string{"Details: journal.db"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			f := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}
			require.NoError(t, f.Error(ErrCodeUnknownRun, "run not found: r-9", tt.details))
			for _, s := range tt.want {
				assert.Contains(t, buf.String(), s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, buf.String(), s)
			}
		})
	}

	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}
	require.NoError(t, f.Success("3 scenario(s) passed"))
	assert.Equal(t, "3 scenario(s) passed\n", buf.String())
}

func TestOutputFormatter_Respond(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Respond(map[string]int{"passed": 1, "failed": 1}, ErrCodeTestFailed, "1 scenario(s) failed")
	require.NoError(t, err)

	resp := decodeResponse(t, buf)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Data, "partial results are kept")
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)

	buf.Reset()
	require.NoError(t, formatter.Respond("done", "", ""))
	assert.Equal(t, "ok", decodeResponse(t, buf).Status)
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name      string
		verbose   bool
		errWriter bool
		wantOut   string
		wantErr   string
	}{
		{"quiet", false, true, "", ""},
		{"falls back to writer", true, false, "replaying run r-1\n", ""},
		{"diagnostics on err writer", true, true, "", "replaying run r-1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
			f := &OutputFormatter{Format: "json", Writer: out, Verbose: tt.verbose}
			if tt.errWriter {
				f.ErrWriter = errOut
			}

			f.VerboseLog("replaying run %s", "r-1")
			assert.Equal(t, tt.wantOut, out.String())
			assert.Equal(t, tt.wantErr, errOut.String())
		})
	}
}

func TestNewFormatter(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	f := newFormatter(&RootOptions{Format: "json", Verbose: true}, out, errOut)
	assert.Equal(t, "json", f.Format)
	assert.True(t, f.Verbose)
	assert.Same(t, errOut, f.GetErrWriter())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad path")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitFailure, "scenario failed", errors.New("inner")))
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
	assert.Equal(t, "outer: scenario failed: inner", wrapped.Error())
}
