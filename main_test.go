package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagnerlima/psytech-mcp/internal/models"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_DiagnoseText(t *testing.T) {
	out, err := runCLI(t, "diagnose", "--symptoms", "s1,s2")
	require.NoError(t, err)
	assert.Contains(t, out, "Generalized anxiety")
	assert.Contains(t, out, "CF: 80%")
}

func TestCLI_DiagnoseJSON(t *testing.T) {
	out, err := runCLI(t, "diagnose", "--symptoms", "s6,s7,s8", "--format", "json")
	require.NoError(t, err)

	var c models.Consultation
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	assert.Equal(t, []string{"f_overload", "d_r4"}, c.Result.Inferred)
}

func TestCLI_DiagnoseErrors(t *testing.T) {
	_, err := runCLI(t, "diagnose", "--symptoms", "s1", "--format", "yaml")
	assert.Error(t, err)

	_, err = runCLI(t, "diagnose", "--symptoms", "nope")
	assert.Error(t, err)
}

func TestCLI_Validate(t *testing.T) {
	out, err := runCLI(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "9 symptoms, 7 rules")

	out, err = runCLI(t, "validate", "internal/knowledge/testdata/kb.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "OK")

	out, err = runCLI(t, "validate", "internal/knowledge/testdata/duplicate.json")
	require.Error(t, err)
	assert.Contains(t, out, "INVALID")
	assert.Contains(t, out, "duplicate")
}

func TestCLI_Symptoms(t *testing.T) {
	out, err := runCLI(t, "symptoms")
	require.NoError(t, err)
	assert.Contains(t, out, "s1")
	assert.Contains(t, out, "Frequently anxious")
}

func TestCLI_KnowledgeFlag(t *testing.T) {
	out, err := runCLI(t, "--knowledge", "internal/knowledge/testdata/kb.toml", "symptoms")
	require.NoError(t, err)
	assert.NotContains(t, out, "Losing interest in lectures")
}

func TestCLI_ServeRejectsBadTransport(t *testing.T) {
	_, err := runCLI(t, "serve", "--transport", "carrier-pigeon")
	assert.Error(t, err)
}
