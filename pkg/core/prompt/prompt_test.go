package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsRegistered(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{ComplianceAuditor, DocumentProcessor, ReconciliationSpecialist}, r.ListPrompts())
}

func TestRender(t *testing.T) {
	r := NewRegistry()
	sys, user, err := r.Render(ReconciliationSpecialist, NewContext().Set("Tool", "reconcile_invoice_to_po").Set("Result", `{"matched":true}`))
	require.NoError(t, err)

	assert.Contains(t, sys, "reconciliation specialist")
	assert.Contains(t, user, "Tool: reconcile_invoice_to_po")
	assert.Contains(t, user, `{"matched":true}`)
	assert.NotContains(t, user, "Input:")
}

func TestRender_UnknownID(t *testing.T) {
	_, _, err := NewRegistry().Render("agent.missing", nil)
	assert.Error(t, err)
}

func TestLoadDirectory_OverridesSystemPrompt(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "prompts", "agent")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "compliance_auditor.json"),
		[]byte(`{"name":"Strict Auditor","system_prompt":"Be strict."}`), 0644))

	r := NewRegistry()
	require.NoError(t, r.LoadDirectory(base))

	pt, err := r.GetPrompt(ComplianceAuditor)
	require.NoError(t, err)
	assert.Equal(t, "Be strict.", pt.SystemPrompt)
	assert.Equal(t, "agent", pt.Category)
	assert.NotEmpty(t, pt.UserPromptTmpl, "user template inherited from default")
}

func TestLoadDirectory_MissingIsNotError(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.LoadDirectory(t.TempDir()))
	assert.Equal(t, 3, r.Count())
}
