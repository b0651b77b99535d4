package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseline/internal/domain"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "caseline.yml"))
	require.NoError(t, err)
	assert.Equal(t, ":8484", cfg.Server.Addr)
	assert.Equal(t, domain.PriorityMedium, cfg.Intake.DefaultPriority)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caseline.yml")
	body := `
server:
  addr: ":9999"
intake:
  default_priority: high
  default_due_days: 14
webhooks:
  - url: https://example.test/hook
    events: [case.escalated]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, domain.PriorityHigh, cfg.Intake.DefaultPriority)
	assert.Equal(t, 14, cfg.Intake.DefaultDueDays)
	require.Len(t, cfg.Webhooks, 1)
}

func TestLoadRejectsBadPriority(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caseline.yml")
	require.NoError(t, os.WriteFile(path, []byte("intake:\n  default_priority: urgent\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestReasonOverrideReplacesCatalog(t *testing.T) {
	cfg := Default()
	cfg.Reasons = []domain.EscalationReason{
		{ID: "custom", Label: "Custom reason", TargetRole: domain.RoleManager},
	}
	require.NoError(t, cfg.Validate())

	catalog, err := cfg.Catalog()
	require.NoError(t, err)
	assert.Len(t, catalog.All(), 1)
	_, ok := catalog.Get("gfc_intelligence")
	assert.False(t, ok)
}

func TestValidateRejectsBadReasonCatalog(t *testing.T) {
	cfg := Default()
	cfg.Reasons = []domain.EscalationReason{
		{ID: "dup", Label: "one", TargetRole: domain.RoleManager},
		{ID: "dup", Label: "two", TargetRole: domain.RoleManager},
	}
	require.Error(t, cfg.Validate())
}
