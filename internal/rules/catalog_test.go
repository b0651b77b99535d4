package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseline/internal/domain"
)

func TestDefaultCatalogIsValid(t *testing.T) {
	c := DefaultCatalog()
	require.Len(t, c.All(), 11)
	r, ok := c.Get("gfc_intelligence")
	require.True(t, ok)
	assert.True(t, r.RequiresManager)
	assert.Equal(t, domain.RoleSecondLine, r.TargetRole)
}

func TestNewCatalogRejectsDuplicates(t *testing.T) {
	_, err := NewCatalog([]domain.EscalationReason{
		{ID: "a", Label: "A", TargetRole: domain.RoleManager},
		{ID: "a", Label: "A again", TargetRole: domain.RoleManager},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestNewCatalogRejectsBadTargetRole(t *testing.T) {
	_, err := NewCatalog([]domain.EscalationReason{
		{ID: "a", Label: "A", TargetRole: domain.RoleAnalyst},
	})
	require.Error(t, err)
}

func TestForTypeFiltersByTrack(t *testing.T) {
	c := DefaultCatalog()
	for _, r := range c.ForType(domain.EscalationFirstLine) {
		assert.Equal(t, domain.RoleFirstLine, r.TargetRole)
	}
	for _, r := range c.ForType(domain.EscalationSecondLine) {
		assert.Equal(t, domain.RoleSecondLine, r.TargetRole)
	}
	// the cancellation track offers the full catalog
	assert.Len(t, c.ForType(domain.EscalationCancellation), len(c.All()))
}

func TestValidateSelection(t *testing.T) {
	c := DefaultCatalog()

	requiresManager, err := c.ValidateSelection(domain.EscalationFirstLine, []string{"beneficial_ownership", "address_change"})
	require.NoError(t, err)
	assert.False(t, requiresManager)

	requiresManager, err = c.ValidateSelection(domain.EscalationFirstLine, []string{"risk_drivers_high"})
	require.NoError(t, err)
	assert.True(t, requiresManager)

	_, err = c.ValidateSelection(domain.EscalationFirstLine, []string{"no_such_reason"})
	require.Error(t, err)

	// a second-line reason cannot ride a first-line escalation
	_, err = c.ValidateSelection(domain.EscalationFirstLine, []string{"gfc_intelligence"})
	require.Error(t, err)

	// the cancellation track accepts reasons from any target role
	_, err = c.ValidateSelection(domain.EscalationCancellation, []string{"gfc_intelligence", "cancellation"})
	require.NoError(t, err)
}
