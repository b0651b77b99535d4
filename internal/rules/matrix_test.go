package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseline/internal/domain"
)

func TestTerminalStatusesPermitNothing(t *testing.T) {
	for _, role := range domain.Roles {
		for _, from := range []domain.Status{domain.StatusCompleted, domain.StatusAbandoned, domain.StatusRejected} {
			for _, to := range domain.Statuses {
				assert.False(t, CanTransition(role, from, to),
					"%s should not move a %s case to %s", role, from, to)
			}
		}
	}
}

func TestViewOnlyPermitsNothing(t *testing.T) {
	for _, from := range domain.Statuses {
		assert.Empty(t, PermittedTargets(domain.RoleViewOnly, from))
	}
}

func TestAnalystTransitions(t *testing.T) {
	assert.True(t, CanTransition(domain.RoleAnalyst, domain.StatusUnassigned, domain.StatusAssigned))
	assert.True(t, CanTransition(domain.RoleAnalyst, domain.StatusAssigned, domain.StatusInProgress))
	assert.True(t, CanTransition(domain.RoleAnalyst, domain.StatusInProgress, domain.StatusCompleted))
	assert.True(t, CanTransition(domain.RoleAnalyst, domain.StatusAssigned, domain.StatusEscalated))
	assert.True(t, CanTransition(domain.RoleAnalyst, domain.StatusReturned, domain.StatusInProgress))

	// analysts cannot jump assigned straight to completed or touch triage
	assert.False(t, CanTransition(domain.RoleAnalyst, domain.StatusAssigned, domain.StatusCompleted))
	assert.False(t, CanTransition(domain.RoleAnalyst, domain.StatusNew, domain.StatusUnassigned))
	assert.False(t, CanTransition(domain.RoleAnalyst, domain.StatusInProgress, domain.StatusAbandoned))
	assert.False(t, CanTransition(domain.RoleAnalyst, domain.StatusEscalated, domain.StatusReturned))
}

func TestManagerTransitions(t *testing.T) {
	assert.True(t, CanTransition(domain.RoleManager, domain.StatusNew, domain.StatusUnassigned))
	assert.True(t, CanTransition(domain.RoleManager, domain.StatusNew, domain.StatusAssigned))
	assert.True(t, CanTransition(domain.RoleManager, domain.StatusInProgress, domain.StatusAssigned))
	assert.True(t, CanTransition(domain.RoleManager, domain.StatusReturned, domain.StatusReopened))
	assert.True(t, CanTransition(domain.RoleManager, domain.StatusManualReview, domain.StatusEscalated))
	assert.True(t, CanTransition(domain.RoleManager, domain.StatusEscalated, domain.StatusRejected))

	// returning an escalated case is reviewer territory
	assert.False(t, CanTransition(domain.RoleManager, domain.StatusEscalated, domain.StatusReturned))
	assert.False(t, CanTransition(domain.RoleManager, domain.StatusUnassigned, domain.StatusCompleted))
	assert.False(t, CanTransition(domain.RoleManager, domain.StatusEscalated, domain.StatusAbandoned))
}

func TestReviewerTransitions(t *testing.T) {
	for _, reviewer := range []domain.Role{domain.RoleFirstLine, domain.RoleSecondLine} {
		assert.True(t, CanTransition(reviewer, domain.StatusEscalated, domain.StatusInProgress))
		assert.True(t, CanTransition(reviewer, domain.StatusEscalated, domain.StatusReturned))
		assert.True(t, CanTransition(reviewer, domain.StatusEscalated, domain.StatusCompleted))
		assert.True(t, CanTransition(reviewer, domain.StatusInProgress, domain.StatusCompleted))

		assert.False(t, CanTransition(reviewer, domain.StatusUnassigned, domain.StatusAssigned))
		assert.False(t, CanTransition(reviewer, domain.StatusReturned, domain.StatusReopened))
		assert.False(t, CanTransition(reviewer, domain.StatusInProgress, domain.StatusAbandoned))
	}
}

func TestPermittedTargetsFollowStatusOrder(t *testing.T) {
	targets := PermittedTargets(domain.RoleManager, domain.StatusInProgress)
	require.NotEmpty(t, targets)

	index := make(map[domain.Status]int, len(domain.Statuses))
	for i, s := range domain.Statuses {
		index[s] = i
	}
	for i := 1; i < len(targets); i++ {
		assert.Less(t, index[targets[i-1]], index[targets[i]])
	}
}

func TestMatrixIsSymmetricWithPermittedTargets(t *testing.T) {
	// PermittedTargets must agree with CanTransition for every cell.
	for _, role := range domain.Roles {
		for _, from := range domain.Statuses {
			targets := PermittedTargets(role, from)
			set := make(map[domain.Status]bool, len(targets))
			for _, to := range targets {
				set[to] = true
			}
			for _, to := range domain.Statuses {
				assert.Equal(t, CanTransition(role, from, to), set[to],
					"role=%s from=%s to=%s", role, from, to)
			}
		}
	}
}
