package rules

import "caseline/internal/domain"

// The permission matrix is a fixed table, not runtime-editable. Both the
// lifecycle engine and the action menus of a host UI consult it through
// CanTransition / PermittedTargets so the rules cannot drift apart.

type transitionKey struct {
	role domain.Role
	from domain.Status
	to   domain.Status
}

var permitted = buildMatrix()

type row struct {
	role domain.Role
	from []domain.Status
	to   domain.Status
}

func buildMatrix() map[transitionKey]bool {
	rows := []row{
		// Analysts pick up queued work, progress it, and either complete with
		// a "no factors" disposition or escalate through their manager.
		{domain.RoleAnalyst, statuses(domain.StatusUnassigned), domain.StatusAssigned},
		{domain.RoleAnalyst, statuses(domain.StatusAssigned), domain.StatusInProgress},
		{domain.RoleAnalyst, statuses(domain.StatusManualReview, domain.StatusReturned), domain.StatusInProgress},
		{domain.RoleAnalyst, statuses(domain.StatusAssigned, domain.StatusInProgress), domain.StatusEscalated},
		{domain.RoleAnalyst, statuses(domain.StatusInProgress), domain.StatusCompleted},

		// Managers triage intake, assign and reassign, route approved
		// escalations, and own the abandon/reject/reopen decisions. A manager
		// may not return an escalated case; only the reviewer roles can.
		{domain.RoleManager, statuses(domain.StatusNew), domain.StatusUnassigned},
		{domain.RoleManager, statuses(domain.StatusNew, domain.StatusUnassigned), domain.StatusAssigned},
		{domain.RoleManager, statuses(domain.StatusAssigned, domain.StatusInProgress), domain.StatusAssigned},
		{domain.RoleManager, statuses(domain.StatusReturned, domain.StatusReopened), domain.StatusAssigned},
		{domain.RoleManager, statuses(domain.StatusAssigned, domain.StatusInProgress, domain.StatusManualReview), domain.StatusEscalated},
		{domain.RoleManager, statuses(domain.StatusAssigned, domain.StatusInProgress), domain.StatusManualReview},
		{domain.RoleManager, statuses(domain.StatusReturned), domain.StatusReopened},
		{domain.RoleManager, statuses(domain.StatusUnassigned, domain.StatusAssigned, domain.StatusInProgress, domain.StatusManualReview, domain.StatusReturned, domain.StatusReopened), domain.StatusAbandoned},
		{domain.RoleManager, statuses(domain.StatusAssigned, domain.StatusInProgress, domain.StatusManualReview, domain.StatusEscalated), domain.StatusRejected},
	}

	// The two specialist reviewer roles share a row set: they take up
	// escalated cases, close them, or return them to the workflow.
	for _, reviewer := range []domain.Role{domain.RoleFirstLine, domain.RoleSecondLine} {
		rows = append(rows,
			row{reviewer, statuses(domain.StatusAssigned, domain.StatusInProgress, domain.StatusEscalated), domain.StatusReturned},
			row{reviewer, statuses(domain.StatusEscalated), domain.StatusInProgress},
			row{reviewer, statuses(domain.StatusEscalated, domain.StatusInProgress), domain.StatusCompleted},
		)
	}

	// View-only contributes no rows: no transition from any status.

	m := make(map[transitionKey]bool)
	for _, r := range rows {
		for _, from := range r.from {
			m[transitionKey{r.role, from, r.to}] = true
		}
	}
	return m
}

func statuses(s ...domain.Status) []domain.Status { return s }

// CanTransition reports whether role may move a case from one status to
// another. Terminal source statuses never permit a transition.
func CanTransition(role domain.Role, from, to domain.Status) bool {
	if from.Terminal() {
		return false
	}
	return permitted[transitionKey{role, from, to}]
}

// PermittedTargets lists the statuses role may move a case in status from to.
// Results follow the order of domain.Statuses so menus render stably.
func PermittedTargets(role domain.Role, from domain.Status) []domain.Status {
	var targets []domain.Status
	for _, to := range domain.Statuses {
		if CanTransition(role, from, to) {
			targets = append(targets, to)
		}
	}
	return targets
}
