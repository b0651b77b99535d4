package rules

import (
	"fmt"

	"caseline/internal/domain"
)

// Catalog is the set of named escalation reasons. It is static configuration:
// built once at startup (from the built-in defaults or caseline.yml) and
// treated as authoritative when validating escalation requests.
type Catalog struct {
	reasons []domain.EscalationReason
	byID    map[string]domain.EscalationReason
}

// NewCatalog builds a catalog from reason entries, rejecting duplicates and
// unknown target roles.
func NewCatalog(reasons []domain.EscalationReason) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]domain.EscalationReason, len(reasons))}
	for _, r := range reasons {
		if r.ID == "" {
			return nil, fmt.Errorf("escalation reason with empty id")
		}
		if _, dup := c.byID[r.ID]; dup {
			return nil, fmt.Errorf("duplicate escalation reason %s", r.ID)
		}
		switch r.TargetRole {
		case domain.RoleManager, domain.RoleFirstLine, domain.RoleSecondLine:
		default:
			return nil, fmt.Errorf("escalation reason %s has invalid target role %q", r.ID, r.TargetRole)
		}
		c.byID[r.ID] = r
		c.reasons = append(c.reasons, r)
	}
	return c, nil
}

// DefaultCatalog returns the built-in reason set from the review-flow guide.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultReasons())
	if err != nil {
		panic(err) // built-in table, cannot be invalid
	}
	return c
}

// DefaultReasons lists the built-in escalation reasons.
func DefaultReasons() []domain.EscalationReason {
	return []domain.EscalationReason{
		{ID: "gfc_intelligence", Label: "GFC Intelligence flagged", Description: "Global Financial Crimes intelligence indicates concern", RequiresManager: true, TargetRole: domain.RoleSecondLine},
		{ID: "risk_drivers_high", Label: "Risk drivers >10", Description: "Total risk CRR drivers exceeds threshold", RequiresManager: true, TargetRole: domain.RoleFirstLine},
		{ID: "new_risk_factors", Label: "New risk factors >=5", Description: "Five or more new risk factors since last refresh", RequiresManager: true, TargetRole: domain.RoleFirstLine},
		{ID: "trms_referral", Label: "TRMS referral required", Description: "Transaction Risk Management System referral needed", RequiresManager: true, TargetRole: domain.RoleFirstLine},
		{ID: "client_escalation", Label: "Client Escalation Committee", Description: "Case requires client escalation committee review", RequiresManager: true, TargetRole: domain.RoleSecondLine},
		{ID: "beneficial_ownership", Label: "Beneficial ownership changes", Description: "Significant changes in beneficial ownership structure", RequiresManager: false, TargetRole: domain.RoleFirstLine},
		{ID: "address_change", Label: "Address changes", Description: "Significant address or location changes", RequiresManager: false, TargetRole: domain.RoleFirstLine},
		{ID: "naics_change", Label: "Nature of Business changes", Description: "Changes in business nature or industry classification", RequiresManager: false, TargetRole: domain.RoleFirstLine},
		{ID: "income_source", Label: "Source of Income changes", Description: "Changes in source of income for individual clients", RequiresManager: false, TargetRole: domain.RoleFirstLine},
		{ID: "incomplete_info", Label: "Required information incomplete", Description: "Missing required data elements", RequiresManager: false, TargetRole: domain.RoleManager},
		{ID: "cancellation", Label: "Client cancellation required", Description: "Case requires client relationship cancellation", RequiresManager: true, TargetRole: domain.RoleManager},
	}
}

// Get returns a reason by id.
func (c *Catalog) Get(id string) (domain.EscalationReason, bool) {
	r, ok := c.byID[id]
	return r, ok
}

// All returns every reason in catalog order.
func (c *Catalog) All() []domain.EscalationReason {
	out := make([]domain.EscalationReason, len(c.reasons))
	copy(out, c.reasons)
	return out
}

// ForType returns the reasons offered once an escalation type is chosen. The
// cancellation track offers the full catalog.
func (c *Catalog) ForType(t domain.EscalationType) []domain.EscalationReason {
	target, ok := targetRoleFor(t)
	if !ok {
		return c.All()
	}
	var out []domain.EscalationReason
	for _, r := range c.reasons {
		if r.TargetRole == target {
			out = append(out, r)
		}
	}
	return out
}

// targetRoleFor maps an escalation type to the role its reasons must target.
func targetRoleFor(t domain.EscalationType) (domain.Role, bool) {
	switch t {
	case domain.EscalationFirstLine:
		return domain.RoleFirstLine, true
	case domain.EscalationSecondLine:
		return domain.RoleSecondLine, true
	case domain.EscalationManager:
		return domain.RoleManager, true
	default:
		return "", false
	}
}

// ValidateSelection checks that every selected reason id exists and is
// consistent with the chosen escalation type, and reports whether any
// selected reason forces the manager approval path.
func (c *Catalog) ValidateSelection(t domain.EscalationType, ids []string) (requiresManager bool, err error) {
	target, constrained := targetRoleFor(t)
	for _, id := range ids {
		r, ok := c.Get(id)
		if !ok {
			return false, fmt.Errorf("unknown escalation reason %s", id)
		}
		if constrained && r.TargetRole != target {
			return false, fmt.Errorf("escalation reason %s targets %s, not the %s track", id, r.TargetRole, t)
		}
		if r.RequiresManager {
			requiresManager = true
		}
	}
	return requiresManager, nil
}
