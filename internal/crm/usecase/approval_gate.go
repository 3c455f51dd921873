package usecase

import (
	"fmt"
	"strings"
	"unicode"

	"dealdesk-backend/internal/crm/domain"
)

type ApprovalDecision string

const (
	ApprovalApproved ApprovalDecision = "approved"
	ApprovalPending  ApprovalDecision = "pending"
	ApprovalDenied   ApprovalDecision = "denied"
)

// VendorApprovalGate decides whether a newly discovered vendor name may
// become a vendor row. A non-approved decision is a per-vendor import
// error, never an exception.
type VendorApprovalGate interface {
	Approve(name string) (ApprovalDecision, string)
}

// policyGate is the default rule-based gate: it denies obviously junk
// names and sends suspicious ones to manual review.
type policyGate struct {
	minLength int
}

func NewPolicyGate() VendorApprovalGate {
	return &policyGate{minLength: 2}
}

func (g *policyGate) Approve(name string) (ApprovalDecision, string) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ApprovalDenied, "vendor name is empty"
	}
	if len(domain.NormalizeVendorName(trimmed)) < g.minLength {
		return ApprovalDenied, fmt.Sprintf("vendor name %q is too short", trimmed)
	}
	if isNumericOnly(trimmed) {
		return ApprovalDenied, fmt.Sprintf("vendor name %q contains no letters", trimmed)
	}
	if strings.ContainsAny(trimmed, "<>{}|\\") {
		return ApprovalPending, fmt.Sprintf("vendor name %q needs manual review", trimmed)
	}
	return ApprovalApproved, ""
}

func isNumericOnly(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
