package entity

import (
	"fmt"
	"strings"

	"github.com/garyjia/river-voucher/internal/domain/workflow"
)

// Decision is a representative's verdict on a pending requisition
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// ParseDecision accepts APPROVE/REJECT and their Portuguese equivalents
func ParseDecision(raw string) (Decision, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "APPROVE", "APROVAR", "APROVADA":
		return DecisionApprove, nil
	case "REJECT", "REPROVAR", "REPROVADA":
		return DecisionReject, nil
	}
	return "", fmt.Errorf("%w: unknown decision %q", ErrInvalidInput, raw)
}

// Trigger maps the decision onto the lifecycle trigger it fires
func (d Decision) Trigger() workflow.Trigger {
	if d == DecisionReject {
		return workflow.TriggerReject
	}
	return workflow.TriggerApprove
}
