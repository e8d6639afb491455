package entity

import (
	"strconv"
	"time"
)

// RedemptionKindBoarding is the only validation kind carriers record
const RedemptionKindBoarding = "EMBARQUE"

// RedemptionRequest is what a carrier submits when confirming a boarding
type RedemptionRequest struct {
	ActorID        string `json:"actor_id"`
	ScanSourceCode string `json:"scan_source_code"`
	Location       string `json:"location,omitempty"`
	Kind           string `json:"kind"`
	Note           string `json:"note,omitempty"`
}

// AuthorizationRequest is what a representative submits when deciding
type AuthorizationRequest struct {
	Decision           Decision `json:"decision"`
	ActorID            string   `json:"actor_id"`
	Reason             string   `json:"reason,omitempty"`
	RepresentativeName string   `json:"representative_name,omitempty"`
	RepresentativeCPF  string   `json:"representative_cpf,omitempty"`
}

// VoucherHistory is one audit row of a status change in the local backend
type VoucherHistory struct {
	ID             int64     `json:"id"`
	VoucherID      int64     `json:"voucher_id"`
	ActorID        string    `json:"actor_id"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	ActionType     string    `json:"action_type"`
	ActionData     string    `json:"action_data"`
	Timestamp      time.Time `json:"timestamp"`
}

// Redemption is the boarding record written when a voucher is used
type Redemption struct {
	ID             int64     `json:"id"`
	VoucherID      int64     `json:"voucher_id"`
	ActorID        string    `json:"actor_id"`
	ScanSourceCode string    `json:"scan_source_code"`
	Kind           string    `json:"kind"`
	Location       string    `json:"location,omitempty"`
	Note           string    `json:"note,omitempty"`
	RedeemedAt     time.Time `json:"redeemed_at"`
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
