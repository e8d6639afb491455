package entity

import (
	"strings"
	"time"

	"github.com/garyjia/river-voucher/internal/domain/workflow"
)

// DateLayout is the wire and storage layout of departure dates
const DateLayout = "2006-01-02"

// Voucher is a river-travel requisition issued on behalf of a passenger.
// ID and PublicCode are assigned by the server and never change.
type Voucher struct {
	ID         int64          `json:"id"`
	PublicCode string         `json:"public_code"`
	Number     string         `json:"number,omitempty"`
	Status     workflow.State `json:"status"`
	IssuerID   string         `json:"issuer_id,omitempty"`

	RepresentativeName string `json:"representative_name,omitempty"`
	RepresentativeCPF  string `json:"representative_cpf,omitempty"`

	PassengerName string `json:"passenger_name"`
	PassengerCPF  string `json:"passenger_cpf,omitempty"`
	PassengerRG   string `json:"passenger_rg,omitempty"`
	RequesterKind string `json:"requester_kind,omitempty"`

	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureDate string `json:"departure_date"`
	Justification string `json:"justification,omitempty"`
	CarrierName   string `json:"carrier_name"`

	CreatedAt          time.Time  `json:"created_at"`
	DecidedAt          *time.Time `json:"decided_at,omitempty"`
	RejectionReason    string     `json:"rejection_reason,omitempty"`
	RedeemedAt         *time.Time `json:"redeemed_at,omitempty"`
	RedeemedBy         string     `json:"redeemed_by,omitempty"`
	RedemptionLocation string     `json:"redemption_location,omitempty"`
}

// DisplayNumber returns the label printed on the voucher stub:
// the formatted number, else the public code, else the id.
func (v *Voucher) DisplayNumber() string {
	if n := strings.TrimSpace(v.Number); n != "" {
		return n
	}
	if v.PublicCode != "" {
		return v.PublicCode
	}
	return formatID(v.ID)
}

// IsRedeemed reports whether the voucher has already been used for boarding
func (v *Voucher) IsRedeemed() bool {
	return v.Status == workflow.StateRedeemed
}

// CreateVoucherInput carries the issuer-entered fields of a new requisition
type CreateVoucherInput struct {
	PassengerName      string `json:"passenger_name"`
	PassengerCPF       string `json:"passenger_cpf"`
	PassengerRG        string `json:"passenger_rg"`
	RequesterKind      string `json:"requester_kind"`
	Origin             string `json:"origin"`
	Destination        string `json:"destination"`
	DepartureDate      string `json:"departure_date"`
	Justification      string `json:"justification"`
	CarrierName        string `json:"carrier_name"`
	SectorID           string `json:"sector_id,omitempty"`
	RepresentativeName string `json:"representative_name,omitempty"`
}

// ListFilter narrows a voucher listing. Zero values mean "no constraint".
type ListFilter struct {
	Status      workflow.State
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Query       string
	CarrierName string
	PublicCode  string
}
