package event

// Type identifies the type of domain event
type Type string

const (
	TypeVoucherCreated  Type = "voucher.created"
	TypeVoucherApproved Type = "voucher.approved"
	TypeVoucherRejected Type = "voucher.rejected"
	TypeVoucherRedeemed Type = "voucher.redeemed"
	// TypeLegacyStatus is raised when the backend answers with an older status vocabulary
	TypeLegacyStatus Type = "voucher.status_legacy"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeVoucherCreated,
		TypeVoucherApproved,
		TypeVoucherRejected,
		TypeVoucherRedeemed,
		TypeLegacyStatus:
		return true
	default:
		return false
	}
}
