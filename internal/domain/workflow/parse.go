package workflow

import (
	"fmt"
	"strings"
)

// legacyStates maps status values written by older revisions of the backend.
// The three-state vocabulary (AUTORIZADA, CANCELADA) predates redemption tracking.
var legacyStates = map[string]State{
	"PENDENTE":   StatePending,
	"APROVADA":   StateApproved,
	"AUTORIZADA": StateApproved,
	"REPROVADA":  StateRejected,
	"CANCELADA":  StateRejected,
	"UTILIZADA":  StateRedeemed,
}

// ParseState converts a raw status value into a lifecycle state.
// legacy is true when the value came from an older vocabulary and was mapped.
func ParseState(raw string) (state State, legacy bool, err error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	if s := State(value); s.IsValid() {
		return s, false, nil
	}
	if s, ok := legacyStates[value]; ok {
		return s, true, nil
	}
	return "", false, fmt.Errorf("%w: %q", ErrInvalidState, raw)
}
