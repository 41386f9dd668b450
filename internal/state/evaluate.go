// Package state holds the pure decision function mapping a computer's
// competing claims (maintenance holds, usage sessions, class reservations)
// to a single authoritative availability state.
package state

import (
	"fmt"

	"labreserve-backend/internal/model"
)

// Inputs are the claims gathered for one computer at a point in time. Hold
// and Session are the open records for the computer, if any; Reservation is
// a reservation for the computer's lab whose window covers the evaluation
// instant, if any.
type Inputs struct {
	Hold        *model.MaintenanceHold
	Session     *model.UsageSession
	Reservation *model.Reservation
}

// Evaluate resolves the precedence between the claims. The order is strict:
// an open maintenance hold always wins, then an open session, then an
// active reservation, otherwise the computer is available. Maintenance and
// InUse are sticky: they are inputs here and are only ever cleared by the
// explicit close actions, never by the sweeper.
func Evaluate(in Inputs) (model.ComputerState, string) {
	if in.Hold != nil && in.Hold.EndedAt == nil {
		return model.StateMaintenance, fmt.Sprintf("hold:%d", in.Hold.ID)
	}
	if in.Session != nil && in.Session.EndedAt == nil {
		return model.StateInUse, fmt.Sprintf("session:%d", in.Session.ID)
	}
	if in.Reservation != nil {
		return model.StateReserved, fmt.Sprintf("reservation:%d", in.Reservation.ID)
	}
	return model.StateAvailable, ""
}

// SweeperOwned reports whether the stored state may be overwritten by a
// reconciliation sweep. Only the Available↔Reserved transition belongs to
// the sweeper.
func SweeperOwned(s model.ComputerState) bool {
	return s == model.StateAvailable || s == model.StateReserved
}
