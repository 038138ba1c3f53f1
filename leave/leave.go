/*
Package leave reconciles leave-type entitlements with per-user balances.

PURPOSE:
  Leave types are reference data (a name and a per-period limit). Balances
  are per-user override rows recording what was used and what remains.
  Reconcile merges the two into one view per leave type, so a user with no
  balance row yet still sees the full entitlement.

DEFAULT POLICY:
  No balance row for (user, leave type)  ->  used = 0, remaining = limit
  A balance row                          ->  used/remaining copied untouched

UNIQUENESS:
  At most one balance row may exist per (user, leave type). Storage enforces
  it with a unique index; Reconcile reports a DuplicateBalanceError if it
  ever receives two.
*/
package leave

import (
	"errors"
	"fmt"
	"sort"
)

// ErrDuplicateBalance is the sentinel behind DuplicateBalanceError.
var ErrDuplicateBalance = errors.New("duplicate leave balance")

// DuplicateBalanceError names the (user, leave type) pair that has two balance rows.
type DuplicateBalanceError struct {
	UserID      string
	LeaveTypeID string
}

func (e *DuplicateBalanceError) Error() string {
	return fmt.Sprintf("duplicate leave balance for user %s, leave type %s", e.UserID, e.LeaveTypeID)
}

func (e *DuplicateBalanceError) Unwrap() error {
	return ErrDuplicateBalance
}

// LeaveType is a named category of absence with its entitlement in days per period.
type LeaveType struct {
	ID          string
	Name        string
	Limit       int
	Description string
}

// LeaveBalance is one user's consumption of one leave type.
type LeaveBalance struct {
	UserID      string
	LeaveTypeID string
	Used        int
	Remaining   int
}

// LeaveTypeView is a leave type merged with the user's balance.
type LeaveTypeView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Limit       int    `json:"limit"`
	Description string `json:"description"`
	Used        int    `json:"used"`
	Remaining   int    `json:"remaining"`
}

// Reconcile returns one view per leave type, in the order of types.
// balances may hold rows for any user; only userID's rows are considered.
func Reconcile(types []LeaveType, balances []LeaveBalance, userID string) ([]LeaveTypeView, error) {
	byType := make(map[string]LeaveBalance, len(types))
	for _, b := range balances {
		if b.UserID != userID {
			continue
		}
		if _, dup := byType[b.LeaveTypeID]; dup {
			return nil, &DuplicateBalanceError{UserID: userID, LeaveTypeID: b.LeaveTypeID}
		}
		byType[b.LeaveTypeID] = b
	}

	views := make([]LeaveTypeView, 0, len(types))
	for _, lt := range types {
		view := LeaveTypeView{
			ID:          lt.ID,
			Name:        lt.Name,
			Limit:       lt.Limit,
			Description: lt.Description,
			Used:        0,
			Remaining:   lt.Limit,
		}
		if b, ok := byType[lt.ID]; ok {
			view.Used = b.Used
			view.Remaining = b.Remaining
		}
		views = append(views, view)
	}
	return views, nil
}

// SortByName orders views by name, keeping input order for equal names.
func SortByName(views []LeaveTypeView) {
	sort.SliceStable(views, func(i, j int) bool { return views[i].Name < views[j].Name })
}
