package leave_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/workday-engine/leave"
)

func TestReconcile_NewEmployeeGetsFullEntitlement(t *testing.T) {
	// GIVEN: One leave type and no balance rows
	// WHEN: Reconciling for u1
	// THEN: used = 0, remaining = limit
	types := []leave.LeaveType{{ID: "CL", Name: "Casual", Limit: 12}}

	views, err := leave.Reconcile(types, nil, "u1")
	require.NoError(t, err)
	assert.Equal(t, []leave.LeaveTypeView{
		{ID: "CL", Name: "Casual", Limit: 12, Used: 0, Remaining: 12},
	}, views)
}

func TestReconcile_BalanceRowCopiedUntouched(t *testing.T) {
	types := []leave.LeaveType{
		{ID: "CL", Name: "Casual", Limit: 12},
		{ID: "SL", Name: "Sick", Limit: 10, Description: "Doctor's note after 2 days"},
	}
	// remaining deliberately inconsistent with limit-used: the row wins as-is
	balances := []leave.LeaveBalance{
		{UserID: "u1", LeaveTypeID: "SL", Used: 3, Remaining: 9},
	}

	views, err := leave.Reconcile(types, balances, "u1")
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Equal(t, "CL", views[0].ID)
	assert.Equal(t, 0, views[0].Used)
	assert.Equal(t, 12, views[0].Remaining)

	assert.Equal(t, "SL", views[1].ID)
	assert.Equal(t, 3, views[1].Used)
	assert.Equal(t, 9, views[1].Remaining)
	assert.Equal(t, "Doctor's note after 2 days", views[1].Description)
}

func TestReconcile_IgnoresOtherUsersAndOrphanRows(t *testing.T) {
	types := []leave.LeaveType{{ID: "CL", Name: "Casual", Limit: 12}}
	balances := []leave.LeaveBalance{
		{UserID: "u2", LeaveTypeID: "CL", Used: 5, Remaining: 7},
		{UserID: "u1", LeaveTypeID: "GONE", Used: 1, Remaining: 1},
	}

	views, err := leave.Reconcile(types, balances, "u1")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, 0, views[0].Used)
	assert.Equal(t, 12, views[0].Remaining)
}

func TestReconcile_PreservesTypeOrderAndDoesNotMutate(t *testing.T) {
	types := []leave.LeaveType{
		{ID: "Z", Name: "Zeta", Limit: 1},
		{ID: "A", Name: "Alpha", Limit: 2},
	}
	balances := []leave.LeaveBalance{{UserID: "u1", LeaveTypeID: "A", Used: 2, Remaining: 0}}
	typesBefore := append([]leave.LeaveType(nil), types...)
	balancesBefore := append([]leave.LeaveBalance(nil), balances...)

	views, err := leave.Reconcile(types, balances, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Z", views[0].ID)
	assert.Equal(t, "A", views[1].ID)
	assert.Equal(t, typesBefore, types)
	assert.Equal(t, balancesBefore, balances)

	leave.SortByName(views)
	assert.Equal(t, "A", views[0].ID)
}

func TestReconcile_DuplicateBalanceFailsLoudly(t *testing.T) {
	types := []leave.LeaveType{{ID: "CL", Name: "Casual", Limit: 12}}
	balances := []leave.LeaveBalance{
		{UserID: "u1", LeaveTypeID: "CL", Used: 1, Remaining: 11},
		{UserID: "u1", LeaveTypeID: "CL", Used: 2, Remaining: 10},
	}

	views, err := leave.Reconcile(types, balances, "u1")
	assert.Nil(t, views)
	assert.ErrorIs(t, err, leave.ErrDuplicateBalance)

	var dupErr *leave.DuplicateBalanceError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "u1", dupErr.UserID)
	assert.Equal(t, "CL", dupErr.LeaveTypeID)
}

func TestReconcile_EmptyTypes(t *testing.T) {
	views, err := leave.Reconcile(nil, nil, "u1")
	require.NoError(t, err)
	assert.Empty(t, views)
	assert.NotNil(t, views)
}
