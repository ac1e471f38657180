package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOperationsByStatus(t *testing.T) {
	ops := []Operation{EditBid, RecordResponses, Allocate, RecordClosure, RecordInvoice}

	for _, st := range []Status{Draft, InField, Closure, ReadyForInvoice} {
		for _, op := range ops {
			require.True(t, st.Allows(op), "%s %s", st, op)
		}
	}
	for _, op := range ops {
		require.False(t, Rejected.Allows(op), op)
	}
	require.True(t, Invoiced.Allows(RecordInvoice))
	require.False(t, Invoiced.Allows(EditBid))
	require.False(t, Invoiced.Allows(Allocate))
	require.False(t, Status("archived").Allows(EditBid))
}

func TestGuard(t *testing.T) {
	require.NoError(t, Guard("in_field", EditBid))
	require.ErrorIs(t, Guard("invoiced", EditBid), ErrInvalidTransition)
	require.ErrorIs(t, Guard("rejected", RecordResponses), ErrInvalidTransition)
	require.NoError(t, Guard("invoiced", RecordInvoice))
	require.ErrorIs(t, Guard("archived", EditBid), ErrUnknownStatus)
}
