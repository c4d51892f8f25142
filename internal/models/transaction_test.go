package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransactionStatusMachine(t *testing.T) {
	pending := &Transaction{Status: TransactionStatusPending}
	require.True(t, pending.CanTransitionTo(TransactionStatusCompleted))
	require.True(t, pending.CanTransitionTo(TransactionStatusFailed))
	require.True(t, pending.CanTransitionTo(TransactionStatusCancelled))
	require.False(t, pending.CanTransitionTo(TransactionStatusPending))

	// Terminal states never move, in particular never back to PENDING.
	for _, terminal := range []TransactionStatusType{
		TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled,
	} {
		txn := &Transaction{Status: terminal}
		for _, next := range []TransactionStatusType{
			TransactionStatusPending, TransactionStatusCompleted,
			TransactionStatusFailed, TransactionStatusCancelled,
		} {
			require.False(t, txn.CanTransitionTo(next), "%s -> %s must be rejected", terminal, next)
		}
	}
}
