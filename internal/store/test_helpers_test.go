package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/assignly/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestAssignment creates a PENDING_REVIEW assignment owned by student.
func createTestAssignment(id, student string) domain.Assignment {
	return domain.Assignment{
		ID:            id,
		Title:         "Essay " + id,
		Description:   "",
		Subject:       "History",
		Budget:        decimal.RequireFromString("100"),
		Deadline:      baseTime.Add(7 * 24 * time.Hour),
		Status:        domain.StatusPendingReview,
		PaymentStatus: domain.PaymentUnpaid,
		Student:       student,
		CreatedAt:     baseTime,
		UpdatedAt:     baseTime,
	}
}

// createTestTransaction creates a PENDING transaction for assignmentID.
func createTestTransaction(id, assignmentID, intentID string) domain.Transaction {
	return domain.Transaction{
		ID:              id,
		AssignmentID:    assignmentID,
		User:            "stu",
		Amount:          decimal.RequireFromString("80"),
		PlatformFee:     decimal.RequireFromString("8"),
		Currency:        "inr",
		GatewayIntentID: intentID,
		Status:          domain.TxPending,
		CreatedAt:       baseTime,
		UpdatedAt:       baseTime,
	}
}

// insertConfirmed stores an assignment already moved to CONFIRMED with provider "prov".
func insertConfirmed(t *testing.T, s *Store, id string) domain.Assignment {
	t.Helper()
	a := createTestAssignment(id, "stu")
	a.Status = domain.StatusConfirmed
	provider := "prov"
	a.Provider = &provider
	a.Budget = decimal.RequireFromString("80")
	require.NoError(t, s.CreateAssignment(context.Background(), a))
	return a
}
