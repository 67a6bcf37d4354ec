package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/perchfin/perch-backend/internal/store"
)

func TestSetPIN_Validation(t *testing.T) {
	service := newTestService(newStubRepo())
	userID := uuid.New()

	if err := service.SetPIN(context.Background(), userID, "123"); err == nil {
		t.Error("expected error for too-short pin")
	}
	if err := service.SetPIN(context.Background(), userID, "1234567"); err == nil {
		t.Error("expected error for too-long pin")
	}
	if err := service.SetPIN(context.Background(), userID, "12a4"); err == nil {
		t.Error("expected error for non-digit pin")
	}
	if err := service.SetPIN(context.Background(), userID, "1234"); err != nil {
		t.Errorf("valid pin rejected: %v", err)
	}
}

func TestVerifyPIN_IssuesUsableToken(t *testing.T) {
	repo := newStubRepo()
	service := newTestService(repo)
	userID := uuid.New()

	if err := service.SetPIN(context.Background(), userID, "4242"); err != nil {
		t.Fatalf("SetPIN failed: %v", err)
	}

	token, err := service.VerifyPINAndIssueToken(context.Background(), userID, "4242")
	if err != nil {
		t.Fatalf("VerifyPINAndIssueToken failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected a non-empty token")
	}
	if err := service.ValidatePINToken(token, userID); err != nil {
		t.Errorf("freshly issued token failed validation: %v", err)
	}
	// A token is bound to the user it was issued to.
	if err := service.ValidatePINToken(token, uuid.New()); !errors.Is(err, ErrInvalidPIN) {
		t.Errorf("expected ErrInvalidPIN for a different user, got %v", err)
	}
}

func TestVerifyPIN_WrongPINFails(t *testing.T) {
	repo := newStubRepo()
	service := newTestService(repo)
	userID := uuid.New()

	if err := service.SetPIN(context.Background(), userID, "4242"); err != nil {
		t.Fatalf("SetPIN failed: %v", err)
	}

	_, err := service.VerifyPINAndIssueToken(context.Background(), userID, "0000")
	if !errors.Is(err, ErrInvalidPIN) {
		t.Fatalf("expected ErrInvalidPIN, got %v", err)
	}
	if repo.creds[userID].FailedAttempts != 1 {
		t.Errorf("expected one recorded failure, got %d", repo.creds[userID].FailedAttempts)
	}
}

func TestVerifyPIN_LocksAfterRepeatedFailures(t *testing.T) {
	repo := newStubRepo()
	service := newTestService(repo)
	userID := uuid.New()

	if err := service.SetPIN(context.Background(), userID, "4242"); err != nil {
		t.Fatalf("SetPIN failed: %v", err)
	}

	var lastErr error
	for i := 0; i < 5; i++ {
		_, lastErr = service.VerifyPINAndIssueToken(context.Background(), userID, "0000")
	}
	if !errors.Is(lastErr, ErrPINLocked) {
		t.Fatalf("expected ErrPINLocked on the fifth failure, got %v", lastErr)
	}

	// Even the correct PIN is rejected while locked.
	_, err := service.VerifyPINAndIssueToken(context.Background(), userID, "4242")
	if !errors.Is(err, ErrPINLocked) {
		t.Fatalf("expected ErrPINLocked with correct pin while locked, got %v", err)
	}
}

func TestVerifyPIN_SuccessResetsFailureCount(t *testing.T) {
	repo := newStubRepo()
	service := newTestService(repo)
	userID := uuid.New()

	if err := service.SetPIN(context.Background(), userID, "4242"); err != nil {
		t.Fatalf("SetPIN failed: %v", err)
	}
	if _, err := service.VerifyPINAndIssueToken(context.Background(), userID, "0000"); !errors.Is(err, ErrInvalidPIN) {
		t.Fatalf("expected ErrInvalidPIN, got %v", err)
	}
	if _, err := service.VerifyPINAndIssueToken(context.Background(), userID, "4242"); err != nil {
		t.Fatalf("correct pin failed: %v", err)
	}
	if repo.creds[userID].FailedAttempts != 0 {
		t.Errorf("expected failure count reset, got %d", repo.creds[userID].FailedAttempts)
	}
}

func TestVerifyPIN_NotSet(t *testing.T) {
	service := newTestService(newStubRepo())

	_, err := service.VerifyPINAndIssueToken(context.Background(), uuid.New(), "4242")
	if !errors.Is(err, store.ErrPINNotSet) {
		t.Fatalf("expected ErrPINNotSet, got %v", err)
	}
}
