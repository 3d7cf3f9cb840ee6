package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/praxos/assistant-core/internal/domain"
	"github.com/praxos/assistant-core/internal/domain/mocks"
	"github.com/praxos/assistant-core/internal/usecase"
)

func TestRegister_BothSidesSucceed(t *testing.T) {
	t.Parallel()
	auth := mocks.NewMockAuthService(t)
	ledger := mocks.NewMockBillingLedger(t)
	retry := mocks.NewMockBillingRetryRepository(t)

	auth.On("RegisterIdentity", mock.Anything, "zoe", "s3cret", "pro").Return("u-9", nil)
	ledger.On("CreateAccount", mock.Anything, "u-9", "pro").Return(nil)

	svc := usecase.NewRegistrationService(auth, ledger, retry, nil)
	userID, deferred, err := svc.Register(context.Background(), "zoe", "s3cret", "Pro")
	require.NoError(t, err)
	assert.Equal(t, "u-9", userID)
	assert.False(t, deferred)
}

func TestRegister_IdentityFailureFailsFast(t *testing.T) {
	t.Parallel()
	auth := mocks.NewMockAuthService(t)
	ledger := mocks.NewMockBillingLedger(t)
	retry := mocks.NewMockBillingRetryRepository(t)

	auth.On("RegisterIdentity", mock.Anything, "zoe", "s3cret", "free").
		Return("", domain.ErrConflict)

	svc := usecase.NewRegistrationService(auth, ledger, retry, nil)
	_, _, err := svc.Register(context.Background(), "zoe", "s3cret", "")
	require.ErrorIs(t, err, domain.ErrConflict)
	ledger.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegister_BillingFailureDefersToQueue(t *testing.T) {
	t.Parallel()
	auth := mocks.NewMockAuthService(t)
	ledger := mocks.NewMockBillingLedger(t)
	retry := mocks.NewMockBillingRetryRepository(t)

	auth.On("RegisterIdentity", mock.Anything, "zoe", "s3cret", "free").Return("u-9", nil)
	ledger.On("CreateAccount", mock.Anything, "u-9", "free").Return(domain.ErrTransport)
	retry.On("Upsert", mock.Anything, mock.MatchedBy(func(p domain.PendingBillingAccount) bool {
		return p.UserID == "u-9" &&
			p.Tier == "free" &&
			p.Status == domain.BillingAccountPending &&
			p.MaxRetries == domain.DefaultBillingMaxRetries &&
			!p.NextRetryAt.IsZero()
	})).Return(nil)

	svc := usecase.NewRegistrationService(auth, ledger, retry, nil)
	userID, deferred, err := svc.Register(context.Background(), "zoe", "s3cret", "free")
	require.NoError(t, err)
	assert.Equal(t, "u-9", userID)
	assert.True(t, deferred)
}

func TestRunRetryPass_SuccessLeavesWorkingSet(t *testing.T) {
	t.Parallel()
	auth := mocks.NewMockAuthService(t)
	ledger := mocks.NewMockBillingLedger(t)
	retry := mocks.NewMockBillingRetryRepository(t)

	item := domain.PendingBillingAccount{
		UserID: "u-9", Tier: "free",
		Status: domain.BillingAccountPending, RetryCount: 1,
		MaxRetries: domain.DefaultBillingMaxRetries,
	}
	retry.On("ListDue", mock.Anything, mock.AnythingOfType("time.Time"), 50).
		Return([]domain.PendingBillingAccount{item}, nil)
	ledger.On("CreateAccount", mock.Anything, "u-9", "free").Return(nil)
	retry.On("MarkCompleted", mock.Anything, "u-9", mock.AnythingOfType("time.Time")).Return(nil)

	svc := usecase.NewRegistrationService(auth, ledger, retry, nil)
	res, err := svc.RunRetryPass(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempted)
	assert.Equal(t, 1, res.Completed)
}

func TestRunRetryPass_FailureBacksOffExponentially(t *testing.T) {
	t.Parallel()
	auth := mocks.NewMockAuthService(t)
	ledger := mocks.NewMockBillingLedger(t)
	retry := mocks.NewMockBillingRetryRepository(t)

	// Second retry (count 1→2) must schedule 1m out: 30s·2^1.
	item := domain.PendingBillingAccount{
		UserID: "u-9", Tier: "free",
		Status: domain.BillingAccountRetrying, RetryCount: 1,
		MaxRetries: domain.DefaultBillingMaxRetries,
	}
	retry.On("ListDue", mock.Anything, mock.AnythingOfType("time.Time"), 50).
		Return([]domain.PendingBillingAccount{item}, nil)
	ledger.On("CreateAccount", mock.Anything, "u-9", "free").Return(domain.ErrTransport)
	retry.On("RecordFailure", mock.Anything, "u-9",
		mock.AnythingOfType("time.Time"), mock.AnythingOfType("string"),
		mock.MatchedBy(func(next time.Time) bool {
			until := time.Until(next)
			return until > 55*time.Second && until <= 61*time.Second
		}), false).Return(nil)

	svc := usecase.NewRegistrationService(auth, ledger, retry, nil)
	res, err := svc.RunRetryPass(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Retried)
	assert.Zero(t, res.Permanent)
}

func TestRunRetryPass_ExhaustedBudgetGoesPermanent(t *testing.T) {
	t.Parallel()
	auth := mocks.NewMockAuthService(t)
	ledger := mocks.NewMockBillingLedger(t)
	retry := mocks.NewMockBillingRetryRepository(t)
	pub := mocks.NewMockEventPublisher(t)

	item := domain.PendingBillingAccount{
		UserID: "u-9", Tier: "free",
		Status: domain.BillingAccountRetrying, RetryCount: 4,
		MaxRetries: domain.DefaultBillingMaxRetries,
	}
	retry.On("ListDue", mock.Anything, mock.AnythingOfType("time.Time"), 50).
		Return([]domain.PendingBillingAccount{item}, nil)
	ledger.On("CreateAccount", mock.Anything, "u-9", "free").Return(domain.ErrTransport)
	retry.On("RecordFailure", mock.Anything, "u-9",
		mock.AnythingOfType("time.Time"), mock.AnythingOfType("string"),
		mock.AnythingOfType("time.Time"), true).Return(nil)
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(e domain.Event) bool {
		return e.Kind == domain.EventBillingAccountPermanent &&
			e.Severity == domain.SeverityCritical &&
			e.UserID == "u-9"
	})).Return(nil)

	svc := usecase.NewRegistrationService(auth, ledger, retry, pub)
	res, err := svc.RunRetryPass(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Permanent)
	assert.Zero(t, res.Retried)
}
