package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/henriquesd/dev-store/internal/billing/domain"
	"github.com/henriquesd/dev-store/internal/billing/gateway"
	"github.com/henriquesd/dev-store/internal/metrics"
)

type fakeTransactionRepo struct {
	rows []*domain.Transaction

	authorizedErr error
	settlementErr error
	addErr        error
	getErr        error

	// onAuthorizedConflict runs when AddAuthorized fails, standing in for a
	// concurrent writer committing between the read and the insert.
	onAuthorizedConflict func()
}

func (f *fakeTransactionRepo) AddAuthorized(_ context.Context, tx *domain.Transaction) error {
	if f.authorizedErr != nil {
		if f.onAuthorizedConflict != nil {
			f.onAuthorizedConflict()
		}
		return f.authorizedErr
	}
	f.rows = append(f.rows, tx)
	return nil
}

func (f *fakeTransactionRepo) AddSettlement(_ context.Context, tx *domain.Transaction) error {
	if f.settlementErr != nil {
		return f.settlementErr
	}
	f.rows = append(f.rows, tx)
	return nil
}

func (f *fakeTransactionRepo) Add(_ context.Context, tx *domain.Transaction) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.rows = append(f.rows, tx)
	return nil
}

func (f *fakeTransactionRepo) GetByOrderID(_ context.Context, orderID string) ([]*domain.Transaction, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	var out []*domain.Transaction
	for _, tx := range f.rows {
		if tx.OrderID == orderID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (f *fakeTransactionRepo) withStatus(status domain.TransactionStatus) []*domain.Transaction {
	var out []*domain.Transaction
	for _, tx := range f.rows {
		if tx.Status == status {
			out = append(out, tx)
		}
	}
	return out
}

type fakeGateway struct {
	authorizeResult *gateway.Result
	authorizeErr    error
	authorizeCalls  int

	captureResult *gateway.Result
	captureErr    error
	captureCalls  int
	capturedRef   string

	cancelResult *gateway.Result
	cancelErr    error
	cancelCalls  int
	canceledRef  string
}

func (f *fakeGateway) Authorize(_ context.Context, _ gateway.Card, _ float64) (*gateway.Result, error) {
	f.authorizeCalls++
	return f.authorizeResult, f.authorizeErr
}

func (f *fakeGateway) Capture(_ context.Context, ref string, _ float64) (*gateway.Result, error) {
	f.captureCalls++
	f.capturedRef = ref
	return f.captureResult, f.captureErr
}

func (f *fakeGateway) Cancel(_ context.Context, ref string) (*gateway.Result, error) {
	f.cancelCalls++
	f.canceledRef = ref
	return f.cancelResult, f.cancelErr
}

type billingFixture struct {
	repo    *fakeTransactionRepo
	gateway *fakeGateway
	service BillingService
}

func newBillingFixture() *billingFixture {
	f := &billingFixture{
		repo: &fakeTransactionRepo{},
		gateway: &fakeGateway{
			authorizeResult: &gateway.Result{Status: gateway.StatusApproved, Ref: "auth-ref"},
			captureResult:   &gateway.Result{Status: gateway.StatusApproved, Ref: "cap-ref"},
			cancelResult:    &gateway.Result{Status: gateway.StatusApproved, Ref: "void-ref"},
		},
	}
	f.service = NewBillingService(
		f.repo, f.gateway,
		metrics.NewBillingMetrics(prometheus.NewRegistry()),
		zap.NewNop(),
	)
	return f
}

func authorizeRequest() *AuthorizeRequest {
	return &AuthorizeRequest{
		OrderID:      "order-1",
		ClientID:     "client-1",
		Amount:       140,
		Holder:       "Jane Roe",
		CardNumber:   "4539148803436467",
		Expiration:   "12/29",
		SecurityCode: "123",
	}
}

func TestAuthorizeTransaction_Approved(t *testing.T) {
	f := newBillingFixture()

	resp, err := f.service.AuthorizeTransaction(context.Background(), authorizeRequest())
	require.NoError(t, err)
	require.True(t, resp.Valid())

	assert.Equal(t, string(domain.TransactionStatusAuthorized), resp.Status)
	assert.NotEmpty(t, resp.TransactionID)
	assert.NotEmpty(t, resp.PaymentID)

	rows := f.repo.withStatus(domain.TransactionStatusAuthorized)
	require.Len(t, rows, 1)
	assert.Equal(t, "auth-ref", rows[0].GatewayRef)
	assert.Equal(t, "6467", rows[0].CardLastFour)
	assert.Equal(t, 140.0, rows[0].Amount)
}

func TestAuthorizeTransaction_Refused(t *testing.T) {
	f := newBillingFixture()
	f.gateway.authorizeResult = &gateway.Result{Status: gateway.StatusRefused, Reason: "invalid card number"}

	resp, err := f.service.AuthorizeTransaction(context.Background(), authorizeRequest())
	require.NoError(t, err, "a refusal is a verdict, not an error")
	require.False(t, resp.Valid())
	assert.Equal(t, refusedMessage, resp.Failures[0].Message)

	rows := f.repo.withStatus(domain.TransactionStatusDenied)
	require.Len(t, rows, 1, "refusals leave a DENIED row for auditing")
	assert.Equal(t, "invalid card number", rows[0].FailureReason)
	assert.Empty(t, f.repo.withStatus(domain.TransactionStatusAuthorized))
}

func TestAuthorizeTransaction_GatewayDown(t *testing.T) {
	f := newBillingFixture()
	f.gateway.authorizeResult = nil
	f.gateway.authorizeErr = gateway.ErrGatewayUnavailable

	resp, err := f.service.AuthorizeTransaction(context.Background(), authorizeRequest())
	require.NoError(t, err)
	require.False(t, resp.Valid(), "an unreachable gateway must read as a denial")

	rows := f.repo.withStatus(domain.TransactionStatusFailed)
	require.Len(t, rows, 1)
}

func TestAuthorizeTransaction_RedeliveredRequestReplaysVerdict(t *testing.T) {
	f := newBillingFixture()

	first, err := f.service.AuthorizeTransaction(context.Background(), authorizeRequest())
	require.NoError(t, err)
	require.True(t, first.Valid())

	second, err := f.service.AuthorizeTransaction(context.Background(), authorizeRequest())
	require.NoError(t, err)
	require.True(t, second.Valid(), "a redelivered request must not turn a committed success into a denial")

	assert.Equal(t, first.TransactionID, second.TransactionID)
	assert.Equal(t, first.PaymentID, second.PaymentID)
	assert.Equal(t, 1, f.gateway.authorizeCalls, "redelivery must not reach the gateway again")
	assert.Zero(t, f.gateway.cancelCalls)
	assert.Len(t, f.repo.withStatus(domain.TransactionStatusAuthorized), 1)
}

func TestAuthorizeTransaction_ConcurrentDuplicateReplaysWinner(t *testing.T) {
	f := newBillingFixture()
	f.repo.authorizedErr = domain.ErrOpenAuthorizationExists
	f.repo.onAuthorizedConflict = func() {
		f.repo.rows = append(f.repo.rows, openAuthorizationRow("order-1"))
	}

	resp, err := f.service.AuthorizeTransaction(context.Background(), authorizeRequest())
	require.NoError(t, err)
	require.True(t, resp.Valid(), "the winner's verdict stands for both duplicates")
	assert.Equal(t, "t1", resp.TransactionID)
	assert.Equal(t, "p1", resp.PaymentID)
	assert.Equal(t, 1, f.gateway.cancelCalls, "the losing reservation must be released at the gateway")
	assert.Equal(t, "auth-ref", f.gateway.canceledRef)
}

func TestAuthorizeTransaction_ConflictWithoutVisibleWinnerIsRetried(t *testing.T) {
	f := newBillingFixture()
	f.repo.authorizedErr = domain.ErrOpenAuthorizationExists

	_, err := f.service.AuthorizeTransaction(context.Background(), authorizeRequest())
	require.ErrorIs(t, err, domain.ErrOpenAuthorizationExists, "no verdict to replay means no reply, redeliver instead")
	assert.Equal(t, 1, f.gateway.cancelCalls)
}

func TestAuthorizeTransaction_PersistFailureReleasesAuthorization(t *testing.T) {
	f := newBillingFixture()
	f.repo.authorizedErr = errors.New("connection reset")

	resp, err := f.service.AuthorizeTransaction(context.Background(), authorizeRequest())
	require.NoError(t, err)
	require.False(t, resp.Valid())
	assert.Equal(t, 1, f.gateway.cancelCalls)
}

func openAuthorizationRow(orderID string) *domain.Transaction {
	return &domain.Transaction{
		ID:           "t1",
		OrderID:      orderID,
		PaymentID:    "p1",
		GatewayRef:   "auth-ref",
		Status:       domain.TransactionStatusAuthorized,
		Amount:       140,
		CardLastFour: "6467",
		CreatedAt:    time.Now().UTC(),
	}
}

func TestCaptureTransaction(t *testing.T) {
	t.Run("captures the open authorization", func(t *testing.T) {
		f := newBillingFixture()
		f.repo.rows = []*domain.Transaction{openAuthorizationRow("order-1")}

		resp, err := f.service.CaptureTransaction(context.Background(), "order-1")
		require.NoError(t, err)
		require.True(t, resp.Valid())
		assert.Equal(t, string(domain.TransactionStatusPaid), resp.Status)
		assert.Equal(t, "p1", resp.PaymentID)
		assert.Equal(t, "auth-ref", f.gateway.capturedRef)

		paid := f.repo.withStatus(domain.TransactionStatusPaid)
		require.Len(t, paid, 1)
		assert.Equal(t, "p1", paid[0].PaymentID, "settlement shares the authorization's payment id")
		assert.Equal(t, 140.0, paid[0].Amount)
	})

	t.Run("no open authorization is a consistency fault", func(t *testing.T) {
		f := newBillingFixture()

		_, err := f.service.CaptureTransaction(context.Background(), "order-1")
		require.ErrorIs(t, err, domain.ErrNoOpenAuthorization)
		assert.Zero(t, f.gateway.captureCalls, "no gateway call without an authorization to settle")
	})

	t.Run("already settled authorization is a consistency fault", func(t *testing.T) {
		f := newBillingFixture()
		f.repo.rows = []*domain.Transaction{
			openAuthorizationRow("order-1"),
			{ID: "t2", OrderID: "order-1", PaymentID: "p1", Status: domain.TransactionStatusPaid},
		}

		_, err := f.service.CaptureTransaction(context.Background(), "order-1")
		require.ErrorIs(t, err, domain.ErrNoOpenAuthorization)
	})

	t.Run("gateway refusal leaves the authorization open", func(t *testing.T) {
		f := newBillingFixture()
		f.repo.rows = []*domain.Transaction{openAuthorizationRow("order-1")}
		f.gateway.captureResult = &gateway.Result{Status: gateway.StatusRefused, Reason: "settlement window closed"}

		resp, err := f.service.CaptureTransaction(context.Background(), "order-1")
		require.NoError(t, err)
		require.False(t, resp.Valid())
		assert.Empty(t, f.repo.withStatus(domain.TransactionStatusPaid))
	})

	t.Run("settlement race surfaces the consumed error", func(t *testing.T) {
		f := newBillingFixture()
		f.repo.rows = []*domain.Transaction{openAuthorizationRow("order-1")}
		f.repo.settlementErr = domain.ErrAuthorizationConsumed

		_, err := f.service.CaptureTransaction(context.Background(), "order-1")
		require.ErrorIs(t, err, domain.ErrAuthorizationConsumed)
	})
}

func TestCancelTransaction(t *testing.T) {
	t.Run("cancels the open authorization", func(t *testing.T) {
		f := newBillingFixture()
		f.repo.rows = []*domain.Transaction{openAuthorizationRow("order-1")}

		resp, err := f.service.CancelTransaction(context.Background(), "order-1")
		require.NoError(t, err)
		require.True(t, resp.Valid())
		assert.Equal(t, string(domain.TransactionStatusCanceled), resp.Status)
		assert.Equal(t, "auth-ref", f.gateway.canceledRef)

		canceled := f.repo.withStatus(domain.TransactionStatusCanceled)
		require.Len(t, canceled, 1)
		assert.Equal(t, "p1", canceled[0].PaymentID)
	})

	t.Run("no open authorization is a consistency fault", func(t *testing.T) {
		f := newBillingFixture()

		_, err := f.service.CancelTransaction(context.Background(), "order-1")
		require.ErrorIs(t, err, domain.ErrNoOpenAuthorization)
		assert.Zero(t, f.gateway.cancelCalls)
	})

	t.Run("gateway failure leaves the authorization open", func(t *testing.T) {
		f := newBillingFixture()
		f.repo.rows = []*domain.Transaction{openAuthorizationRow("order-1")}
		f.gateway.cancelResult = nil
		f.gateway.cancelErr = gateway.ErrGatewayUnavailable

		resp, err := f.service.CancelTransaction(context.Background(), "order-1")
		require.NoError(t, err)
		require.False(t, resp.Valid())
		assert.Empty(t, f.repo.withStatus(domain.TransactionStatusCanceled))
	})
}

func TestGetLedger(t *testing.T) {
	f := newBillingFixture()
	f.repo.rows = []*domain.Transaction{
		openAuthorizationRow("order-1"),
		{ID: "t2", OrderID: "order-1", PaymentID: "p1", Status: domain.TransactionStatusPaid, Amount: 140},
		{ID: "t3", OrderID: "other", PaymentID: "p2", Status: domain.TransactionStatusDenied},
	}

	ledger, err := f.service.GetLedger(context.Background(), "order-1")
	require.NoError(t, err)
	require.Len(t, ledger, 2)
	assert.Equal(t, "AUTHORIZED", ledger[0].Status)
	assert.Equal(t, "PAID", ledger[1].Status)
}
