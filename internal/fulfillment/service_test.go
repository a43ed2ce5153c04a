package fulfillment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunvolt/solarshop/internal/fulfillment"
	"github.com/sunvolt/solarshop/internal/order"
	"github.com/sunvolt/solarshop/internal/payment"
)

type mockFulfillmentRepository struct {
	fromCartFunc  func(ctx context.Context, params fulfillment.OrderParams) (*order.Order, bool, error)
	fromItemsFunc func(ctx context.Context, params fulfillment.OrderParams, items []payment.LineItem) (*order.Order, bool, error)

	fromCartCalls  int
	fromItemsCalls int
	lastParams     fulfillment.OrderParams
	lastItems      []payment.LineItem
}

func (m *mockFulfillmentRepository) MaterializeFromCart(ctx context.Context, params fulfillment.OrderParams) (*order.Order, bool, error) {
	m.fromCartCalls++
	m.lastParams = params
	return m.fromCartFunc(ctx, params)
}

func (m *mockFulfillmentRepository) MaterializeFromLineItems(ctx context.Context, params fulfillment.OrderParams, items []payment.LineItem) (*order.Order, bool, error) {
	m.fromItemsCalls++
	m.lastParams = params
	m.lastItems = items
	return m.fromItemsFunc(ctx, params, items)
}

type mockOrderRepository struct {
	getBySessionFunc func(ctx context.Context, sessionID string) (*order.Order, error)
}

func (m *mockOrderRepository) GetByID(context.Context, uuid.UUID) (*order.Order, error) {
	return nil, order.ErrOrderNotFound
}

func (m *mockOrderRepository) GetBySessionID(ctx context.Context, sessionID string) (*order.Order, error) {
	return m.getBySessionFunc(ctx, sessionID)
}

func (m *mockOrderRepository) GetByUserID(context.Context, uuid.UUID) ([]order.Order, error) {
	return nil, nil
}

func (m *mockOrderRepository) UpdateStatus(context.Context, uuid.UUID, order.Status) error {
	return nil
}

type mockWebhookClient struct {
	verifyFunc   func(payload []byte, header string) (*payment.Event, error)
	retrieveFunc func(ctx context.Context, sessionID string) ([]payment.LineItem, error)

	retrieveCalls int
}

func (m *mockWebhookClient) CreateHostedSession(context.Context, payment.SessionRequest) (*payment.Session, error) {
	return nil, errors.New("not implemented")
}

func (m *mockWebhookClient) VerifyWebhook(payload []byte, header string) (*payment.Event, error) {
	return m.verifyFunc(payload, header)
}

func (m *mockWebhookClient) RetrieveSessionLineItems(ctx context.Context, sessionID string) ([]payment.LineItem, error) {
	m.retrieveCalls++
	return m.retrieveFunc(ctx, sessionID)
}

type mockMailer struct {
	sent chan string
}

func (m *mockMailer) SendOrderConfirmation(recipient string, _ *order.Order) error {
	m.sent <- recipient
	return nil
}

func completedEvent(sessionID string, cartID, userID uuid.UUID, amount int64) *payment.Event {
	event := &payment.Event{ID: "evt_1", Type: payment.EventTypeCheckoutCompleted}
	event.Data.Object = payment.CheckoutSession{
		ID:              sessionID,
		PaymentIntentID: "pi_123",
		AmountTotal:     &amount,
		Currency:        "usd",
		CustomerEmail:   "buyer@example.com",
		Metadata: map[string]string{
			"cart_id": cartID.String(),
			"user_id": userID.String(),
		},
	}
	return event
}

func newOrder(t *testing.T, sessionID string, amount int64) *order.Order {
	t.Helper()
	id, err := uuid.NewV4()
	require.NoError(t, err)
	return &order.Order{ID: id, CheckoutSessionID: sessionID, Status: order.StatusPaid, Currency: "usd", Amount: amount}
}

func TestService_HandleWebhook_InvalidSignature(t *testing.T) {
	repo := &mockFulfillmentRepository{}
	payments := &mockWebhookClient{
		verifyFunc: func([]byte, string) (*payment.Event, error) {
			return nil, payment.ErrInvalidSignature
		},
	}
	svc := fulfillment.NewService(repo, &mockOrderRepository{}, payments, nil)

	err := svc.HandleWebhook(context.Background(), []byte(`{}`), "t=1,v1=bad")

	assert.ErrorIs(t, err, payment.ErrInvalidSignature)
	assert.Zero(t, repo.fromCartCalls)
	assert.Zero(t, repo.fromItemsCalls)
}

func TestService_HandleWebhook_IgnoresOtherEventTypes(t *testing.T) {
	repo := &mockFulfillmentRepository{}
	payments := &mockWebhookClient{
		verifyFunc: func([]byte, string) (*payment.Event, error) {
			return &payment.Event{ID: "evt_2", Type: "payment_intent.created"}, nil
		},
	}
	svc := fulfillment.NewService(repo, &mockOrderRepository{}, payments, nil)

	err := svc.HandleWebhook(context.Background(), []byte(`{}`), "sig")

	assert.NoError(t, err)
	assert.Zero(t, repo.fromCartCalls)
	assert.Zero(t, repo.fromItemsCalls)
}

func TestService_HandleWebhook_DuplicateDelivery(t *testing.T) {
	cartID, _ := uuid.NewV4()
	userID, _ := uuid.NewV4()

	repo := &mockFulfillmentRepository{}
	orders := &mockOrderRepository{
		getBySessionFunc: func(_ context.Context, sessionID string) (*order.Order, error) {
			return newOrder(t, sessionID, 10000), nil
		},
	}
	payments := &mockWebhookClient{
		verifyFunc: func([]byte, string) (*payment.Event, error) {
			return completedEvent("sess_abc", cartID, userID, 10000), nil
		},
	}
	svc := fulfillment.NewService(repo, orders, payments, nil)

	err := svc.HandleWebhook(context.Background(), []byte(`{}`), "sig")

	assert.NoError(t, err)
	assert.Zero(t, repo.fromCartCalls)
	assert.Zero(t, repo.fromItemsCalls)
}

func TestService_HandleWebhook_MaterializesOnce(t *testing.T) {
	cartID, _ := uuid.NewV4()
	userID, _ := uuid.NewV4()

	var materialized *order.Order
	repo := &mockFulfillmentRepository{
		fromCartFunc: func(_ context.Context, params fulfillment.OrderParams) (*order.Order, bool, error) {
			materialized = newOrder(t, params.SessionID, *params.Amount)
			return materialized, true, nil
		},
	}
	orders := &mockOrderRepository{
		getBySessionFunc: func(context.Context, string) (*order.Order, error) {
			if materialized != nil {
				return materialized, nil
			}
			return nil, order.ErrOrderNotFound
		},
	}
	payments := &mockWebhookClient{
		verifyFunc: func([]byte, string) (*payment.Event, error) {
			return completedEvent("sess_abc", cartID, userID, 10000), nil
		},
	}
	mailer := &mockMailer{sent: make(chan string, 2)}
	svc := fulfillment.NewService(repo, orders, payments, mailer)

	// Same completed event delivered twice.
	require.NoError(t, svc.HandleWebhook(context.Background(), []byte(`{}`), "sig"))
	require.NoError(t, svc.HandleWebhook(context.Background(), []byte(`{}`), "sig"))

	assert.Equal(t, 1, repo.fromCartCalls)

	params := repo.lastParams
	assert.Equal(t, "sess_abc", params.SessionID)
	assert.Equal(t, cartID, params.CartID)
	assert.Equal(t, userID, params.UserID)
	require.NotNil(t, params.Amount)
	assert.Equal(t, int64(10000), *params.Amount)
	require.NotNil(t, params.PaymentIntentID)
	assert.Equal(t, "pi_123", *params.PaymentIntentID)

	select {
	case recipient := <-mailer.sent:
		assert.Equal(t, "buyer@example.com", recipient)
	case <-time.After(time.Second):
		t.Fatal("expected order confirmation to be sent")
	}
}

func TestService_HandleWebhook_ConcurrentDeliveryLosesInsertRace(t *testing.T) {
	cartID, _ := uuid.NewV4()
	userID, _ := uuid.NewV4()

	repo := &mockFulfillmentRepository{
		fromCartFunc: func(context.Context, fulfillment.OrderParams) (*order.Order, bool, error) {
			return nil, false, nil
		},
	}
	orders := &mockOrderRepository{
		getBySessionFunc: func(context.Context, string) (*order.Order, error) {
			return nil, order.ErrOrderNotFound
		},
	}
	payments := &mockWebhookClient{
		verifyFunc: func([]byte, string) (*payment.Event, error) {
			return completedEvent("sess_abc", cartID, userID, 10000), nil
		},
	}
	mailer := &mockMailer{sent: make(chan string, 1)}
	svc := fulfillment.NewService(repo, orders, payments, mailer)

	err := svc.HandleWebhook(context.Background(), []byte(`{}`), "sig")

	assert.NoError(t, err)
	assert.Equal(t, 1, repo.fromCartCalls)
	select {
	case <-mailer.sent:
		t.Fatal("no confirmation should be sent when another delivery won")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestService_HandleWebhook_FallbackToProviderLineItems(t *testing.T) {
	cartID, _ := uuid.NewV4()
	userID, _ := uuid.NewV4()

	items := []payment.LineItem{
		{Name: "Solar Panel 400W", UnitAmount: 19900, Quantity: 2},
	}

	repo := &mockFulfillmentRepository{
		fromCartFunc: func(context.Context, fulfillment.OrderParams) (*order.Order, bool, error) {
			return nil, false, fulfillment.ErrCartUnresolvable
		},
		fromItemsFunc: func(_ context.Context, params fulfillment.OrderParams, _ []payment.LineItem) (*order.Order, bool, error) {
			return newOrder(t, params.SessionID, 39800), true, nil
		},
	}
	orders := &mockOrderRepository{
		getBySessionFunc: func(context.Context, string) (*order.Order, error) {
			return nil, order.ErrOrderNotFound
		},
	}
	payments := &mockWebhookClient{
		verifyFunc: func([]byte, string) (*payment.Event, error) {
			return completedEvent("sess_gone", cartID, userID, 39800), nil
		},
		retrieveFunc: func(_ context.Context, sessionID string) ([]payment.LineItem, error) {
			assert.Equal(t, "sess_gone", sessionID)
			return items, nil
		},
	}
	svc := fulfillment.NewService(repo, orders, payments, nil)

	err := svc.HandleWebhook(context.Background(), []byte(`{}`), "sig")

	assert.NoError(t, err)
	assert.Equal(t, 1, repo.fromCartCalls)
	assert.Equal(t, 1, payments.retrieveCalls)
	assert.Equal(t, 1, repo.fromItemsCalls)
	assert.Equal(t, items, repo.lastItems)
}

func TestService_HandleWebhook_TransientFailurePropagates(t *testing.T) {
	cartID, _ := uuid.NewV4()
	userID, _ := uuid.NewV4()

	repo := &mockFulfillmentRepository{
		fromCartFunc: func(context.Context, fulfillment.OrderParams) (*order.Order, bool, error) {
			return nil, false, errors.New("deadlock detected")
		},
	}
	orders := &mockOrderRepository{
		getBySessionFunc: func(context.Context, string) (*order.Order, error) {
			return nil, order.ErrOrderNotFound
		},
	}
	payments := &mockWebhookClient{
		verifyFunc: func([]byte, string) (*payment.Event, error) {
			return completedEvent("sess_abc", cartID, userID, 10000), nil
		},
	}
	svc := fulfillment.NewService(repo, orders, payments, nil)

	err := svc.HandleWebhook(context.Background(), []byte(`{}`), "sig")

	require.Error(t, err)
	assert.NotErrorIs(t, err, payment.ErrInvalidSignature)
}
