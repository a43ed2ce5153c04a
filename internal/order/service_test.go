package order_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunvolt/solarshop/internal/order"
)

type mockOrderRepository struct {
	getByIDFunc      func(ctx context.Context, id uuid.UUID) (*order.Order, error)
	updateStatusFunc func(ctx context.Context, orderID uuid.UUID, newStatus order.Status) error

	updateCalls int
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockOrderRepository) GetBySessionID(context.Context, string) (*order.Order, error) {
	return nil, order.ErrOrderNotFound
}

func (m *mockOrderRepository) GetByUserID(context.Context, uuid.UUID) ([]order.Order, error) {
	return nil, nil
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus order.Status) error {
	m.updateCalls++
	return m.updateStatusFunc(ctx, orderID, newStatus)
}

func TestService_MarkRefunded(t *testing.T) {
	orderID, _ := uuid.NewV4()

	tests := []struct {
		name        string
		current     order.Status
		getErr      error
		wantErr     error
		wantUpdates int
	}{
		{
			name:        "paid_order_refunds",
			current:     order.StatusPaid,
			wantUpdates: 1,
		},
		{
			name:        "already_refunded_is_noop",
			current:     order.StatusRefunded,
			wantUpdates: 0,
		},
		{
			name:        "pending_order_cannot_refund",
			current:     order.StatusPending,
			wantErr:     order.ErrInvalidStatusTransition,
			wantUpdates: 0,
		},
		{
			name:        "failed_order_cannot_refund",
			current:     order.StatusFailed,
			wantErr:     order.ErrInvalidStatusTransition,
			wantUpdates: 0,
		},
		{
			name:        "missing_order",
			getErr:      order.ErrOrderNotFound,
			wantErr:     order.ErrOrderNotFound,
			wantUpdates: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockOrderRepository{
				getByIDFunc: func(_ context.Context, id uuid.UUID) (*order.Order, error) {
					if tt.getErr != nil {
						return nil, tt.getErr
					}
					return &order.Order{ID: id, Status: tt.current}, nil
				},
				updateStatusFunc: func(_ context.Context, _ uuid.UUID, newStatus order.Status) error {
					assert.Equal(t, order.StatusRefunded, newStatus)
					return nil
				},
			}
			svc := order.NewService(repo)

			err := svc.MarkRefunded(context.Background(), orderID)

			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantUpdates, repo.updateCalls)
		})
	}
}

func TestService_GetOrderByID(t *testing.T) {
	orderID, _ := uuid.NewV4()

	t.Run("found", func(t *testing.T) {
		repo := &mockOrderRepository{
			getByIDFunc: func(_ context.Context, id uuid.UUID) (*order.Order, error) {
				return &order.Order{ID: id, Status: order.StatusPaid, Amount: 39800}, nil
			},
		}
		svc := order.NewService(repo)

		o, err := svc.GetOrderByID(context.Background(), orderID)
		require.NoError(t, err)
		assert.Equal(t, orderID, o.ID)
		assert.Equal(t, int64(39800), o.Amount)
	})

	t.Run("not_found", func(t *testing.T) {
		repo := &mockOrderRepository{
			getByIDFunc: func(context.Context, uuid.UUID) (*order.Order, error) {
				return nil, order.ErrOrderNotFound
			},
		}
		svc := order.NewService(repo)

		_, err := svc.GetOrderByID(context.Background(), orderID)
		assert.ErrorIs(t, err, order.ErrOrderNotFound)
	})
}
