package fulfillment

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/sunvolt/solarshop/internal/order"
	"github.com/sunvolt/solarshop/internal/payment"
)

// ErrCartUnresolvable reports that the referenced cart no longer has usable
// lines (already converted, cleared, or never existed); the caller falls
// back to provider-side line items.
var ErrCartUnresolvable = errors.New("cart cannot be resolved for fulfillment")

// OrderParams carries everything the webhook event contributes to the
// order row. Amount is the provider-reported total; when nil the cart's
// stored total is used.
type OrderParams struct {
	SessionID       string
	PaymentIntentID *string
	UserID          uuid.UUID
	CartID          uuid.UUID
	Currency        string
	Amount          *int64
	BillingAddress  *order.Address
	ShippingAddress *order.Address
}

type Repository interface {
	// MaterializeFromCart converts the cart into an order in one
	// transaction: order + lines created, stock decremented (clamped at
	// zero), cart marked ordered and its lines deleted. The bool reports
	// whether a new order was created; false means a concurrent delivery
	// already materialized this session.
	MaterializeFromCart(ctx context.Context, params OrderParams) (*order.Order, bool, error)
	// MaterializeFromLineItems is the fallback when the cart is gone:
	// order lines are rebuilt from provider data with no product
	// reference, and no stock is decremented.
	MaterializeFromLineItems(ctx context.Context, params OrderParams, items []payment.LineItem) (*order.Order, bool, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) MaterializeFromCart(ctx context.Context, params OrderParams) (o *order.Order, created bool, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Msg("repository: failed to rollback materialization after panic")
			}
			panic(p)
		}
		if err != nil || !created {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Msg("repository: failed to rollback materialization")
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			o, created = nil, false
			err = fmt.Errorf("repository: failed to commit materialization: %w", commitErr)
		}
	}()

	// Lock the cart row so a concurrent delivery for the same cart
	// serializes behind this transaction.
	var cartTotal int64
	var cartCurrency string
	cartQuery := `SELECT total, currency FROM carts WHERE id = $1 AND status = 'active' FOR UPDATE`
	scanErr := tx.QueryRow(ctx, cartQuery, params.CartID).Scan(&cartTotal, &cartCurrency)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			err = ErrCartUnresolvable
			return nil, false, err
		}
		err = fmt.Errorf("repository: failed to lock cart %s: %w", params.CartID, scanErr)
		return nil, false, err
	}

	lines, linesErr := selectCartLines(ctx, tx, params.CartID)
	if linesErr != nil {
		err = linesErr
		return nil, false, err
	}
	if len(lines) == 0 {
		err = ErrCartUnresolvable
		return nil, false, err
	}

	amount := cartTotal
	if params.Amount != nil {
		amount = *params.Amount
	}
	currency := params.Currency
	if currency == "" {
		currency = cartCurrency
	}

	newOrder, inserted, insErr := insertOrder(ctx, tx, params, amount, currency)
	if insErr != nil {
		err = insErr
		return nil, false, err
	}
	if !inserted {
		return nil, false, nil
	}

	for _, line := range lines {
		productID := line.productID
		orderLine := order.Line{
			OrderID:   newOrder.ID,
			ProductID: &productID,
			Name:      line.name,
			ImagePath: line.imagePath,
			UnitPrice: line.unitPrice,
			Quantity:  line.quantity,
			LineTotal: line.unitPrice * int64(line.quantity),
		}
		if lineErr := insertOrderLine(ctx, tx, &orderLine); lineErr != nil {
			err = lineErr
			return nil, false, err
		}
		newOrder.Lines = append(newOrder.Lines, orderLine)

		// Clamped decrement: concurrent orders may over-subscribe the last
		// units, in which case stock floors at zero instead of rejecting.
		stockQuery := `UPDATE products SET stock = GREATEST(stock - $2, 0), updated_at = now() WHERE id = $1`
		if _, stockErr := tx.Exec(ctx, stockQuery, line.productID, line.quantity); stockErr != nil {
			err = fmt.Errorf("repository: failed to decrement stock for product %d: %w", line.productID, stockErr)
			return nil, false, err
		}
	}

	retireQuery := `UPDATE carts SET status = 'ordered', updated_at = now() WHERE id = $1`
	if _, retireErr := tx.Exec(ctx, retireQuery, params.CartID); retireErr != nil {
		err = fmt.Errorf("repository: failed to retire cart %s: %w", params.CartID, retireErr)
		return nil, false, err
	}
	deleteQuery := `DELETE FROM cart_lines WHERE cart_id = $1`
	if _, delErr := tx.Exec(ctx, deleteQuery, params.CartID); delErr != nil {
		err = fmt.Errorf("repository: failed to delete lines of cart %s: %w", params.CartID, delErr)
		return nil, false, err
	}

	created = true
	return newOrder, true, nil
}

func (r *postgresRepository) MaterializeFromLineItems(ctx context.Context, params OrderParams, items []payment.LineItem) (o *order.Order, created bool, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Msg("repository: failed to rollback fallback materialization after panic")
			}
			panic(p)
		}
		if err != nil || !created {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Msg("repository: failed to rollback fallback materialization")
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			o, created = nil, false
			err = fmt.Errorf("repository: failed to commit fallback materialization: %w", commitErr)
		}
	}()

	var amount int64
	if params.Amount != nil {
		amount = *params.Amount
	} else {
		for _, item := range items {
			amount += item.UnitAmount * int64(item.Quantity)
		}
	}

	newOrder, inserted, insErr := insertOrder(ctx, tx, params, amount, params.Currency)
	if insErr != nil {
		err = insErr
		return nil, false, err
	}
	if !inserted {
		return nil, false, nil
	}

	for _, item := range items {
		orderLine := order.Line{
			OrderID:   newOrder.ID,
			ProductID: nil, // no local product is guaranteed for provider-side items
			Name:      item.Name,
			ImagePath: item.ImageURL,
			UnitPrice: item.UnitAmount,
			Quantity:  item.Quantity,
			LineTotal: item.UnitAmount * int64(item.Quantity),
		}
		if lineErr := insertOrderLine(ctx, tx, &orderLine); lineErr != nil {
			err = lineErr
			return nil, false, err
		}
		newOrder.Lines = append(newOrder.Lines, orderLine)
	}

	created = true
	return newOrder, true, nil
}

type cartLineRow struct {
	productID int64
	name      string
	imagePath string
	unitPrice int64
	quantity  int
}

func selectCartLines(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) ([]cartLineRow, error) {
	query := `
		SELECT product_id, name, image_path, unit_price, quantity
		FROM cart_lines
		WHERE cart_id = $1
		ORDER BY created_at
	`
	rows, err := tx.Query(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query lines of cart %s: %w", cartID, err)
	}
	defer rows.Close()

	var lines []cartLineRow
	for rows.Next() {
		var l cartLineRow
		if err := rows.Scan(&l.productID, &l.name, &l.imagePath, &l.unitPrice, &l.quantity); err != nil {
			return nil, fmt.Errorf("repository: failed to scan line of cart %s: %w", cartID, err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating lines of cart %s: %w", cartID, err)
	}

	return lines, nil
}

// insertOrder writes the order row. The unique index on
// checkout_session_id is the idempotency key: a violation means another
// delivery already materialized this session, reported as inserted=false.
func insertOrder(ctx context.Context, tx pgx.Tx, params OrderParams, amount int64, currency string) (*order.Order, bool, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, false, fmt.Errorf("repository: failed to generate order ID: %w", err)
	}

	o := &order.Order{
		ID:                id,
		UserID:            params.UserID,
		CheckoutSessionID: params.SessionID,
		PaymentIntentID:   params.PaymentIntentID,
		Status:            order.StatusPaid,
		Currency:          currency,
		Amount:            amount,
		BillingAddress:    params.BillingAddress,
		ShippingAddress:   params.ShippingAddress,
	}

	query := `
		INSERT INTO orders (id, user_id, checkout_session_id, payment_intent_id, status, currency, amount, billing_address, shipping_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	err = tx.QueryRow(ctx, query,
		o.ID,
		o.UserID,
		o.CheckoutSessionID,
		o.PaymentIntentID,
		string(o.Status),
		o.Currency,
		o.Amount,
		o.BillingAddress,
		o.ShippingAddress,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			log.Info().Str("session_id", params.SessionID).Msg("repository: order for session already exists, skipping")
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("repository: failed to insert order for session %s: %w", params.SessionID, err)
	}

	return o, true, nil
}

func insertOrderLine(ctx context.Context, tx pgx.Tx, l *order.Line) error {
	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("repository: failed to generate order line ID: %w", err)
	}
	l.ID = id

	query := `
		INSERT INTO order_lines (id, order_id, product_id, name, image_path, unit_price, quantity, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	err = tx.QueryRow(ctx, query,
		l.ID,
		l.OrderID,
		l.ProductID,
		l.Name,
		l.ImagePath,
		l.UnitPrice,
		l.Quantity,
		l.LineTotal,
	).Scan(&l.CreatedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order line for order %s: %w", l.OrderID, err)
	}

	return nil
}
