package cart

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
)

var ErrCartNotFound = errors.New("cart not found")

type Repository interface {
	GetOrCreateActive(ctx context.Context, userID uuid.UUID, currency string) (*Cart, error)
	GetActiveWithLines(ctx context.Context, userID uuid.UUID) (*Cart, error)
	AddLine(ctx context.Context, cartID uuid.UUID, input LineInput) error
	SetLineQuantity(ctx context.Context, cartID uuid.UUID, productID int64, quantity int) error
	DeleteLine(ctx context.Context, cartID uuid.UUID, productID int64) error
	ClearLines(ctx context.Context, cartID uuid.UUID) error
	MergeLines(ctx context.Context, cartID uuid.UUID, inputs []LineInput) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

// inTx runs fn inside a transaction, rolling back on error or panic and
// committing otherwise.
func (r *postgresRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Msg("repository: failed to rollback transaction after panic")
			}
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Msg("repository: failed to rollback transaction")
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
		}
	}()

	err = fn(tx)
	return err
}

func (r *postgresRepository) GetOrCreateActive(ctx context.Context, userID uuid.UUID, currency string) (*Cart, error) {
	c, err := r.GetActiveWithLines(ctx, userID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrCartNotFound) {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("repository: failed to generate cart ID: %w", err)
	}

	query := `
		INSERT INTO carts (id, user_id, status, currency)
		VALUES ($1, $2, $3, $4)
	`
	_, err = r.db.Exec(ctx, query, id, userID, StatusActive, currency)
	if err != nil {
		// A concurrent request may have created the active cart between
		// the lookup and the insert; the partial unique index turns that
		// race into a unique violation, which means "re-fetch".
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			log.Debug().Stringer("user_id", userID).Msg("repository: lost active-cart creation race, re-fetching")
			return r.GetActiveWithLines(ctx, userID)
		}
		return nil, fmt.Errorf("repository: failed to insert cart for user %s: %w", userID, err)
	}

	return r.GetActiveWithLines(ctx, userID)
}

func (r *postgresRepository) GetActiveWithLines(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	query := `
		SELECT id, user_id, status, currency, subtotal, total, created_at, updated_at
		FROM carts
		WHERE user_id = $1 AND status = $2
	`

	var c Cart
	err := r.db.QueryRow(ctx, query, userID, StatusActive).Scan(
		&c.ID,
		&c.UserID,
		&c.Status,
		&c.Currency,
		&c.Subtotal,
		&c.Total,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("repository: failed to select active cart for user %s: %w", userID, err)
	}

	lines, err := r.selectLines(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Lines = lines

	return &c, nil
}

func (r *postgresRepository) selectLines(ctx context.Context, cartID uuid.UUID) ([]Line, error) {
	query := `
		SELECT id, cart_id, product_id, name, image_path, unit_price, quantity, created_at, updated_at
		FROM cart_lines
		WHERE cart_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query cart lines for cart %s: %w", cartID, err)
	}
	defer rows.Close()

	lines := make([]Line, 0)
	for rows.Next() {
		var l Line
		err := rows.Scan(
			&l.ID,
			&l.CartID,
			&l.ProductID,
			&l.Name,
			&l.ImagePath,
			&l.UnitPrice,
			&l.Quantity,
			&l.CreatedAt,
			&l.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan cart line for cart %s: %w", cartID, err)
		}
		lines = append(lines, l)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating cart lines for cart %s: %w", cartID, err)
	}

	return lines, nil
}

// lockCart takes the row lock that serializes concurrent mutations of one
// cart for the duration of the transaction.
func lockCart(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) error {
	var id uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id FROM carts WHERE id = $1 AND status = 'active' FOR UPDATE`, cartID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCartNotFound
		}
		return fmt.Errorf("repository: failed to lock cart %s: %w", cartID, err)
	}
	return nil
}

// recomputeTotals derives subtotal and total from the persisted lines so
// the stored values can never drift from line contents. Must run in the
// same transaction as the line mutation that made them stale.
func recomputeTotals(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) error {
	query := `
		UPDATE carts
		SET subtotal = agg.amount, total = agg.amount, updated_at = now()
		FROM (
			SELECT COALESCE(SUM(unit_price * quantity), 0) AS amount
			FROM cart_lines
			WHERE cart_id = $1
		) AS agg
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, query, cartID); err != nil {
		return fmt.Errorf("repository: failed to recompute totals for cart %s: %w", cartID, err)
	}
	return nil
}

// upsertLine adds input.Quantity to an existing line or creates the line
// with the given snapshot. On conflict only the quantity moves: the
// snapshot fields keep their original add-time values.
func upsertLine(ctx context.Context, tx pgx.Tx, cartID uuid.UUID, input LineInput) error {
	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("repository: failed to generate cart line ID: %w", err)
	}

	query := `
		INSERT INTO cart_lines (id, cart_id, product_id, name, image_path, unit_price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity, updated_at = now()
	`
	_, err = tx.Exec(ctx, query, id, cartID, input.ProductID, input.Name, input.ImagePath, input.UnitPrice, input.Quantity)
	if err != nil {
		return fmt.Errorf("repository: failed to upsert cart line for cart %s product %d: %w", cartID, input.ProductID, err)
	}
	return nil
}

func (r *postgresRepository) AddLine(ctx context.Context, cartID uuid.UUID, input LineInput) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockCart(ctx, tx, cartID); err != nil {
			return err
		}
		if err := upsertLine(ctx, tx, cartID, input); err != nil {
			return err
		}
		return recomputeTotals(ctx, tx, cartID)
	})
}

func (r *postgresRepository) SetLineQuantity(ctx context.Context, cartID uuid.UUID, productID int64, quantity int) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockCart(ctx, tx, cartID); err != nil {
			return err
		}

		if quantity == 0 {
			query := `DELETE FROM cart_lines WHERE cart_id = $1 AND product_id = $2`
			if _, err := tx.Exec(ctx, query, cartID, productID); err != nil {
				return fmt.Errorf("repository: failed to delete cart line for cart %s product %d: %w", cartID, productID, err)
			}
		} else {
			query := `
				UPDATE cart_lines
				SET quantity = $3, updated_at = now()
				WHERE cart_id = $1 AND product_id = $2
			`
			// Zero rows affected means the line does not exist; setting a
			// quantity on a missing line is a no-op, not an error.
			if _, err := tx.Exec(ctx, query, cartID, productID, quantity); err != nil {
				return fmt.Errorf("repository: failed to update cart line for cart %s product %d: %w", cartID, productID, err)
			}
		}

		return recomputeTotals(ctx, tx, cartID)
	})
}

func (r *postgresRepository) DeleteLine(ctx context.Context, cartID uuid.UUID, productID int64) error {
	return r.SetLineQuantity(ctx, cartID, productID, 0)
}

func (r *postgresRepository) ClearLines(ctx context.Context, cartID uuid.UUID) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockCart(ctx, tx, cartID); err != nil {
			return err
		}
		query := `DELETE FROM cart_lines WHERE cart_id = $1`
		if _, err := tx.Exec(ctx, query, cartID); err != nil {
			return fmt.Errorf("repository: failed to clear cart lines for cart %s: %w", cartID, err)
		}
		return recomputeTotals(ctx, tx, cartID)
	})
}

func (r *postgresRepository) MergeLines(ctx context.Context, cartID uuid.UUID, inputs []LineInput) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockCart(ctx, tx, cartID); err != nil {
			return err
		}
		for _, input := range inputs {
			if err := upsertLine(ctx, tx, cartID, input); err != nil {
				return err
			}
		}
		return recomputeTotals(ctx, tx, cartID)
	})
}
