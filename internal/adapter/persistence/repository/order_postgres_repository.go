package repository

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"restbucks/internal/domain/entities"
	"restbucks/internal/usecase/interfaces"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const ordersSchema = `
CREATE TABLE IF NOT EXISTS orders (
	id                     TEXT PRIMARY KEY,
	drink                  TEXT NOT NULL,
	size                   TEXT NOT NULL,
	milk                   TEXT NOT NULL,
	shots                  INTEGER NOT NULL,
	cost                   NUMERIC(10,2) NOT NULL,
	status                 TEXT NOT NULL,
	paid                   BOOLEAN NOT NULL DEFAULT FALSE,
	card_last_four         TEXT NOT NULL DEFAULT '',
	payment_transaction_id TEXT NOT NULL DEFAULT '',
	paid_at                TIMESTAMPTZ,
	version                BIGINT NOT NULL,
	created_at             TIMESTAMPTZ NOT NULL,
	updated_at             TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders (status);
`

const orderColumns = `id, drink, size, milk, shots, cost::text, status, paid,
	card_last_four, payment_transaction_id, paid_at, version, created_at, updated_at`

type OrderPostgresRepository struct {
	pool *pgxpool.Pool
}

var _ interfaces.IOrderRepository = (*OrderPostgresRepository)(nil)

func NewOrderPostgresRepository(pool *pgxpool.Pool) *OrderPostgresRepository {
	return &OrderPostgresRepository{pool: pool}
}

func (r *OrderPostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, ordersSchema)
	return err
}

func (r *OrderPostgresRepository) Create(ctx context.Context, o entities.Order) (entities.Order, error) {
	if o.Version == 0 {
		o.Version = 1
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO orders (id, drink, size, milk, shots, cost, status, paid,
			card_last_four, payment_transaction_id, paid_at, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7, $8, $9, $10, $11, $12, $13, $14)`,
		o.ID, o.Drink, string(o.Size), o.Milk, o.Shots, o.Cost.StringFixed(2), string(o.Status), o.Paid,
		o.CardLastFour, o.PaymentTransactionID, o.PaidAt, o.Version, o.CreatedAt.UTC(), o.UpdatedAt.UTC())
	if err != nil {
		return entities.Order{}, err
	}
	return o, nil
}

func (r *OrderPostgresRepository) GetByID(ctx context.Context, id string) (entities.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entities.Order{}, nil
		}
		return entities.Order{}, err
	}
	return o, nil
}

func (r *OrderPostgresRepository) Update(ctx context.Context, o entities.Order) (entities.Order, error) {
	expected := o.Version
	o.Version++
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = nowUTC()
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET drink = $3, size = $4, milk = $5, shots = $6, cost = $7::text::numeric,
			status = $8, paid = $9, card_last_four = $10, payment_transaction_id = $11,
			paid_at = $12, version = $13, updated_at = $14
		WHERE id = $1 AND version = $2`,
		o.ID, expected, o.Drink, string(o.Size), o.Milk, o.Shots, o.Cost.StringFixed(2),
		string(o.Status), o.Paid, o.CardLastFour, o.PaymentTransactionID,
		o.PaidAt, o.Version, o.UpdatedAt.UTC())
	if err != nil {
		return entities.Order{}, err
	}
	if err := conflictOnNoRows(tag); err != nil {
		return entities.Order{}, err
	}
	return o, nil
}

func (r *OrderPostgresRepository) Delete(ctx context.Context, id string, version int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1 AND version = $2`, id, version)
	if err != nil {
		return err
	}
	return conflictOnNoRows(tag)
}

func (r *OrderPostgresRepository) List(ctx context.Context, filter entities.OrderFilter) ([]entities.Order, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}
	if filter.Paid != nil {
		args = append(args, *filter.Paid)
		where = append(where, "paid = $"+strconv.Itoa(len(args)))
	}
	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entities.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *OrderPostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanOrder(row pgx.Row) (entities.Order, error) {
	var (
		o                    entities.Order
		size, status, cost   string
		createdAt, updatedAt time.Time
	)
	err := row.Scan(&o.ID, &o.Drink, &size, &o.Milk, &o.Shots, &cost, &status, &o.Paid,
		&o.CardLastFour, &o.PaymentTransactionID, &o.PaidAt, &o.Version, &createdAt, &updatedAt)
	if err != nil {
		return entities.Order{}, err
	}
	o.Size = entities.OrderSize(size)
	o.Status = entities.OrderStatus(status)
	o.Cost, err = decimal.NewFromString(cost)
	if err != nil {
		return entities.Order{}, err
	}
	o.CreatedAt = createdAt.UTC()
	o.UpdatedAt = updatedAt.UTC()
	return o, nil
}

func conflictOnNoRows(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return interfaces.ErrOrderVersionConflict
	}
	return nil
}
