package storage

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	"github.com/pressly/goose"

	"github.com/you/orderflow/internal/domain"
)

// Store is the audit sink. It is not on the hot path: the queue and relay
// run without it, and it is written from relay sightings on the ingress
// side.
type Store struct{ db *sql.DB }

func New(db *sql.DB) *Store { return &Store{db} }

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "storage: open")
	}
	return &Store{db}, nil
}

func (s *Store) Migrate(dir string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return errors.Wrap(goose.Up(s.db, dir), "storage: migrate")
}

func (s *Store) Close() error { return s.db.Close() }

// InsertIfAbsent records the order on its first sighting. Events without
// order details cannot seed a row and are skipped.
func (s *Store) InsertIfAbsent(ctx context.Context, ev domain.StatusEvent) error {
	if ev.Request == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `insert into orders(
order_id, input_token, output_token, amount, status
) values ($1,$2,$3,$4,$5)
on conflict (order_id) do nothing`,
		ev.OrderID, ev.Request.InputToken, ev.Request.OutputToken, ev.Request.Amount, string(ev.Status),
	)
	return errors.Wrap(err, "storage: insert order")
}

// MarkTerminal records the final status, venue, price and tx hash.
func (s *Store) MarkTerminal(ctx context.Context, ev domain.StatusEvent) error {
	_, err := s.db.ExecContext(ctx, `update orders
   set status = $2,
       venue = nullif($3, ''),
       price = $4,
       tx_hash = nullif($5, ''),
       updated_at = now()
 where order_id = $1`,
		ev.OrderID, string(ev.Status), ev.Venue, ev.Price, ev.TxHash,
	)
	return errors.Wrap(err, "storage: mark terminal")
}

// GetOrder serves late joiners; the row, not socket history, is the
// authoritative record.
func (s *Store) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx, `select
order_id, input_token, output_token, amount, status,
coalesce(venue, ''), coalesce(price, 0), coalesce(tx_hash, ''),
created_at, coalesce(updated_at, created_at)
  from orders where order_id = $1`, orderID)

	var o domain.Order
	var status string
	err := row.Scan(&o.ID, &o.Request.InputToken, &o.Request.OutputToken, &o.Request.Amount,
		&status, &o.Venue, &o.Price, &o.TxHash, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "storage: get order")
	}
	o.Status = domain.Status(status)
	return &o, nil
}
