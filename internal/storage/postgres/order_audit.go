package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/chilirig-checkout/internal/domain/order"
	"github.com/xenking/chilirig-checkout/internal/wire"
)

const uniqueViolation = "23505"

// AppendTimeout bounds a single order_audit insert.
const AppendTimeout = 5 * time.Second

// Sentinel errors for audit lookups.
var (
	ErrDuplicateOrder = errors.New("order id already recorded")
	ErrOrderNotFound  = order.ErrRecordNotFound
)

const appendOrderSQL = `INSERT INTO order_audit (
	order_id, placed_at, email, full_name, phone, secondary_phone, address,
	city_id, city, zone_id, zone, area_id, area,
	items_summary, items, subtotal, shipping, total, weight_kg, status, consignment_id
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`

const selectOrderSQL = `SELECT
	order_id, placed_at, email, full_name, phone, secondary_phone, address,
	city_id, city, zone_id, zone, area_id, area,
	items_summary, items, subtotal, shipping, total, weight_kg, status, consignment_id
FROM order_audit`

var (
	_ order.AuditSink = (*AuditRepository)(nil)
	_ order.Lister    = (*AuditRepository)(nil)
	_ order.Finder    = (*AuditRepository)(nil)
)

// AuditRepository is the PostgreSQL audit sink. Rows are insert-only.
type AuditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository returns an AuditRepository that uses the given pool.
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// Append inserts the record. A repeated order id fails with
// ErrDuplicateOrder.
func (r *AuditRepository) Append(ctx context.Context, rec order.Record) error {
	ctx, cancel := context.WithTimeout(ctx, AppendTimeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, appendOrderSQL,
		rec.OrderID, rec.Date, rec.Email, rec.FullName, rec.Phone, rec.SecondaryPhone, rec.Address,
		rec.CityID, rec.City, rec.ZoneID, rec.Zone, rec.AreaID, rec.Area,
		rec.Items, wire.MarshalItems(rec.Lines), rec.Subtotal, rec.Shipping, rec.Total, rec.Weight,
		rec.Status, rec.ConsignmentID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("appending order %q: %w", rec.OrderID, ErrDuplicateOrder)
		}
		return fmt.Errorf("appending order %q: %w", rec.OrderID, err)
	}
	return nil
}

// List returns up to limit records, newest first.
func (r *AuditRepository) List(ctx context.Context, limit int) ([]order.Record, error) {
	rows, err := r.pool.Query(ctx, selectOrderSQL+` ORDER BY placed_at DESC, order_id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	var out []order.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating orders: %w", err)
	}
	return out, nil
}

// Get returns a single record by order id.
func (r *AuditRepository) Get(ctx context.Context, orderID string) (*order.Record, error) {
	row := r.pool.QueryRow(ctx, selectOrderSQL+` WHERE order_id = $1`, orderID)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func scanRecord(row pgx.Row) (order.Record, error) {
	var (
		rec   order.Record
		items []byte
	)
	if err := row.Scan(
		&rec.OrderID, &rec.Date, &rec.Email, &rec.FullName, &rec.Phone, &rec.SecondaryPhone, &rec.Address,
		&rec.CityID, &rec.City, &rec.ZoneID, &rec.Zone, &rec.AreaID, &rec.Area,
		&rec.Items, &items, &rec.Subtotal, &rec.Shipping, &rec.Total, &rec.Weight,
		&rec.Status, &rec.ConsignmentID,
	); err != nil {
		return order.Record{}, fmt.Errorf("scanning order: %w", err)
	}

	lines, err := wire.UnmarshalItems(items)
	if err != nil {
		return order.Record{}, fmt.Errorf("scanning order %q: %w", rec.OrderID, err)
	}
	rec.Lines = lines
	rec.Date = rec.Date.UTC()
	return rec, nil
}
