package quotes

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines persistence operations for quote requests.
type Repository interface {
	Insert(ctx context.Context, q QuoteRequest) (QuoteRequest, error)
	Get(ctx context.Context, id int64) (QuoteRequest, error)
	List(ctx context.Context, status Status, page, limit int) ([]QuoteRequest, int, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const quoteColumns = `id, first_name, last_name, email, phone, service_type, vehicle_brand, vehicle_model, vehicle_year, mileage, message, status, created_at`

func (r *repository) Insert(ctx context.Context, q QuoteRequest) (QuoteRequest, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO quote_requests (first_name, last_name, email, phone, service_type, vehicle_brand, vehicle_model, vehicle_year, mileage, message, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		RETURNING `+quoteColumns,
		q.FirstName, q.LastName, q.Email, q.Phone, string(q.ServiceType),
		q.VehicleBrand, q.VehicleModel, q.VehicleYear, q.Mileage, q.Message, string(StatusPending),
	)
	return scanQuote(row)
}

func (r *repository) Get(ctx context.Context, id int64) (QuoteRequest, error) {
	row := r.db.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quote_requests WHERE id = $1`, id)
	q, err := scanQuote(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return QuoteRequest{}, ErrQuoteNotFound
		}
		return QuoteRequest{}, err
	}
	return q, nil
}

func (r *repository) List(ctx context.Context, status Status, page, limit int) ([]QuoteRequest, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if status != "" {
		argCount++
		where += ` AND status = $` + strconv.Itoa(argCount)
		args = append(args, string(status))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM quote_requests`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + quoteColumns + ` FROM quote_requests` + where + ` ORDER BY created_at DESC`
	if limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, limit)

		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (page - 1) * limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []QuoteRequest
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, q)
	}
	return out, total, rows.Err()
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.db.Exec(ctx, `UPDATE quote_requests SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrQuoteNotFound
	}
	return nil
}

func scanQuote(row pgx.Row) (QuoteRequest, error) {
	var (
		q           QuoteRequest
		serviceType string
		status      string
	)
	err := row.Scan(&q.ID, &q.FirstName, &q.LastName, &q.Email, &q.Phone, &serviceType,
		&q.VehicleBrand, &q.VehicleModel, &q.VehicleYear, &q.Mileage, &q.Message, &status, &q.CreatedAt)
	if err != nil {
		return QuoteRequest{}, err
	}
	q.ServiceType = ServiceType(serviceType)
	q.Status = Status(status)
	return q, nil
}
