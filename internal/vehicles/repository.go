package vehicles

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines persistence operations for the catalog.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Vehicle, int, error)
	Get(ctx context.Context, id int64) (Vehicle, error)
	Create(ctx context.Context, v Vehicle) (Vehicle, error)
	Update(ctx context.Context, id int64, v Vehicle) error
	SetSold(ctx context.Context, id int64, sold bool) error
	Delete(ctx context.Context, id int64) error
	AddImage(ctx context.Context, img Image) (Image, error)
	ListImages(ctx context.Context, vehicleID int64) ([]Image, error)
	GetImage(ctx context.Context, id int64) (Image, error)
	DeleteImage(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const vehicleColumns = `id, brand, model, year, price, mileage, fuel_type, category, description, is_sold, image_url, created_at, updated_at`

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Vehicle, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if !filters.IncludeSold {
		where += ` AND is_sold = FALSE`
	}
	if filters.Category != "" {
		argCount++
		where += ` AND category = $` + strconv.Itoa(argCount)
		args = append(args, filters.Category)
	}
	if filters.FuelType != "" {
		argCount++
		where += ` AND fuel_type = $` + strconv.Itoa(argCount)
		args = append(args, filters.FuelType)
	}
	if filters.Search != "" {
		argCount++
		where += ` AND (brand ILIKE $` + strconv.Itoa(argCount) + ` OR model ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.PriceMin != nil {
		argCount++
		where += ` AND price >= $` + strconv.Itoa(argCount)
		args = append(args, *filters.PriceMin)
	}
	if filters.PriceMax != nil {
		argCount++
		where += ` AND price <= $` + strconv.Itoa(argCount)
		args = append(args, *filters.PriceMax)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM vehicles`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + vehicleColumns + ` FROM vehicles` + where
	query += ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)

	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)

		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (filters.Page - 1) * filters.Limit
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

	var out []Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Vehicle, error) {
	row := r.db.QueryRow(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1`, id)
	v, err := scanVehicle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Vehicle{}, ErrVehicleNotFound
		}
		return Vehicle{}, err
	}
	return v, nil
}

func (r *repository) Create(ctx context.Context, v Vehicle) (Vehicle, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO vehicles (brand, model, year, price, mileage, fuel_type, category, description, is_sold, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		RETURNING `+vehicleColumns,
		v.Brand, v.Model, v.Year, v.Price, v.Mileage, v.FuelType, v.Category, v.Description, v.IsSold, v.ImageURL,
	)
	return scanVehicle(row)
}

func (r *repository) Update(ctx context.Context, id int64, v Vehicle) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE vehicles
		SET brand = $2, model = $3, year = $4, price = $5, mileage = $6,
		    fuel_type = $7, category = $8, description = $9, image_url = $10,
		    updated_at = now()
		WHERE id = $1`,
		id, v.Brand, v.Model, v.Year, v.Price, v.Mileage, v.FuelType, v.Category, v.Description, v.ImageURL,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVehicleNotFound
	}
	return nil
}

func (r *repository) SetSold(ctx context.Context, id int64, sold bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE vehicles SET is_sold = $2, updated_at = now() WHERE id = $1`, id, sold)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVehicleNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM vehicles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVehicleNotFound
	}
	return nil
}

func (r *repository) AddImage(ctx context.Context, img Image) (Image, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO vehicle_images (vehicle_id, image_url, object_key, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING id, vehicle_id, image_url, object_key, created_at`,
		img.VehicleID, img.ImageURL, img.ObjectKey,
	)
	return scanImage(row)
}

func (r *repository) ListImages(ctx context.Context, vehicleID int64) ([]Image, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, vehicle_id, image_url, object_key, created_at
		FROM vehicle_images WHERE vehicle_id = $1 ORDER BY created_at`, vehicleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

func (r *repository) GetImage(ctx context.Context, id int64) (Image, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, vehicle_id, image_url, object_key, created_at
		FROM vehicle_images WHERE id = $1`, id)
	img, err := scanImage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Image{}, ErrImageNotFound
		}
		return Image{}, err
	}
	return img, nil
}

func (r *repository) DeleteImage(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM vehicle_images WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrImageNotFound
	}
	return nil
}

func scanVehicle(row pgx.Row) (Vehicle, error) {
	var v Vehicle
	err := row.Scan(&v.ID, &v.Brand, &v.Model, &v.Year, &v.Price, &v.Mileage,
		&v.FuelType, &v.Category, &v.Description, &v.IsSold, &v.ImageURL,
		&v.CreatedAt, &v.UpdatedAt)
	return v, err
}

func scanImage(row pgx.Row) (Image, error) {
	var img Image
	err := row.Scan(&img.ID, &img.VehicleID, &img.ImageURL, &img.ObjectKey, &img.CreatedAt)
	return img, err
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "price":
		return "price " + dir
	case "year":
		return "year " + dir
	case "mileage":
		return "mileage " + dir
	case "created_at":
		return "created_at " + dir
	default:
		return "created_at DESC"
	}
}
