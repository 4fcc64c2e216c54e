package vehicles

import (
	"errors"
	"time"
)

// ErrVehicleNotFound indicates an unknown vehicle ID.
var ErrVehicleNotFound = errors.New("vehicles: vehicle not found")

// ErrImageNotFound indicates an unknown image ID.
var ErrImageNotFound = errors.New("vehicles: image not found")

// ErrUnsupportedImage indicates an upload with a disallowed format.
var ErrUnsupportedImage = errors.New("vehicles: unsupported image format")

// Vehicle is one listing in the showroom catalog.
type Vehicle struct {
	ID          int64     `json:"id"`
	Brand       string    `json:"brand"`
	Model       string    `json:"model"`
	Year        int       `json:"year"`
	Price       float64   `json:"price"`
	Mileage     int       `json:"mileage"`
	FuelType    string    `json:"fuel_type"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	IsSold      bool      `json:"is_sold"`
	ImageURL    string    `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Image is one additional photo attached to a listing.
type Image struct {
	ID        int64     `json:"id"`
	VehicleID int64     `json:"vehicle_id"`
	ImageURL  string    `json:"image_url"`
	ObjectKey string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// ListFilters narrows and orders a catalog query.
type ListFilters struct {
	Category    string
	FuelType    string
	Search      string
	PriceMin    *float64
	PriceMax    *float64
	IncludeSold bool
	SortBy      string
	SortDir     string
	Page        int
	Limit       int
}
