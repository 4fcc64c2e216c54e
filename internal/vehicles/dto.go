package vehicles

import (
	"net/http"
	"strconv"

	"github.com/garagehq/garagehq/internal/shared"
)

type vehicleRequest struct {
	Brand       string  `json:"brand" validate:"required,max=80"`
	Model       string  `json:"model" validate:"required,max=80"`
	Year        int     `json:"year" validate:"required,min=1900,max=2100"`
	Price       float64 `json:"price" validate:"required,gt=0"`
	Mileage     int     `json:"mileage" validate:"min=0"`
	FuelType    string  `json:"fuel_type" validate:"required,oneof=essence diesel hybride electrique"`
	Category    string  `json:"category" validate:"required,max=40"`
	Description string  `json:"description" validate:"max=4000"`
	ImageURL    string  `json:"image_url" validate:"omitempty,url"`
}

func (req vehicleRequest) toVehicle() Vehicle {
	return Vehicle{
		Brand:       req.Brand,
		Model:       req.Model,
		Year:        req.Year,
		Price:       req.Price,
		Mileage:     req.Mileage,
		FuelType:    req.FuelType,
		Category:    req.Category,
		Description: req.Description,
		ImageURL:    req.ImageURL,
	}
}

type soldRequest struct {
	IsSold bool `json:"is_sold"`
}

type listResponse struct {
	Vehicles   []Vehicle         `json:"vehicles"`
	Pagination shared.Pagination `json:"pagination"`
}

type detailResponse struct {
	Vehicle Vehicle `json:"vehicle"`
	Images  []Image `json:"images"`
}

const defaultPageSize = 12

// filtersFromQuery maps URL query parameters onto ListFilters.
func filtersFromQuery(r *http.Request) ListFilters {
	q := r.URL.Query()
	filters := ListFilters{
		Category: q.Get("category"),
		FuelType: q.Get("fuel_type"),
		Search:   q.Get("search"),
		SortBy:   q.Get("sort_by"),
		SortDir:  q.Get("sort_dir"),
		Page:     1,
		Limit:    defaultPageSize,
	}
	if v, err := strconv.ParseFloat(q.Get("price_min"), 64); err == nil {
		filters.PriceMin = &v
	}
	if v, err := strconv.ParseFloat(q.Get("price_max"), 64); err == nil {
		filters.PriceMax = &v
	}
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		filters.Page = v
	}
	if v, err := strconv.Atoi(q.Get("per_page")); err == nil && v > 0 && v <= 100 {
		filters.Limit = v
	}
	if q.Get("include_sold") == "true" {
		filters.IncludeSold = true
	}
	return filters
}
