package quotes

import (
	"errors"
	"time"
)

// ErrQuoteNotFound indicates an unknown quote request ID.
var ErrQuoteNotFound = errors.New("quotes: quote request not found")

// ServiceType names one garage service a quote can target.
type ServiceType string

const (
	ServiceReparation ServiceType = "reparation"
	ServiceEntretien  ServiceType = "entretien"
	ServiceTuning     ServiceType = "tuning"
	ServiceVente      ServiceType = "vente"
)

// Valid reports whether the service type belongs to the catalog.
func (s ServiceType) Valid() bool {
	switch s {
	case ServiceReparation, ServiceEntretien, ServiceTuning, ServiceVente:
		return true
	}
	return false
}

// Status tracks the sales follow-up on a quote request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusContacted Status = "contacted"
	StatusClosed    Status = "closed"
)

// Valid reports whether the status belongs to the enum.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusContacted, StatusClosed:
		return true
	}
	return false
}

// QuoteRequest is one devis submission from the public site.
type QuoteRequest struct {
	ID           int64       `json:"id"`
	FirstName    string      `json:"first_name"`
	LastName     string      `json:"last_name"`
	Email        string      `json:"email"`
	Phone        string      `json:"phone"`
	ServiceType  ServiceType `json:"service_type"`
	VehicleBrand string      `json:"vehicle_brand"`
	VehicleModel string      `json:"vehicle_model"`
	VehicleYear  int         `json:"vehicle_year"`
	Mileage      int         `json:"mileage"`
	Message      string      `json:"message"`
	Status       Status      `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
}

// ServiceCatalogEntry describes one service for the public catalog.
type ServiceCatalogEntry struct {
	Type        ServiceType `json:"type"`
	Label       string      `json:"label"`
	Description string      `json:"description"`
}

// ServiceCatalog lists the services offered by the garage.
func ServiceCatalog() []ServiceCatalogEntry {
	return []ServiceCatalogEntry{
		{Type: ServiceReparation, Label: "Réparation", Description: "Diagnostic et réparation toutes marques"},
		{Type: ServiceEntretien, Label: "Entretien", Description: "Révision, vidange, freins, pneumatiques"},
		{Type: ServiceTuning, Label: "Tuning", Description: "Préparation moteur et personnalisation"},
		{Type: ServiceVente, Label: "Vente", Description: "Véhicules d'occasion révisés et garantis"},
	}
}
