package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionRecord represents one fuel-sale event for data transfer between layers.
type TransactionRecord struct {
	TransactionID string          `json:"transaction_id"`
	StationID     int             `json:"station_id"`
	DockBay       *string         `json:"dock_bay,omitempty"`
	DockLevel     *int            `json:"dock_level,omitempty"`
	ShipName      *string         `json:"ship_name,omitempty"`
	Franchise     *string         `json:"franchise,omitempty"`
	CaptainName   *string         `json:"captain_name,omitempty"`
	Species       *string         `json:"species,omitempty"`
	FuelType      string          `json:"fuel_type"`
	FuelUnits     float64         `json:"fuel_units"`
	PricePerUnit  decimal.Decimal `json:"price_per_unit"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	Services      ServiceSet      `json:"services"`
	IsEmergency   bool            `json:"is_emergency"`
	VisitedAt     time.Time       `json:"visited_at"`
	ArrivalDate   time.Time       `json:"arrival_date"`
	CoordsX       float64         `json:"coords_x"`
	CoordsY       float64         `json:"coords_y"`
	CreatedAt     time.Time       `json:"created_at"`
}
