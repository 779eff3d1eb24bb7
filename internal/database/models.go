package database

import (
	"encoding/json"
	"time"

	"github.com/smukkama/energy-workshop/internal/status"
)

// Parameters is a team's technology selection. Keys match the web client.
type Parameters struct {
	Windturbines      int     `json:"windturbines"`
	CHPs              int     `json:"chps"`
	Boilers           int     `json:"boilers"`
	PVPlants          int     `json:"pv_plants"`
	HeatPumps         int     `json:"heat_pumps"`
	PVArea            float64 `json:"pv_area"`
	SolarThermalArea  float64 `json:"solar_thermal_area"`
	ElectricalStorage float64 `json:"electrical_storage"`
	ThermalStorage    float64 `json:"thermal_storage"`
}

// DefaultParameters is what a freshly seeded team starts with.
func DefaultParameters() Parameters {
	return Parameters{
		Windturbines:      2,
		CHPs:              1,
		Boilers:           0,
		PVPlants:          1,
		HeatPumps:         1,
		PVArea:            1.0,
		SolarThermalArea:  0.5,
		ElectricalStorage: 0.5,
		ThermalStorage:    1.0,
	}
}

// Team represents one workshop team and its current design
type Team struct {
	ID               int           `json:"id"`
	Name             string        `json:"name"`
	Parameters       Parameters    `json:"parameters"`
	SimulationStatus status.Status `json:"simulation_status"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// SimulationResult is the latest stored result payload of a team
type SimulationResult struct {
	ID             int64
	TeamID         int
	EnergyCost     float64
	CO2Emissions   float64
	RenewableShare float64
	Synthetic      bool
	Data           json.RawMessage
	CreatedAt      time.Time
}

// EventRecord is one journaled live-update event
type EventRecord struct {
	ID         int64
	EventType  string
	TeamID     *int
	BatchID    *string
	Payload    json.RawMessage
	OccurredAt time.Time
	ReceivedAt time.Time
}
