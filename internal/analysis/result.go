package analysis

import "math"

// Result is the per-team payload shown by the web client
type Result struct {
	TeamName        string             `json:"team_name"`
	EnergyCost      float64            `json:"energy_cost"`
	CO2Emissions    float64            `json:"co2_emissions"`
	RenewableShare  float64            `json:"renewable_share"`
	CostBreakdown   CostBreakdown      `json:"cost_breakdown"`
	TechnologyMix   TechnologyMix      `json:"technology_mix"`
	SelfSufficiency SelfSufficiency    `json:"self_sufficiency_detailed"`
	Emissions       EmissionsBreakdown `json:"emissions_breakdown"`
	EnergyBalance   EnergyBalance      `json:"energy_balance"`
	Synthetic       bool               `json:"synthetic"`
}

type CostBreakdown struct {
	Investment float64 `json:"investment"`
	Operation  float64 `json:"operation"`
}

type TechnologyMix struct {
	CHPs              int     `json:"chps"`
	Boilers           int     `json:"boilers"`
	Windturbines      int     `json:"windturbines"`
	HeatPumps         int     `json:"heat_pumps"`
	PVPlants          int     `json:"pv_plants"`
	SolarThermal      int     `json:"solar_thermal"`
	ElectricalStorage float64 `json:"electrical_storage"`
	ThermalStorage    float64 `json:"thermal_storage"`
}

type SelfSufficiency struct {
	Total      float64 `json:"total"`
	Electrical float64 `json:"electrical"`
	Thermal    float64 `json:"thermal"`
}

type EmissionsBreakdown struct {
	Total      float64 `json:"total"`
	Production float64 `json:"production"`
	Purchase   float64 `json:"purchase"`
}

type Balance struct {
	Demand     float64 `json:"demand"`
	Production float64 `json:"production"`
	Purchase   float64 `json:"purchase"`
	Excess     float64 `json:"excess"`
}

type EnergyBalance struct {
	Electricity Balance `json:"electricity"`
	Heat        Balance `json:"heat"`
}

// ResultFromRow converts a table row into the web payload. Costs keep two
// decimals, everything else one. Coverage shares become percentages.
func ResultFromRow(r Row, synthetic bool) Result {
	return Result{
		TeamName:       r.TeamName,
		EnergyCost:     round(r.Costs, 2),
		CO2Emissions:   round(r.Emissions, 1),
		RenewableShare: round(r.SelfSufficiency, 1),
		CostBreakdown: CostBreakdown{
			Investment: round(r.CostInvest, 2),
			Operation:  round(r.CostOperation, 2),
		},
		TechnologyMix: TechnologyMix{
			CHPs:              int(r.CHPs),
			Boilers:           int(r.Boilers),
			Windturbines:      int(r.Windturbines),
			HeatPumps:         int(r.HeatPumps),
			PVPlants:          int(r.PV),
			SolarThermal:      int(r.SolarThermal),
			ElectricalStorage: round(r.EES, 1),
			ThermalStorage:    round(r.TES, 1),
		},
		SelfSufficiency: SelfSufficiency{
			Total:      round(r.SelfSufficiency, 1),
			Electrical: round(r.SelfSufficiencyElectric*100, 1),
			Thermal:    round(r.SelfSufficiencyHeat*100, 1),
		},
		Emissions: EmissionsBreakdown{
			Total:      round(r.Emissions, 1),
			Production: round(r.EmissionsProduction, 1),
			Purchase:   round(r.EmissionsPurchase, 1),
		},
		EnergyBalance: EnergyBalance{
			Electricity: Balance{
				Demand:     round(r.TotalElectricityDemand, 1),
				Production: round(r.TotalElectricityProduced, 1),
				Purchase:   round(r.TotalElectricityPurchase, 1),
				Excess:     round(r.TotalElectricityExcess, 1),
			},
			Heat: Balance{
				Demand:     round(r.TotalHeatDemand, 1),
				Production: round(r.TotalHeatProduction, 1),
				Purchase:   round(r.TotalHeatPurchase, 1),
				Excess:     round(r.TotalHeatExcess, 1),
			},
		},
		Synthetic: synthetic,
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
