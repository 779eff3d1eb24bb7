package analysis

import (
	"math"

	"github.com/smukkama/energy-workshop/internal/database"
	"github.com/smukkama/energy-workshop/internal/timeseries"
	"github.com/smukkama/energy-workshop/pkg/config"
)

// Efficiencies used to back out gas use when a dump has no fuel flows
const (
	chpEfficiency    = 0.85
	boilerEfficiency = 0.90
)

// minSelfSufficiency floors the reported self-sufficiency so that every
// team stays visible in the comparison chart.
const minSelfSufficiency = 0.03

// Team is what the analysis needs to know about a team
type Team struct {
	ID     int
	Name   string
	Params database.Parameters
}

// Row is one line of the comparison table. Costs are in million EUR per
// year, emissions in tonnes, energies in kWh.
type Row struct {
	TeamName                 string
	Costs                    float64
	Emissions                float64
	SelfSufficiency          float64
	CHPs                     float64
	Boilers                  float64
	Windturbines             float64
	HeatPumps                float64
	EES                      float64
	TES                      float64
	PV                       float64
	SolarThermal             float64
	SelfSufficiencyElectric  float64
	SelfSufficiencyHeat      float64
	EmissionsProduction      float64
	EmissionsPurchase        float64
	CostInvest               float64
	CostOperation            float64
	TotalElectricityDemand   float64
	TotalElectricityProduced float64
	TotalElectricityPurchase float64
	TotalElectricityExcess   float64
	TotalHeatDemand          float64
	TotalHeatProduction      float64
	TotalHeatPurchase        float64
	TotalHeatExcess          float64
}

// Annuity spreads capex evenly over lifetime years at interest rate wacc
func Annuity(capex float64, lifetime int, wacc float64) float64 {
	if lifetime <= 0 {
		return 0
	}
	n := float64(lifetime)
	if wacc == 0 {
		return capex / n
	}
	q := math.Pow(1+wacc, n)
	return capex * wacc * q / (q - 1)
}

// Summarize computes the KPI row of one team from its bundle
func Summarize(team Team, b *timeseries.Bundle, econ config.EconomicsConfig) Row {
	p := team.Params
	el := func(ch string) float64 { return b.Sum(timeseries.GroupElectricity, ch) }
	ht := func(ch string) float64 { return b.Sum(timeseries.GroupHeat, ch) }
	orProduction := func(v float64, ch string) float64 {
		if v != 0 {
			return v
		}
		return b.Sum(timeseries.GroupProduction, ch)
	}

	var (
		elDemand   = el(timeseries.Demand)
		elFromGrid = el(timeseries.GridImport)
		elExcess   = el(timeseries.Excess) + el(timeseries.GridExport)
		elToHP     = el(timeseries.HeatPumpConsumption)
		elFromCHP  = el(timeseries.CHPProduction)
		elFromPV   = orProduction(el(timeseries.PVProduction), timeseries.PV)
		elFromWind = orProduction(el(timeseries.WindProduction), timeseries.Wind)

		heatDemand     = ht(timeseries.Demand)
		heatFromGrid   = ht(timeseries.GridImport)
		heatExcess     = ht(timeseries.Excess)
		heatFromCHP    = ht(timeseries.CHPProduction)
		heatFromBoiler = ht(timeseries.BoilerProduction)
		heatFromHP     = ht(timeseries.HeatPumpProduction)
		heatFromSolar  = orProduction(ht(timeseries.SolarThermalProduction), timeseries.SolarThermal)

		fuelCHP    = b.Sum(timeseries.GroupFuel, timeseries.CHP)
		fuelBoiler = b.Sum(timeseries.GroupFuel, timeseries.Boiler)
	)
	if fuelCHP == 0 {
		fuelCHP = (elFromCHP + heatFromCHP) / chpEfficiency
	}
	if fuelBoiler == 0 {
		fuelBoiler = heatFromBoiler / boilerEfficiency
	}

	annuity := func(capex float64) float64 { return Annuity(capex, econ.Lifetime, econ.WACC) }
	totalAnnuity := annuity(float64(p.CHPs)*econ.InvestCostCHP) +
		annuity(float64(p.Boilers)*econ.InvestCostBoiler) +
		annuity(float64(p.Windturbines)*econ.InvestCostWind) +
		annuity(float64(p.HeatPumps)*econ.InvestCostHeatPump) +
		annuity(p.ElectricalStorage*econ.InvestCostStorageEl) +
		annuity(p.ThermalStorage*econ.InvestCostStorageTh) +
		annuity(p.PVArea*econ.InvestCostPV) +
		annuity(p.SolarThermalArea*econ.InvestCostSolarThermal) +
		annuity(float64(p.PVPlants)*econ.InvestCostPVPlant*econ.PVPlantSurfaceArea)

	varCosts := (fuelCHP+fuelBoiler)*econ.VarCostGas +
		elFromGrid*econ.VarCostElectricityGrid +
		heatFromGrid*econ.VarCostHeatGrid

	coverageEl := coverage(elDemand, elFromGrid)
	coverageHeat := coverage(heatDemand, heatFromGrid)

	emissionsPurchase := elFromGrid*econ.EmissionElectricityGrid + heatFromGrid*econ.EmissionHeatGrid
	emissionsProduction := (fuelCHP + fuelBoiler) * econ.EmissionGas

	return Row{
		TeamName:                 team.Name,
		Costs:                    (varCosts + totalAnnuity) / 1e6,
		Emissions:                (emissionsPurchase + emissionsProduction) / 1e3,
		SelfSufficiency:          math.Max((coverageEl+coverageHeat)/2, minSelfSufficiency) * 100,
		CHPs:                     float64(p.CHPs),
		Boilers:                  float64(p.Boilers),
		Windturbines:             float64(p.Windturbines),
		HeatPumps:                float64(p.HeatPumps),
		EES:                      p.ElectricalStorage,
		TES:                      p.ThermalStorage,
		PV:                       p.PVArea,
		SolarThermal:             p.SolarThermalArea,
		SelfSufficiencyElectric:  coverageEl,
		SelfSufficiencyHeat:      coverageHeat,
		EmissionsProduction:      emissionsProduction / 1e3,
		EmissionsPurchase:        emissionsPurchase / 1e3,
		CostInvest:               totalAnnuity / 1e6,
		CostOperation:            varCosts / 1e6,
		TotalElectricityDemand:   elDemand + elToHP,
		TotalElectricityProduced: elFromCHP + elFromPV + elFromWind,
		TotalElectricityPurchase: elFromGrid,
		TotalElectricityExcess:   elExcess,
		TotalHeatDemand:          heatDemand,
		TotalHeatProduction:      heatFromCHP + heatFromBoiler + heatFromSolar + heatFromHP,
		TotalHeatPurchase:        heatFromGrid,
		TotalHeatExcess:          heatExcess,
	}
}

// coverage is the share of demand not bought from the grid. Zero demand
// yields zero coverage.
func coverage(demand, purchased float64) float64 {
	if demand <= 0 {
		return 0
	}
	return (demand - purchased) / demand
}
