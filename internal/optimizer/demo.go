package optimizer

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/smukkama/energy-workshop/internal/database"
	"github.com/smukkama/energy-workshop/internal/timeseries"
)

// DemoHours is the horizon of demo runs
const DemoHours = 8760

// Unit sizes of the demo dispatch, in kW per unit (or per hectare)
const (
	pvPerHectare          = 600.0
	pvPerPlant            = 2500.0
	windPerTurbine        = 900.0
	solarThermalPerHa     = 500.0
	heatPumpHeatCapacity  = 350.0
	chpHeatCapacity       = 450.0
	chpPowerToHeat        = 0.8
	boilerHeatCapacity    = 1200.0
	demoHeatPumpCOP       = 3.0
	demoCHPEfficiency     = 0.85
	demoBoilerEfficiency  = 0.90
	baseElectricityDemand = 600.0
	baseHeatDemand        = 900.0
)

var demoStart = time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)

// DemoRunner dispatches a simple merit-order model in process. It stands in
// for the external optimizer when none is installed.
type DemoRunner struct {
	dumpsDir string
	hours    int
}

// NewDemoRunner creates a runner writing dumps of the given length
func NewDemoRunner(dumpsDir string, hours int) *DemoRunner {
	return &DemoRunner{dumpsDir: dumpsDir, hours: hours}
}

// Run writes the dump of one team
func (r *DemoRunner) Run(ctx context.Context, params database.Parameters, teamID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := Dispatch(params, r.hours, int64(teamID))
	return timeseries.WriteDumpFile(timeseries.DumpPath(r.dumpsDir, teamID), d)
}

// Dispatch simulates one design over hours time steps. Supply and demand
// balance on both buses in every hour.
func Dispatch(p database.Parameters, hours int, seed int64) *timeseries.Dump {
	rng := rand.New(rand.NewPCG(uint64(seed), 0xd15a7c4))

	col := func() []float64 { return make([]float64, hours) }
	var (
		elDemand, heatDemand           = col(), col()
		pv, wind, solarTh              = col(), col(), col()
		hpHeat, hpEl                   = col(), col()
		chpEl, chpHeat, chpFuel        = col(), col(), col()
		boilerHeat, boilerFuel         = col(), col()
		elImport, elExport, heatImport = col(), col(), col()
		heatExcess                     = col()
		elCharge, elDischarge, elLevel = col(), col(), col()
		thCharge, thDischarge, thLevel = col(), col(), col()
	)

	elCapacity := p.ElectricalStorage * baseElectricityDemand * 24
	thCapacity := p.ThermalStorage * baseHeatDemand * 24
	var elStored, thStored float64

	windFactor := rng.Float64()
	index := make([]string, hours)

	for h := 0; h < hours; h++ {
		ts := demoStart.Add(time.Duration(h) * time.Hour)
		index[h] = ts.Format(timeseries.TimeLayout)

		daylight := math.Max(0, math.Sin(math.Pi*(float64(ts.Hour())-6)/12))
		season := math.Cos(2 * math.Pi * float64(ts.YearDay()) / 365)
		solar := daylight * (0.6 - 0.4*season)

		elDemand[h] = baseElectricityDemand * (0.8 + 0.3*daylight + 0.1*rng.Float64())
		heatDemand[h] = baseHeatDemand * (1 + 0.6*season) * (0.9 + 0.2*rng.Float64())

		windFactor = math.Min(1, math.Max(0, windFactor+0.2*(rng.Float64()-0.5)))
		pv[h] = solar * (p.PVArea*pvPerHectare + float64(p.PVPlants)*pvPerPlant)
		wind[h] = windFactor * float64(p.Windturbines) * windPerTurbine
		solarTh[h] = solar * p.SolarThermalArea * solarThermalPerHa

		// Heat bus: solar first, then storage, heat pumps, CHPs, boilers,
		// district heat.
		rest := heatDemand[h] - solarTh[h]
		if rest < 0 {
			thCharge[h] = math.Min(-rest, thCapacity-thStored)
			thStored += thCharge[h]
			heatExcess[h] = -rest - thCharge[h]
			rest = 0
		}
		thDischarge[h] = math.Min(rest, thStored)
		thStored -= thDischarge[h]
		rest -= thDischarge[h]

		hpHeat[h] = math.Min(rest, float64(p.HeatPumps)*heatPumpHeatCapacity)
		hpEl[h] = hpHeat[h] / demoHeatPumpCOP
		rest -= hpHeat[h]

		chpHeat[h] = math.Min(rest, float64(p.CHPs)*chpHeatCapacity)
		chpEl[h] = chpHeat[h] * chpPowerToHeat
		chpFuel[h] = (chpEl[h] + chpHeat[h]) / demoCHPEfficiency
		rest -= chpHeat[h]

		boilerHeat[h] = math.Min(rest, float64(p.Boilers)*boilerHeatCapacity)
		boilerFuel[h] = boilerHeat[h] / demoBoilerEfficiency
		rest -= boilerHeat[h]

		heatImport[h] = rest

		// Electricity bus: storage absorbs surplus and covers deficits,
		// the grid takes the rest.
		balance := pv[h] + wind[h] + chpEl[h] - elDemand[h] - hpEl[h]
		if balance > 0 {
			elCharge[h] = math.Min(balance, elCapacity-elStored)
			elStored += elCharge[h]
			elExport[h] = balance - elCharge[h]
		} else {
			elDischarge[h] = math.Min(-balance, elStored)
			elStored -= elDischarge[h]
			elImport[h] = -balance - elDischarge[h]
		}

		elLevel[h] = elStored
		thLevel[h] = thStored
	}

	c := func(label string, kind timeseries.Kind) timeseries.Component {
		return timeseries.Component{Label: label, Kind: kind}
	}
	var (
		busEl   = c("electricity", timeseries.KindBusElectricity)
		busTh   = c("heat", timeseries.KindBusHeat)
		gas     = c("natural_gas", timeseries.KindGasSource)
		gridEl  = c("grid_el", timeseries.KindGrid)
		gridTh  = c("district_heat", timeseries.KindGrid)
		storeEl = c("storage_el", timeseries.KindStorageElectric)
		storeTh = c("storage_th", timeseries.KindStorageThermal)
	)

	d := &timeseries.Dump{TimeIndex: index}
	flow := func(src, dst timeseries.Component, seq []float64) {
		d.Flows = append(d.Flows, timeseries.Flow{Source: src, Target: dst, Sequence: seq})
	}

	flow(busEl, c("demand_el", timeseries.KindDemand), elDemand)
	flow(busTh, c("demand_th", timeseries.KindDemand), heatDemand)
	flow(gridEl, busEl, elImport)
	flow(busEl, gridEl, elExport)
	flow(gridTh, busTh, heatImport)
	flow(busTh, c("excess_bth", timeseries.KindExcess), heatExcess)

	if p.PVArea > 0 {
		flow(c("PV", timeseries.KindPV), busEl, scale(pv, p.PVArea*pvPerHectare, p.PVArea*pvPerHectare+float64(p.PVPlants)*pvPerPlant))
	}
	if p.PVPlants > 0 {
		flow(c("PV_pp", timeseries.KindPV), busEl, scale(pv, float64(p.PVPlants)*pvPerPlant, p.PVArea*pvPerHectare+float64(p.PVPlants)*pvPerPlant))
	}
	if p.Windturbines > 0 {
		flow(c("wind_turbine", timeseries.KindWind), busEl, wind)
	}
	if p.SolarThermalArea > 0 {
		flow(c("solar_thermal", timeseries.KindSolarThermal), busTh, solarTh)
	}
	if p.HeatPumps > 0 {
		hp := c("heat_pump", timeseries.KindHeatPump)
		flow(busEl, hp, hpEl)
		flow(hp, busTh, hpHeat)
	}
	if p.CHPs > 0 {
		chp := c("chp", timeseries.KindCHP)
		flow(gas, chp, chpFuel)
		flow(chp, busEl, chpEl)
		flow(chp, busTh, chpHeat)
	}
	if p.Boilers > 0 {
		boiler := c("boiler", timeseries.KindBoiler)
		flow(gas, boiler, boilerFuel)
		flow(boiler, busTh, boilerHeat)
	}
	if elCapacity > 0 {
		flow(busEl, storeEl, elCharge)
		flow(storeEl, busEl, elDischarge)
		d.Storages = append(d.Storages, timeseries.StorageLevel{Label: storeEl.Label, Kind: storeEl.Kind, Content: elLevel})
	}
	if thCapacity > 0 {
		flow(busTh, storeTh, thCharge)
		flow(storeTh, busTh, thDischarge)
		d.Storages = append(d.Storages, timeseries.StorageLevel{Label: storeTh.Label, Kind: storeTh.Kind, Content: thLevel})
	}
	return d
}

// scale returns the share part/total of series
func scale(series []float64, part, total float64) []float64 {
	out := make([]float64, len(series))
	if total <= 0 {
		return out
	}
	f := part / total
	for i, v := range series {
		out[i] = v * f
	}
	return out
}
