package timeseries

import (
	"math/rand/v2"
	"time"
)

// SyntheticHours is the horizon of fallback data: one year, hourly.
const SyntheticHours = 8760

var syntheticStart = time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)

// Synthetic fabricates a plausible, balanced bundle. Supply plus import
// matches demand plus export on both buses. The same seed always gives the
// same data.
func Synthetic(hours int, seed int64) *Bundle {
	rng := rand.New(rand.NewPCG(uint64(seed), 0x5eed))

	times := make([]string, hours)
	for i := range times {
		times[i] = syntheticStart.Add(time.Duration(i) * time.Hour).Format(TimeLayout)
	}

	col := func() []float64 { return make([]float64, hours) }
	var (
		elDemand, pv, wind, hpCons, imp, exp = col(), col(), col(), col(), col(), col()
		thDemand, boiler, hpHeat, boilerFuel = col(), col(), col(), col()
		elStore, thStore                     = col(), col()
	)

	for i := 0; i < hours; i++ {
		elDemand[i] = 50 + 20*rng.Float64()
		pv[i] = max(0, 30*rng.Float64()-15)
		wind[i] = 20 * rng.Float64()

		thDemand[i] = 30 + 15*rng.Float64()
		hpHeat[i] = 15 + 10*rng.Float64()
		boiler[i] = max(0, thDemand[i]-hpHeat[i])
		boilerFuel[i] = boiler[i] / 0.90
		hpCons[i] = hpHeat[i] / 3.0

		balance := elDemand[i] + hpCons[i] - pv[i] - wind[i]
		imp[i] = max(0, balance)
		exp[i] = max(0, -balance)

		elStore[i] = 50 + 30*rng.Float64()
		thStore[i] = 40 + 20*rng.Float64()
	}

	b := NewBundle(times)
	b.Synthetic = true
	b.add(GroupElectricity, Demand, elDemand)
	b.add(GroupElectricity, PVProduction, pv)
	b.add(GroupElectricity, WindProduction, wind)
	b.add(GroupElectricity, HeatPumpConsumption, hpCons)
	b.add(GroupElectricity, GridImport, imp)
	b.add(GroupElectricity, GridExport, exp)
	b.add(GroupHeat, Demand, thDemand)
	b.add(GroupHeat, BoilerProduction, boiler)
	b.add(GroupHeat, HeatPumpProduction, hpHeat)
	b.add(GroupStorage, ElectricStorage, elStore)
	b.add(GroupStorage, ThermalStorage, thStore)
	b.add(GroupProduction, PV, pv)
	b.add(GroupProduction, Wind, wind)
	b.add(GroupFuel, Boiler, boilerFuel)
	return b
}
