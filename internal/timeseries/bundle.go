package timeseries

import (
	"math"
)

// TimeLayout is the timestamp format used in bundles.
const TimeLayout = "2006-01-02 15:04:05"

// Channel groups
const (
	GroupElectricity = "electricity"
	GroupHeat        = "heat"
	GroupStorage     = "storage"
	GroupProduction  = "production"
	GroupFuel        = "fuel"
)

// Channel names within the groups
const (
	Demand                 = "demand"
	PVProduction           = "pv_production"
	WindProduction         = "wind_production"
	CHPProduction          = "chp_production"
	GridImport             = "grid_import"
	GridExport             = "grid_export"
	Excess                 = "excess"
	HeatPumpConsumption    = "heatpump_consumption"
	BoilerProduction       = "boiler_production"
	HeatPumpProduction     = "heatpump_production"
	SolarThermalProduction = "solar_thermal_production"
	ElectricStorage        = "electric_storage"
	ThermalStorage         = "thermal_storage"
	PV                     = "pv"
	Wind                   = "wind"
	SolarThermal           = "solar_thermal"
	CHP                    = "chp"
	Boiler                 = "boiler"
)

// Groups lists the channel groups in display order.
var Groups = []string{GroupElectricity, GroupHeat, GroupStorage, GroupProduction, GroupFuel}

// Bundle is the normalized time-series view of one optimizer result. Every
// series has the same length as Time.
type Bundle struct {
	Time        []string             `json:"time"`
	Hour        []int                `json:"hour"`
	Electricity map[string][]float64 `json:"electricity"`
	Heat        map[string][]float64 `json:"heat"`
	Storage     map[string][]float64 `json:"storage"`
	Production  map[string][]float64 `json:"production"`
	Fuel        map[string][]float64 `json:"fuel"`
	Synthetic   bool                 `json:"synthetic"`
}

// NewBundle creates an empty bundle over the given timestamps
func NewBundle(times []string) *Bundle {
	hours := make([]int, len(times))
	for i := range hours {
		hours[i] = i
	}
	return &Bundle{
		Time:        times,
		Hour:        hours,
		Electricity: make(map[string][]float64),
		Heat:        make(map[string][]float64),
		Storage:     make(map[string][]float64),
		Production:  make(map[string][]float64),
		Fuel:        make(map[string][]float64),
	}
}

// Len returns the number of time steps
func (b *Bundle) Len() int {
	return len(b.Time)
}

// Group returns the channel map of a group, or nil for an unknown name
func (b *Bundle) Group(name string) map[string][]float64 {
	switch name {
	case GroupElectricity:
		return b.Electricity
	case GroupHeat:
		return b.Heat
	case GroupStorage:
		return b.Storage
	case GroupProduction:
		return b.Production
	case GroupFuel:
		return b.Fuel
	}
	return nil
}

// Series returns a channel, or nil when it is absent
func (b *Bundle) Series(group, channel string) []float64 {
	g := b.Group(group)
	if g == nil {
		return nil
	}
	return g[channel]
}

// Sum totals a channel over the whole horizon
func (b *Bundle) Sum(group, channel string) float64 {
	return sumFirst(b.Series(group, channel), len(b.Time))
}

// SumFirst totals the first n samples of a channel
func (b *Bundle) SumFirst(group, channel string, n int) float64 {
	return sumFirst(b.Series(group, channel), n)
}

func sumFirst(series []float64, n int) float64 {
	if n > len(series) {
		n = len(series)
	}
	var total float64
	for _, v := range series[:max(n, 0)] {
		total += v
	}
	return total
}

// add accumulates series into a channel. Series landing on the same
// channel are summed element-wise.
func (b *Bundle) add(group, channel string, series []float64) {
	g := b.Group(group)
	n := len(b.Time)
	clean := Clean(series, n)

	existing, ok := g[channel]
	if !ok {
		g[channel] = clean
		return
	}
	for i := range existing {
		existing[i] = round6(existing[i] + clean[i])
	}
}

// Clean returns series resized to n samples: non-finite values become 0,
// values are rounded to 6 decimals, short series are zero-padded and long
// ones truncated.
func Clean(series []float64, n int) []float64 {
	out := make([]float64, n)
	for i := 0; i < n && i < len(series); i++ {
		v := series[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[i] = round6(v)
	}
	return out
}

func round6(v float64) float64 {
	r := math.Round(v*1e6) / 1e6
	if r == 0 {
		return 0
	}
	return r
}
