package sankey

import (
	"fmt"
	"strings"

	"github.com/smukkama/energy-workshop/internal/timeseries"
)

// Conversion assumptions used when a flow was not measured
const (
	CHPEfficiency    = 0.85
	BoilerEfficiency = 0.90
	HeatPumpCOP      = 3.0
)

// Period is an aggregation window measured in hours
type Period struct {
	Name  string
	Hours int
}

var periods = map[string]int{
	"hour":  1,
	"day":   24,
	"week":  168,
	"month": 744,
	"year":  8760,
}

// ParsePeriod validates a time period name
func ParsePeriod(s string) (Period, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	hours, ok := periods[name]
	if !ok {
		return Period{}, fmt.Errorf("%w: %q (want hour, day, week, month or year)", ErrInvalidPeriod, s)
	}
	return Period{Name: name, Hours: hours}, nil
}

// Node indices
const (
	NodePV = iota
	NodeWind
	NodeGrid
	NodeGas
	NodeSolarThermal
	NodeElectricity
	NodeHeat
	NodeCHP
	NodeBoiler
	NodeHeatPump
	NodeElectricityDemand
	NodeHeatDemand
	NodeGridExport
)

// Nodes are the fixed node names, indexed by the Node constants.
var Nodes = []string{
	"Photovoltaics",
	"Wind",
	"Power grid",
	"Gas",
	"Solar thermal",
	"Electricity",
	"Heat",
	"CHP",
	"Gas boiler",
	"Heat pump",
	"Electricity demand",
	"Heat demand",
	"Grid export",
}

// Link is a directed energy flow between two nodes
type Link struct {
	Source  int     `json:"source"`
	Target  int     `json:"target"`
	Value   float64 `json:"value"`
	Label   string  `json:"label"`
	Derived bool    `json:"derived"`
}

// Graph is the energy flow diagram of one team over one period
type Graph struct {
	Nodes            []string `json:"nodes"`
	Links            []Link   `json:"links"`
	TeamID           int      `json:"team_id"`
	TimePeriod       string   `json:"time_period"`
	TotalElectricity float64  `json:"total_electricity"`
	TotalHeat        float64  `json:"total_heat"`
	TotalGas         float64  `json:"total_gas"`
}

// Project sums the first period.Hours samples of b into a flow graph.
// A nil bundle yields a nil graph.
func Project(teamID int, b *timeseries.Bundle, period Period) *Graph {
	if b == nil {
		return nil
	}

	n := period.Hours
	el := func(ch string) float64 { return b.SumFirst(timeseries.GroupElectricity, ch, n) }
	ht := func(ch string) float64 { return b.SumFirst(timeseries.GroupHeat, ch, n) }
	withFallback := func(primary float64, channel string) float64 {
		if primary != 0 {
			return primary
		}
		return b.SumFirst(timeseries.GroupProduction, channel, n)
	}

	var (
		pv           = withFallback(el(timeseries.PVProduction), timeseries.PV)
		wind         = withFallback(el(timeseries.WindProduction), timeseries.Wind)
		chpEl        = el(timeseries.CHPProduction)
		gridImport   = el(timeseries.GridImport)
		gridExport   = el(timeseries.GridExport)
		elDemand     = el(timeseries.Demand)
		hpEl         = el(timeseries.HeatPumpConsumption)
		chpHeat      = ht(timeseries.CHPProduction)
		boilerHeat   = ht(timeseries.BoilerProduction)
		hpHeat       = ht(timeseries.HeatPumpProduction)
		solarThermal = withFallback(ht(timeseries.SolarThermalProduction), timeseries.SolarThermal)
		heatDemand   = ht(timeseries.Demand)
		chpFuel      = b.SumFirst(timeseries.GroupFuel, timeseries.CHP, n)
		boilerFuel   = b.SumFirst(timeseries.GroupFuel, timeseries.Boiler, n)
	)

	g := &Graph{
		Nodes:      Nodes,
		Links:      []Link{},
		TeamID:     teamID,
		TimePeriod: period.Name,
	}
	add := func(src, dst int, value float64, derived bool, format string) {
		if value <= 0 {
			return
		}
		g.Links = append(g.Links, Link{
			Source:  src,
			Target:  dst,
			Value:   value,
			Label:   fmt.Sprintf(format, value),
			Derived: derived,
		})
	}

	add(NodePV, NodeElectricity, pv, false, "PV: %.1f MWh")
	add(NodeWind, NodeElectricity, wind, false, "Wind: %.1f MWh")
	add(NodeGrid, NodeElectricity, gridImport, false, "Grid import: %.1f MWh")
	add(NodeCHP, NodeElectricity, chpEl, false, "CHP electricity: %.1f MWh")

	if chpEl > 0 || chpHeat > 0 {
		derived := chpFuel <= 0
		if derived {
			chpFuel = (chpEl + chpHeat) / CHPEfficiency
		}
		add(NodeGas, NodeCHP, chpFuel, derived, "Gas to CHP: %.1f MWh")
		g.TotalGas += chpFuel
	}
	if boilerHeat > 0 {
		derived := boilerFuel <= 0
		if derived {
			boilerFuel = boilerHeat / BoilerEfficiency
		}
		add(NodeGas, NodeBoiler, boilerFuel, derived, "Gas to boiler: %.1f MWh")
		g.TotalGas += boilerFuel
	}

	add(NodeCHP, NodeHeat, chpHeat, false, "CHP heat: %.1f MWh")
	add(NodeBoiler, NodeHeat, boilerHeat, false, "Boiler: %.1f MWh")
	if hpHeat > 0 {
		add(NodeHeatPump, NodeHeat, hpHeat, false, "Heat pump: %.1f MWh")
		derived := hpEl <= 0
		if derived {
			hpEl = hpHeat / HeatPumpCOP
		}
		add(NodeElectricity, NodeHeatPump, hpEl, derived, "Electricity to heat pump: %.1f MWh")
	}
	add(NodeSolarThermal, NodeHeat, solarThermal, false, "Solar thermal: %.1f MWh")

	add(NodeElectricity, NodeElectricityDemand, elDemand, false, "Electricity demand: %.1f MWh")
	add(NodeHeat, NodeHeatDemand, heatDemand, false, "Heat demand: %.1f MWh")
	add(NodeElectricity, NodeGridExport, gridExport, false, "Grid export: %.1f MWh")

	for _, l := range g.Links {
		switch l.Target {
		case NodeElectricity:
			g.TotalElectricity += l.Value
		case NodeHeat:
			g.TotalHeat += l.Value
		}
	}
	return g
}

var (
	ErrInvalidPeriod = &SankeyError{"invalid time period"}
)

// SankeyError represents a projection error
type SankeyError struct {
	msg string
}

func (e *SankeyError) Error() string {
	return e.msg
}
