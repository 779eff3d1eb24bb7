package timeseries

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Variable describes one plottable channel of a bundle
type Variable struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Group   string `json:"group"`
	Channel string `json:"channel"`
}

var variableLabels = map[string]string{
	"electricity_demand":               "Electricity demand",
	"electricity_pv_production":        "PV generation",
	"electricity_wind_production":      "Wind generation",
	"electricity_chp_production":       "CHP electricity",
	"electricity_grid_import":          "Grid import",
	"electricity_grid_export":          "Grid export",
	"electricity_excess":               "Electricity excess",
	"electricity_heatpump_consumption": "Heat pump consumption",
	"heat_demand":                      "Heat demand",
	"heat_boiler_production":           "Boiler heat",
	"heat_chp_production":              "CHP heat",
	"heat_heatpump_production":         "Heat pump heat",
	"heat_solar_thermal_production":    "Solar thermal heat",
	"heat_grid_import":                 "District heat import",
	"heat_excess":                      "Heat excess",
	"storage_electric_storage":         "Electrical storage level",
	"storage_thermal_storage":          "Thermal storage level",
	"production_pv":                    "PV production",
	"production_wind":                  "Wind production",
	"production_solar_thermal":         "Solar thermal production",
	"fuel_chp":                         "CHP gas input",
	"fuel_boiler":                      "Boiler gas input",
}

// productionFallback names the production channel that can stand in for an
// electricity or heat channel a dump did not populate.
var productionFallback = map[string]string{
	"electricity_pv_production":     PV,
	"electricity_wind_production":   Wind,
	"heat_solar_thermal_production": SolarThermal,
}

// VariableKey builds the lookup key of a channel
func VariableKey(group, channel string) string {
	return group + "_" + channel
}

// Variables lists the channels present in b, sorted by key
func Variables(b *Bundle) []Variable {
	if b == nil {
		return nil
	}

	var vars []Variable
	for _, group := range Groups {
		for channel := range b.Group(group) {
			key := VariableKey(group, channel)
			label, ok := variableLabels[key]
			if !ok {
				label = key
			}
			vars = append(vars, Variable{Key: key, Label: label, Group: group, Channel: channel})
		}
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i].Key < vars[j].Key })
	return vars
}

// Lookup returns the series for a variable key. Missing pv, wind and solar
// thermal channels fall back to the production group. ok is false when the
// key is unknown or the bundle lacks the data.
func Lookup(b *Bundle, key string) ([]float64, bool) {
	if b == nil {
		return nil, false
	}

	for _, group := range Groups {
		prefix := group + "_"
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if series, ok := b.Group(group)[strings.TrimPrefix(key, prefix)]; ok {
			return series, true
		}
	}

	if channel, ok := productionFallback[key]; ok {
		if series, ok := b.Production[channel]; ok {
			return series, true
		}
	}
	return nil, false
}

// Window returns the slice [start, start+hours) of series, clamped to its
// bounds. hours <= 0 means to the end.
func Window(series []float64, start, hours int) []float64 {
	if start < 0 {
		start = 0
	}
	if start > len(series) {
		start = len(series)
	}
	end := len(series)
	if hours > 0 && start+hours < end {
		end = start + hours
	}
	return series[start:end]
}

// TeamSummary reports data availability for one team
type TeamSummary struct {
	Available bool       `json:"available"`
	TimeSteps int        `json:"time_steps"`
	Synthetic bool       `json:"synthetic"`
	Variables []Variable `json:"variables"`
}

// Loader loads the bundle of a team
type Loader interface {
	Load(ctx context.Context, teamID int) (*Bundle, error)
}

// Summary reports availability for every team in the roster, keyed
// "Team_01", "Team_02", ...
func Summary(ctx context.Context, loader Loader, teamIDs []int) (map[string]TeamSummary, error) {
	out := make(map[string]TeamSummary, len(teamIDs))
	for _, id := range teamIDs {
		b, err := loader.Load(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("team %d: %w", id, err)
		}

		key := fmt.Sprintf("Team_%02d", id)
		if b == nil {
			out[key] = TeamSummary{Variables: []Variable{}}
			continue
		}
		out[key] = TeamSummary{
			Available: true,
			TimeSteps: b.Len(),
			Synthetic: b.Synthetic,
			Variables: Variables(b),
		}
	}
	return out, nil
}
