package optimizer

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/smukkama/energy-workshop/internal/database"
)

// ParameterHeader is the header of the per-team parameter file the
// optimizer reads.
var ParameterHeader = []string{"id", "var_name", "value", "unit", "reference", "Comment", "tag_1", "tag_2", "component"}

type parameterSpec struct {
	varName   string
	unit      string
	component string
	value     func(database.Parameters) float64
}

var parameterSpecs = []parameterSpec{
	{"number_of_windturbines", "1", "wind_turb", func(p database.Parameters) float64 { return float64(p.Windturbines) }},
	{"number_of_chps", "1", "chp", func(p database.Parameters) float64 { return float64(p.CHPs) }},
	{"number_of_boilers", "1", "boiler", func(p database.Parameters) float64 { return float64(p.Boilers) }},
	{"number_of_PV_pp", "1", "PV_pp", func(p database.Parameters) float64 { return float64(p.PVPlants) }},
	{"number_of_heat_pumps", "1", "heat_pump", func(p database.Parameters) float64 { return float64(p.HeatPumps) }},
	{"area_PV", "ha", "PV", func(p database.Parameters) float64 { return p.PVArea }},
	{"area_solar_th", "ha", "solart_th", func(p database.Parameters) float64 { return p.SolarThermalArea }},
	{"capacity_electr_storage", "daily_demand", "storage_el", func(p database.Parameters) float64 { return p.ElectricalStorage }},
	{"capacity_thermal_storage", "daily_demand", "storage_th", func(p database.Parameters) float64 { return p.ThermalStorage }},
}

// ParameterFileName names the parameter file of a team
func ParameterFileName(teamID int) string {
	return fmt.Sprintf("parameters_Team_%02d.csv", teamID)
}

// ParameterRecords renders p as parameter file rows, header included
func ParameterRecords(p database.Parameters) [][]string {
	records := [][]string{ParameterHeader}
	for i, spec := range parameterSpecs {
		records = append(records, []string{
			strconv.Itoa(i + 1),
			spec.varName,
			strconv.FormatFloat(spec.value(p), 'f', -1, 64),
			spec.unit,
			"", "", "", "",
			spec.component,
		})
	}
	return records
}

// WriteParameterFile writes the parameter file of a team into dir and
// returns its path.
func WriteParameterFile(dir string, teamID int, p database.Parameters) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	path := filepath.Join(dir, ParameterFileName(teamID))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(ParameterRecords(p)); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, f.Close()
}
