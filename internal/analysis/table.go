package analysis

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

// TableFileName is the comparison table inside the tables directory
const TableFileName = "results.csv"

// Columns is the fixed header of the comparison table
var Columns = []string{
	"team name",
	"costs",
	"emissions",
	"selfsufficiency",
	"chps",
	"boilers",
	"windturbines",
	"heatpumps",
	"EES",
	"TES",
	"PV",
	"solarthermal",
	"selfsufficiency electric",
	"selfsufficiency heat",
	"emissions production",
	"emissions purchase",
	"cost invest",
	"cost operation",
	"total el demand",
	"total el production",
	"total el purchase",
	"total el excess",
	"total heat demand",
	"total heat production",
	"total heat purchase",
	"total heat excess",
}

// numbers returns pointers to the numeric fields in column order, after
// "team name".
func (r *Row) numbers() []*float64 {
	return []*float64{
		&r.Costs,
		&r.Emissions,
		&r.SelfSufficiency,
		&r.CHPs,
		&r.Boilers,
		&r.Windturbines,
		&r.HeatPumps,
		&r.EES,
		&r.TES,
		&r.PV,
		&r.SolarThermal,
		&r.SelfSufficiencyElectric,
		&r.SelfSufficiencyHeat,
		&r.EmissionsProduction,
		&r.EmissionsPurchase,
		&r.CostInvest,
		&r.CostOperation,
		&r.TotalElectricityDemand,
		&r.TotalElectricityProduced,
		&r.TotalElectricityPurchase,
		&r.TotalElectricityExcess,
		&r.TotalHeatDemand,
		&r.TotalHeatProduction,
		&r.TotalHeatPurchase,
		&r.TotalHeatExcess,
	}
}

// Record renders the row as CSV fields
func (r Row) Record() []string {
	nums := r.numbers()
	rec := make([]string, 0, len(nums)+1)
	rec = append(rec, r.TeamName)
	for _, v := range nums {
		rec = append(rec, strconv.FormatFloat(*v, 'g', -1, 64))
	}
	return rec
}

// Map renders the row keyed by column name
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(Columns))
	m[Columns[0]] = r.TeamName
	for i, v := range r.numbers() {
		m[Columns[i+1]] = *v
	}
	return m
}

// WriteTable replaces the table at path with rows. Readers never see a
// partially written file.
func WriteTable(path string, rows []Row) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create tables directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".results-*.csv")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(Columns); err != nil {
		tmp.Close()
		return err
	}
	for _, r := range rows {
		if err := w.Write(r.Record()); err != nil {
			tmp.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write table: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ReadTable reads the table at path. A missing file yields no rows.
// Columns are matched by header name and unknown columns are ignored.
func ReadTable(path string) ([]Row, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse table: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	index := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		index[name] = i
	}

	rows := make([]Row, 0, len(records)-1)
	for line, rec := range records[1:] {
		var row Row
		if i, ok := index[Columns[0]]; ok && i < len(rec) {
			row.TeamName = rec[i]
		}
		for n, field := range row.numbers() {
			i, ok := index[Columns[n+1]]
			if !ok || i >= len(rec) || rec[i] == "" {
				continue
			}
			v, err := strconv.ParseFloat(rec[i], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d, column %q: %w", line+2, Columns[n+1], err)
			}
			*field = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}
