package timeseries

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/smukkama/energy-workshop/internal/logging"
	"gotest.tools/v3/assert"
)

var threeHours = []string{"2030-01-01 00:00:00", "2030-01-01 01:00:00", "2030-01-01 02:00:00"}

func tagged(label string, kind Kind) Component {
	return Component{Label: label, Kind: kind}
}

func legacy(label string) Component {
	return Component{Label: label}
}

func TestExtract_TaggedComponents(t *testing.T) {
	d := &Dump{
		TimeIndex: threeHours,
		Flows: []Flow{
			{Source: tagged("roof", KindPV), Target: tagged("b1", KindBusElectricity), Sequence: []float64{1, 2, 3}},
			{Source: tagged("b1", KindBusElectricity), Target: tagged("load", KindDemand), Sequence: []float64{5, 5, 5}},
			{Source: tagged("b2", KindBusHeat), Target: tagged("load_th", KindDemand), Sequence: []float64{4, 4, 4}},
			{Source: tagged("unit", KindCHP), Target: tagged("b1", KindBusElectricity), Sequence: []float64{2, 2, 2}},
			{Source: tagged("unit", KindCHP), Target: tagged("b2", KindBusHeat), Sequence: []float64{3, 3, 3}},
			{Source: tagged("gas", KindGasSource), Target: tagged("unit", KindCHP), Sequence: []float64{6, 6, 6}},
			{Source: tagged("b1", KindBusElectricity), Target: tagged("hp", KindHeatPump), Sequence: []float64{1, 1, 1}},
			{Source: tagged("hp", KindHeatPump), Target: tagged("b2", KindBusHeat), Sequence: []float64{3, 3, 3}},
			{Source: tagged("utility", KindGrid), Target: tagged("b1", KindBusElectricity), Sequence: []float64{0, 1, 0}},
			{Source: tagged("b1", KindBusElectricity), Target: tagged("utility", KindGrid), Sequence: []float64{1, 0, 0}},
		},
		Storages: []StorageLevel{
			{Label: "battery", Kind: KindStorageElectric, Content: []float64{10, 11, 12}},
		},
	}

	b, err := Extract(d)
	assert.NilError(t, err)

	assert.DeepEqual(t, b.Hour, []int{0, 1, 2})
	assert.DeepEqual(t, b.Electricity[PVProduction], []float64{1, 2, 3})
	assert.DeepEqual(t, b.Production[PV], []float64{1, 2, 3})
	assert.DeepEqual(t, b.Electricity[Demand], []float64{5, 5, 5})
	assert.DeepEqual(t, b.Heat[Demand], []float64{4, 4, 4})
	assert.DeepEqual(t, b.Electricity[CHPProduction], []float64{2, 2, 2})
	assert.DeepEqual(t, b.Heat[CHPProduction], []float64{3, 3, 3})
	assert.DeepEqual(t, b.Fuel[CHP], []float64{6, 6, 6})
	assert.DeepEqual(t, b.Electricity[HeatPumpConsumption], []float64{1, 1, 1})
	assert.DeepEqual(t, b.Heat[HeatPumpProduction], []float64{3, 3, 3})
	assert.DeepEqual(t, b.Electricity[GridImport], []float64{0, 1, 0})
	assert.DeepEqual(t, b.Electricity[GridExport], []float64{1, 0, 0})
	assert.DeepEqual(t, b.Storage[ElectricStorage], []float64{10, 11, 12})
	assert.Assert(t, !b.Synthetic)
}

func TestExtract_LegacyLabels(t *testing.T) {
	d := &Dump{
		TimeIndex: threeHours,
		Flows: []Flow{
			{Source: legacy("photovoltaik_1"), Target: legacy("bus_el"), Sequence: []float64{1, 1, 1}},
			{Source: legacy("windturbine"), Target: legacy("bus_el"), Sequence: []float64{2, 2, 2}},
			{Source: legacy("kessel"), Target: legacy("bus_th"), Sequence: []float64{3, 3, 3}},
			{Source: legacy("solar_thermal"), Target: legacy("bus_th"), Sequence: []float64{4, 4, 4}},
			{Source: legacy("bus_el"), Target: legacy("demand_el"), Sequence: []float64{7, 7, 7}},
			{Source: legacy("bus_th"), Target: legacy("excess_th"), Sequence: []float64{0.5, 0, 0}},
			{Source: legacy("bus_el"), Target: legacy("storage_el"), Sequence: []float64{9, 9, 9}},
			{Source: legacy("foo"), Target: legacy("bar"), Sequence: []float64{9, 9, 9}},
		},
		Storages: []StorageLevel{
			{Label: "storage_th", Content: []float64{1, 2, 3}},
		},
	}

	b, err := Extract(d)
	assert.NilError(t, err)

	assert.DeepEqual(t, b.Electricity[PVProduction], []float64{1, 1, 1})
	assert.DeepEqual(t, b.Electricity[WindProduction], []float64{2, 2, 2})
	assert.DeepEqual(t, b.Heat[BoilerProduction], []float64{3, 3, 3})
	assert.DeepEqual(t, b.Heat[SolarThermalProduction], []float64{4, 4, 4})
	assert.DeepEqual(t, b.Production[SolarThermal], []float64{4, 4, 4})
	assert.DeepEqual(t, b.Electricity[Demand], []float64{7, 7, 7})
	assert.DeepEqual(t, b.Heat[Excess], []float64{0.5, 0, 0})
	assert.DeepEqual(t, b.Storage[ThermalStorage], []float64{1, 2, 3})

	// Charging flows and unmatched edges are not channels
	assert.Equal(t, len(b.Electricity), 3)
}

func TestExtract_SumsEdgesOnSameChannel(t *testing.T) {
	d := &Dump{
		TimeIndex: threeHours,
		Flows: []Flow{
			{Source: tagged("pv_roof", KindPV), Target: tagged("b", KindBusElectricity), Sequence: []float64{1, 2, 3}},
			{Source: tagged("pv_field", KindPV), Target: tagged("b", KindBusElectricity), Sequence: []float64{10, 20, 30}},
		},
	}

	b, err := Extract(d)
	assert.NilError(t, err)
	assert.DeepEqual(t, b.Electricity[PVProduction], []float64{11, 22, 33})
	assert.DeepEqual(t, b.Production[PV], []float64{11, 22, 33})
}

func TestExtract_NormalizesSeries(t *testing.T) {
	d := &Dump{
		TimeIndex: []string{"2030-01-01T00:00:00Z", "2030-01-01T01:00:00Z", "2030-01-01T02:00:00Z", "2030-01-01T03:00:00Z"},
		Flows: []Flow{
			{Source: tagged("pv", KindPV), Target: tagged("b", KindBusElectricity), Sequence: []float64{math.NaN(), math.Inf(1), 1.23456789}},
			{Source: tagged("w", KindWind), Target: tagged("b", KindBusElectricity), Sequence: []float64{1, 2, 3, 4, 5, 6}},
		},
	}

	b, err := Extract(d)
	assert.NilError(t, err)

	assert.Equal(t, b.Time[1], "2030-01-01 01:00:00")
	assert.DeepEqual(t, b.Electricity[PVProduction], []float64{0, 0, 1.234568, 0})
	assert.DeepEqual(t, b.Electricity[WindProduction], []float64{1, 2, 3, 4})
}

func TestExtract_EmptyTimeIndex(t *testing.T) {
	_, err := Extract(&Dump{})
	assert.Equal(t, err, ErrEmptyTimeIndex)
}

func TestInferKind_Priority(t *testing.T) {
	assert.Equal(t, InferKind("PV_heat_pump"), KindPV)
	assert.Equal(t, InferKind("BHKW_1"), KindCHP)
	assert.Equal(t, InferKind("heatpump"), KindHeatPump)
	assert.Equal(t, InferKind("electricity_grid"), KindGrid)
	assert.Equal(t, InferKind("bus_heat"), KindBusHeat)
	assert.Equal(t, InferKind("bus_gas"), KindBusGas)
	assert.Equal(t, InferKind("natural_gas"), KindGasSource)
	assert.Equal(t, InferKind("unrelated"), Kind(""))
}

func writeTestDump(t *testing.T, dir string, teamID int, d *Dump) {
	t.Helper()
	assert.NilError(t, WriteDumpFile(DumpPath(dir, teamID), d))
}

func TestExtractor_MissingDump(t *testing.T) {
	e := NewExtractor(t.TempDir(), nil, logging.Discard())

	b, err := e.Load(context.Background(), 1)
	assert.NilError(t, err)
	assert.Assert(t, b == nil)
}

func TestExtractor_LoadsDump(t *testing.T) {
	dir := t.TempDir()
	writeTestDump(t, dir, 2, &Dump{
		TimeIndex: threeHours,
		Flows: []Flow{
			{Source: tagged("w", KindWind), Target: tagged("b", KindBusElectricity), Sequence: []float64{1, 2, 3}},
		},
	})

	e := NewExtractor(dir, nil, logging.Discard())
	b, err := e.Load(context.Background(), 2)
	assert.NilError(t, err)
	assert.Equal(t, b.Len(), 3)
	assert.DeepEqual(t, b.Electricity[WindProduction], []float64{1, 2, 3})
}

func TestExtractor_CorruptDumpFallsBackToSynthetic(t *testing.T) {
	dir := t.TempDir()
	assert.NilError(t, os.WriteFile(filepath.Join(dir, "model_team_3.json.gz"), []byte("not gzip"), 0o644))

	e := NewExtractor(dir, nil, logging.Discard())
	b, err := e.Load(context.Background(), 3)
	assert.NilError(t, err)
	assert.Assert(t, b.Synthetic)
	assert.Equal(t, b.Len(), SyntheticHours)
	assert.Equal(t, b.Time[0], "2030-01-01 00:00:00")
}

type memoryCache struct {
	entries map[string]*Bundle
	gets    int
}

func (m *memoryCache) Get(_ context.Context, key string) (*Bundle, error) {
	m.gets++
	return m.entries[key], nil
}

func (m *memoryCache) Set(_ context.Context, key string, b *Bundle) error {
	m.entries[key] = b
	return nil
}

func TestExtractor_UsesCache(t *testing.T) {
	dir := t.TempDir()
	writeTestDump(t, dir, 1, &Dump{TimeIndex: threeHours})

	cache := &memoryCache{entries: make(map[string]*Bundle)}
	e := NewExtractor(dir, cache, logging.Discard())

	first, err := e.Load(context.Background(), 1)
	assert.NilError(t, err)
	assert.Equal(t, len(cache.entries), 1)

	second, err := e.Load(context.Background(), 1)
	assert.NilError(t, err)
	assert.Assert(t, first == second, "second load should come from the cache")
	assert.Equal(t, cache.gets, 2)
}

func TestSynthetic_BalancedAndDeterministic(t *testing.T) {
	b := Synthetic(48, 7)
	again := Synthetic(48, 7)
	assert.DeepEqual(t, b.Electricity, again.Electricity)

	for i := 0; i < b.Len(); i++ {
		supply := b.Electricity[PVProduction][i] + b.Electricity[WindProduction][i] + b.Electricity[GridImport][i]
		use := b.Electricity[Demand][i] + b.Electricity[HeatPumpConsumption][i] + b.Electricity[GridExport][i]
		assert.Assert(t, math.Abs(supply-use) < 1e-5, "hour %d: %f != %f", i, supply, use)

		heat := b.Heat[BoilerProduction][i] + b.Heat[HeatPumpProduction][i]
		assert.Assert(t, math.Abs(heat-b.Heat[Demand][i]) < 1e-5, "hour %d", i)
	}
}

func TestBundleCodec(t *testing.T) {
	b := Synthetic(24, 1)

	data, err := encodeBundle(b)
	assert.NilError(t, err)

	decoded, err := decodeBundle(data)
	assert.NilError(t, err)
	assert.DeepEqual(t, decoded, b)
}
