package timeseries

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// Kind tags the role of a component in the energy system
type Kind string

const (
	KindPV              Kind = "generator.pv"
	KindWind            Kind = "generator.wind"
	KindCHP             Kind = "converter.chp"
	KindBoiler          Kind = "converter.boiler"
	KindHeatPump        Kind = "converter.heat_pump"
	KindSolarThermal    Kind = "converter.solar_thermal"
	KindBusElectricity  Kind = "bus.electricity"
	KindBusHeat         Kind = "bus.heat"
	KindBusGas          Kind = "bus.gas"
	KindGasSource       Kind = "source.gas"
	KindDemand          Kind = "demand"
	KindGrid            Kind = "grid"
	KindExcess          Kind = "excess"
	KindStorageElectric Kind = "storage.electric"
	KindStorageThermal  Kind = "storage.thermal"
)

// Component is one node of the optimized energy system
type Component struct {
	Label string `json:"label"`
	Kind  Kind   `json:"kind,omitempty"`
}

// Flow is the hourly flow along one edge
type Flow struct {
	Source   Component `json:"source"`
	Target   Component `json:"target"`
	Sequence []float64 `json:"sequence"`
}

// StorageLevel is the hourly content of one storage
type StorageLevel struct {
	Label   string    `json:"label"`
	Kind    Kind      `json:"kind,omitempty"`
	Content []float64 `json:"content"`
}

// Dump is the optimizer result file of one team
type Dump struct {
	TimeIndex []string       `json:"timeindex"`
	Flows     []Flow         `json:"flows"`
	Storages  []StorageLevel `json:"storages"`
}

// DumpPath returns where the dump of a team lives
func DumpPath(dir string, teamID int) string {
	return filepath.Join(dir, fmt.Sprintf("model_team_%d.json.gz", teamID))
}

// ReadDump decodes a gzip-compressed JSON dump
func ReadDump(r io.Reader) (*Dump, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open dump stream: %w", err)
	}
	defer zr.Close()

	var d Dump
	if err := json.NewDecoder(zr).Decode(&d); err != nil {
		return nil, fmt.Errorf("failed to decode dump: %w", err)
	}
	return &d, nil
}

// WriteDump encodes d as gzip-compressed JSON
func WriteDump(w io.Writer, d *Dump) error {
	zw := gzip.NewWriter(w)
	if err := json.NewEncoder(zw).Encode(d); err != nil {
		zw.Close()
		return fmt.Errorf("failed to encode dump: %w", err)
	}
	return zw.Close()
}

// WriteDumpFile writes d to path, replacing any previous file
func WriteDumpFile(path string, d *Dump) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".dump-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := WriteDump(tmp, d); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
