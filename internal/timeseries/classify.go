package timeseries

import "strings"

type channelRef struct {
	group   string
	channel string
}

// keywordRule maps label keywords to a kind. Rules are tried in order and
// the first match wins.
type keywordRule struct {
	kind     Kind
	keywords []string
}

var keywordRules = []keywordRule{
	{KindPV, []string{"pv", "photovoltai"}},
	{KindWind, []string{"wind"}},
	{KindCHP, []string{"chp", "bhkw"}},
	{KindBoiler, []string{"boiler", "kessel"}},
	{KindHeatPump, []string{"heatpump", "heat_pump", "heat pump", "waermepumpe"}},
	{KindSolarThermal, []string{"solar_th", "solarthermal", "solar thermal", "solarthermie"}},
	{KindGrid, []string{"grid", "netz"}},
	{KindDemand, []string{"demand", "bedarf"}},
	{KindStorageThermal, []string{"storage_th", "thermal_storage", "heat_storage", "waermespeicher"}},
	{KindStorageElectric, []string{"storage", "battery", "speicher"}},
	{KindExcess, []string{"excess", "curtail"}},
	{KindBusElectricity, []string{"bus_el", "electricity", "strom"}},
	{KindBusHeat, []string{"bus_th", "bus_heat", "heat", "waerme"}},
	{KindBusGas, []string{"bus_gas"}},
	{KindGasSource, []string{"gas"}},
}

// InferKind guesses the kind of an untagged component from its label. It
// returns "" when nothing matches.
func InferKind(label string) Kind {
	l := strings.ToLower(label)
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(l, kw) {
				return rule.kind
			}
		}
	}
	return ""
}

// ResolveKind returns the explicit kind of c, or the inferred one
func (c Component) ResolveKind() Kind {
	if c.Kind != "" {
		return c.Kind
	}
	return InferKind(c.Label)
}

func storageKind(s StorageLevel) Kind {
	if s.Kind == KindStorageElectric || s.Kind == KindStorageThermal {
		return s.Kind
	}
	switch k := InferKind(s.Label); k {
	case KindStorageElectric, KindStorageThermal:
		return k
	}
	l := strings.ToLower(s.Label)
	if strings.Contains(l, "thermal") || strings.Contains(l, "heat") {
		return KindStorageThermal
	}
	if strings.Contains(l, "electric") {
		return KindStorageElectric
	}
	return ""
}

func busGroup(k Kind) string {
	switch k {
	case KindBusElectricity:
		return GroupElectricity
	case KindBusHeat:
		return GroupHeat
	}
	return ""
}

// classifyFlow maps an edge to the channels it feeds. Edges that do not
// describe a tracked quantity map to nothing.
func classifyFlow(f Flow) []channelRef {
	src := f.Source.ResolveKind()
	dst := f.Target.ResolveKind()

	switch src {
	case KindPV:
		return []channelRef{{GroupElectricity, PVProduction}, {GroupProduction, PV}}
	case KindWind:
		return []channelRef{{GroupElectricity, WindProduction}, {GroupProduction, Wind}}
	case KindSolarThermal:
		return []channelRef{{GroupHeat, SolarThermalProduction}, {GroupProduction, SolarThermal}}
	case KindCHP:
		switch dst {
		case KindBusElectricity:
			return []channelRef{{GroupElectricity, CHPProduction}}
		case KindBusHeat:
			return []channelRef{{GroupHeat, CHPProduction}}
		}
		return nil
	case KindBoiler:
		if dst == KindBusHeat {
			return []channelRef{{GroupHeat, BoilerProduction}}
		}
		return nil
	case KindHeatPump:
		if dst == KindBusHeat {
			return []channelRef{{GroupHeat, HeatPumpProduction}}
		}
		return nil
	case KindGrid:
		if g := busGroup(dst); g != "" {
			return []channelRef{{g, GridImport}}
		}
		return nil
	}

	switch dst {
	case KindCHP:
		if src == KindBusGas || src == KindGasSource {
			return []channelRef{{GroupFuel, CHP}}
		}
	case KindBoiler:
		if src == KindBusGas || src == KindGasSource {
			return []channelRef{{GroupFuel, Boiler}}
		}
	case KindHeatPump:
		if src == KindBusElectricity {
			return []channelRef{{GroupElectricity, HeatPumpConsumption}}
		}
	case KindDemand:
		if g := busGroup(src); g != "" {
			return []channelRef{{g, Demand}}
		}
	case KindGrid:
		if src == KindBusElectricity {
			return []channelRef{{GroupElectricity, GridExport}}
		}
	case KindExcess:
		if g := busGroup(src); g != "" {
			return []channelRef{{g, Excess}}
		}
	}
	return nil
}
