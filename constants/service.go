package constants

import (
	"strings"
)

// Service is a canonical dockside service identifier.
type Service string

const (
	Refueling      Service = "refueling"
	Repair         Service = "repair"
	Resupply       Service = "resupply"
	HullCleaning   Service = "hull_cleaning"
	WasteDisposal  Service = "waste_disposal"
	CargoTransfer  Service = "cargo_transfer"
	CrewRest       Service = "crew_rest"
	Inspection     Service = "inspection"
	MedicalBay     Service = "medical_bay"
	Recalibration  Service = "recalibration"
)

var allServices = []Service{
	Refueling,
	Repair,
	Resupply,
	HullCleaning,
	WasteDisposal,
	CargoTransfer,
	CrewRest,
	Inspection,
	MedicalBay,
	Recalibration,
}

func AllServices() []string {
	result := make([]string, len(allServices))
	for i, svc := range allServices {
		result[i] = string(svc)
	}
	return result
}

// CanonicalizeService maps a raw token to its canonical service identifier.
// Unknown tokens are returned normalized with ok=false so callers can decide
// whether to keep or report them.
func CanonicalizeService(input string) (Service, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")
	if normalized == "" {
		return "", false
	}

	// synonyms map
	synonyms := map[string]Service{
		"refuel":     Refueling,
		"fueling":    Refueling,
		"repairs":    Repair,
		"restock":    Resupply,
		"cleaning":   HullCleaning,
		"waste":      WasteDisposal,
		"cargo":      CargoTransfer,
		"medbay":     MedicalBay,
		"calibration": Recalibration,
	}

	if svc, ok := synonyms[normalized]; ok {
		return svc, true
	}

	for _, svc := range allServices {
		if normalized == string(svc) {
			return svc, true
		}
	}

	return Service(normalized), false
}
