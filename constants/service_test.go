package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalizeService_Canonical(t *testing.T) {
	for _, svc := range AllServices() {
		got, ok := CanonicalizeService(svc)
		assert.True(t, ok, "canonical token %q should resolve", svc)
		assert.Equal(t, svc, string(got))
	}
}

func TestCanonicalizeService_Synonyms(t *testing.T) {
	cases := map[string]Service{
		"refuel":      Refueling,
		"Fueling":     Refueling,
		"repairs":     Repair,
		"restock":     Resupply,
		"cleaning":    HullCleaning,
		"waste":       WasteDisposal,
		"cargo":       CargoTransfer,
		"medbay":      MedicalBay,
		"calibration": Recalibration,
	}
	for in, want := range cases {
		got, ok := CanonicalizeService(in)
		assert.True(t, ok, "synonym %q should resolve", in)
		assert.Equal(t, want, got)
	}
}

func TestCanonicalizeService_Normalization(t *testing.T) {
	got, ok := CanonicalizeService("  Hull Cleaning ")
	assert.True(t, ok)
	assert.Equal(t, HullCleaning, got)

	got, ok = CanonicalizeService("crew-rest")
	assert.True(t, ok)
	assert.Equal(t, CrewRest, got)
}

func TestCanonicalizeService_Unknown(t *testing.T) {
	got, ok := CanonicalizeService("Plasma Venting")
	assert.False(t, ok)
	assert.Equal(t, Service("plasma_venting"), got)

	got, ok = CanonicalizeService("   ")
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestNormalizeExt(t *testing.T) {
	assert.Equal(t, "csv", NormalizeExt(".CSV"))
	assert.Equal(t, "jsonl", NormalizeExt("jsonl"))
	assert.Equal(t, "", NormalizeExt(""))
}
