package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/astrodock/fuel-exports-tracker/constants"
)

func TestParseServiceSet(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want ServiceSet
	}{
		{"empty", "", nil},
		{"blank", "   ", nil},
		{"single", "refueling", ServiceSet{"refueling"}},
		{"sorted", "repair,refueling", ServiceSet{"refueling", "repair"}},
		{"dedup", "refueling,refuel,Refueling", ServiceSet{"refueling"}},
		{"synonyms", "medbay, cargo", ServiceSet{"cargo_transfer", "medical_bay"}},
		{"unknown kept", "refueling,plasma venting", ServiceSet{"plasma_venting", "refueling"}},
		{"empty tokens dropped", ",refueling,,", ServiceSet{"refueling"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseServiceSet(tt.raw))
		})
	}
}

func TestNewServiceSet(t *testing.T) {
	got := NewServiceSet([]string{"repairs", "Hull Cleaning", "repairs"})
	assert.Equal(t, ServiceSet{"hull_cleaning", "repair"}, got)
}

func TestServiceSet_StringRoundTrip(t *testing.T) {
	s := ParseServiceSet("waste, refueling, inspection")
	assert.Equal(t, "inspection,refueling,waste_disposal", s.String())
	assert.Equal(t, s, ParseServiceSet(s.String()))
}

func TestServiceSet_Contains(t *testing.T) {
	s := ParseServiceSet("refueling,repair")
	assert.True(t, s.Contains(constants.Refueling))
	assert.True(t, s.Contains(constants.Repair))
	assert.False(t, s.Contains(constants.MedicalBay))
	assert.False(t, ServiceSet(nil).Contains(constants.Refueling))
}
