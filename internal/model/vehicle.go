// Package model contains the domain types shared across the valuation pipeline.
package model

import (
	"fmt"
	"strings"
)

// VehicleAttributes is the canonical description of a vehicle under valuation.
// Once a run starts the attributes are treated as immutable; options may be
// adjusted by the operator before the run begins.
type VehicleAttributes struct {
	Brand        string   `json:"brand"`
	Model        string   `json:"model"`
	Trim         string   `json:"trim,omitempty"`
	BuildYear    int      `json:"buildYear"`
	Mileage      int      `json:"mileage"`
	FuelType     string   `json:"fuelType,omitempty"`
	Transmission string   `json:"transmission,omitempty"`
	BodyType     string   `json:"bodyType,omitempty"`
	Power        int      `json:"power,omitempty"` // hp
	Color        string   `json:"color,omitempty"`
	Options      []string `json:"options,omitempty"`
}

// Label returns a short human-readable identifier, e.g. "Volkswagen Golf (2020)".
func (v VehicleAttributes) Label() string {
	name := strings.TrimSpace(v.Brand + " " + v.Model)
	if name == "" {
		name = "unknown vehicle"
	}
	if v.BuildYear > 0 {
		return fmt.Sprintf("%s (%d)", name, v.BuildYear)
	}
	return name
}

// ModelPrefix returns the first two words of the model name, lowercased.
// Trim suffixes like "Golf GTI Performance" collapse to "golf gti" so that
// historical sales of the same base model still match.
func (v VehicleAttributes) ModelPrefix() string {
	words := strings.Fields(strings.ToLower(v.Model))
	if len(words) == 0 {
		return ""
	}
	if len(words) > 2 {
		words = words[:2]
	}
	return strings.Join(words, " ")
}

// ParsedVehicle is the outcome of parsing one free-text supplier description.
// Unmatched fields stay at their zero value; Confidence reports how much of
// the description could be recovered.
type ParsedVehicle struct {
	Attributes VehicleAttributes `json:"attributes"`
	Confidence float64           `json:"confidence"`
	Source     string            `json:"source"` // "llm" or "fallback"
}
