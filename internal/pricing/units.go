// Package pricing contains the pure pricing components: unit/packaging
// resolution, line price calculation, and batch totals verification. Nothing
// in this package performs I/O.
package pricing

import (
	_ "embed"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// UnitPiece is the canonical unit for countable items.
const UnitPiece = "unit"

// UnitDozen is the canonical unit for dozens; it converts to UnitPiece.
const UnitDozen = "dozen"

//go:embed units.yaml
var unitsYAML []byte

type unitTable struct {
	Aliases     map[string][]string `yaml:"aliases"`
	Conversions []struct {
		From   string  `yaml:"from"`
		To     string  `yaml:"to"`
		Factor float64 `yaml:"factor"`
	} `yaml:"conversions"`
}

var (
	aliasIndex map[string]string
	convIndex  map[string]map[string]float64

	packRegex  = regexp.MustCompile(`(?i)\b(?:pack|paquete|caja)\s*x?\s*(\d+(?:[.,]\d+)?)`)
	countRegex = regexp.MustCompile(`^\s*(\d+(?:[.,]\d+)?)\s+(\S+)`)
)

func init() {
	var table unitTable
	if err := yaml.Unmarshal(unitsYAML, &table); err != nil {
		panic(fmt.Sprintf("pricing: invalid embedded unit table: %v", err))
	}

	aliasIndex = make(map[string]string)
	for canonical, aliases := range table.Aliases {
		for _, alias := range aliases {
			aliasIndex[alias] = canonical
		}
	}

	convIndex = make(map[string]map[string]float64)
	for _, c := range table.Conversions {
		if convIndex[c.From] == nil {
			convIndex[c.From] = make(map[string]float64)
		}
		convIndex[c.From][c.To] = c.Factor
	}
}

// CanonicalUnit normalizes a unit token through the alias table. Unknown
// tokens pass through lowercased and trimmed, so they only ever match
// themselves. An empty token means a countable item and maps to UnitPiece.
func CanonicalUnit(token string) string {
	normalized := strings.ToLower(strings.TrimSpace(token))
	if normalized == "" {
		return UnitPiece
	}
	if canonical, ok := aliasIndex[normalized]; ok {
		return canonical
	}
	return normalized
}

// conversionFactor returns the factor converting from one canonical unit to
// another, or false when the pair is outside the closed table.
func conversionFactor(from, to string) (float64, bool) {
	if from == to {
		return 1.0, true
	}
	factor, ok := convIndex[from][to]
	return factor, ok
}

// Packaging is the base quantity and unit a catalog pricing label resolves to.
type Packaging struct {
	BaseQty  float64
	BaseUnit string
}

// ParsePackaging interprets a catalog unit label, in priority order:
// a "pack/paquete/caja x N" pattern, a leading count phrase ("10 unidades"),
// the literal dozen token, and finally the label itself as a plain unit.
func ParsePackaging(label string) Packaging {
	if m := packRegex.FindStringSubmatch(label); m != nil {
		if qty, err := parseDecimal(m[1]); err == nil && qty > 0 {
			return Packaging{BaseQty: qty, BaseUnit: UnitPiece}
		}
	}

	if m := countRegex.FindStringSubmatch(label); m != nil {
		if CanonicalUnit(m[2]) == UnitPiece {
			if qty, err := parseDecimal(m[1]); err == nil && qty > 0 {
				return Packaging{BaseQty: qty, BaseUnit: UnitPiece}
			}
		}
	}

	if CanonicalUnit(label) == UnitDozen {
		return Packaging{BaseQty: 12, BaseUnit: UnitPiece}
	}

	return Packaging{BaseQty: 1, BaseUnit: CanonicalUnit(label)}
}

// parseDecimal accepts both "10.5" and the comma decimal separator "10,5".
func parseDecimal(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}
