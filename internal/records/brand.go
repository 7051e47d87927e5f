package records

import (
	"strings"
	"unicode/utf8"
)

// brandCodeMax bounds the unique brand code column.
const brandCodeMax = 200

// Brand is one entry of the brand directory derived from contract items.
type Brand struct {
	ID           int64  `json:"id,omitempty"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	ProductCount int    `json:"product_count"`
}

var trademarkMarks = strings.NewReplacer("™", "", "®", "")

// NormalizeBrand is the directory spelling of a brand: trimmed, upper case,
// trademark signs removed.
func NormalizeBrand(name string) string {
	return strings.TrimSpace(trademarkMarks.Replace(strings.ToUpper(strings.TrimSpace(name))))
}

// BrandCode derives the unique code of a normalized brand name.
func BrandCode(name string) string {
	if len(name) <= brandCodeMax {
		return name
	}
	cut := brandCodeMax
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut]
}

// CountBrands tallies the items of contracts per normalized brand. Items
// without a brand are skipped.
func CountBrands(contracts []Contract) map[string]int {
	counts := make(map[string]int)
	for _, c := range contracts {
		for _, item := range c.Items {
			if name := NormalizeBrand(item.Brand); name != "" {
				counts[name]++
			}
		}
	}
	return counts
}
