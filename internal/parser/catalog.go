package parser

import "strings"

// brandCatalog is the closed brand catalogue the extraction is constrained
// to. Multi-word brands come first so the substring scan prefers the longest
// match.
var brandCatalog = []string{
	"Alfa Romeo",
	"Aston Martin",
	"Land Rover",
	"Mercedes-Benz",
	"Rolls-Royce",
	"Audi",
	"Bentley",
	"BMW",
	"BYD",
	"Citroen",
	"Cupra",
	"Dacia",
	"DS",
	"Ferrari",
	"Fiat",
	"Ford",
	"Honda",
	"Hyundai",
	"Jaguar",
	"Jeep",
	"Kia",
	"Lamborghini",
	"Lexus",
	"Lynk & Co",
	"Maserati",
	"Mazda",
	"MG",
	"Mini",
	"Mitsubishi",
	"Nissan",
	"Opel",
	"Peugeot",
	"Polestar",
	"Porsche",
	"Renault",
	"Seat",
	"Skoda",
	"Smart",
	"Subaru",
	"Suzuki",
	"Tesla",
	"Toyota",
	"Volkswagen",
	"Volvo",
}

// Brands returns the catalogue for use in extraction prompts.
func Brands() []string {
	out := make([]string, len(brandCatalog))
	copy(out, brandCatalog)
	return out
}

// matchBrand scans a description for a known brand, case-insensitively, and
// returns the canonical catalogue spelling.
func matchBrand(description string) string {
	lower := strings.ToLower(description)
	for _, brand := range brandCatalog {
		if strings.Contains(lower, strings.ToLower(brand)) {
			return brand
		}
	}
	// Common aliases that suppliers actually write.
	switch {
	case strings.Contains(lower, "vw "), strings.HasPrefix(lower, "vw"):
		return "Volkswagen"
	case strings.Contains(lower, "mercedes"):
		return "Mercedes-Benz"
	}
	return ""
}
