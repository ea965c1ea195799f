package dataset

import "strings"

// AgencyNames maps short agency keys from the source data to full legal
// names for display.
var AgencyNames = map[string]string{
	"Zigma":      "Zigma Global Enviro Solutions Private Limited, Erode",
	"Saurashtra": "Saurastra Enviro Pvt Ltd, Gujarat",
	"Tharuni":    "Tharuni Associates, Guntur",
}

// DisplayAgencyName resolves the display name for an agency key. Exact match
// first, then a case-insensitive partial match. Unmapped keys pass through
// with a visible "(Unmapped)" marker rather than erroring.
func DisplayAgencyName(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "Unknown Agency"
	}

	if full, ok := AgencyNames[key]; ok {
		return full
	}

	lower := strings.ToLower(key)
	for short, full := range AgencyNames {
		shortLower := strings.ToLower(short)
		if strings.Contains(lower, shortLower) || strings.Contains(shortLower, lower) {
			return full
		}
	}

	return key + " (Unmapped)"
}
