package domain

import "math"

// ToMinorUnits converts a major-unit amount to the integer minor units the
// payment processor expects.
func ToMinorUnits(major float64) int64 {
	return int64(math.Round(major * 100))
}

func FromMinorUnits(minor int64) float64 {
	return float64(minor) / 100
}

// RoundMajor rounds to whole cents.
func RoundMajor(major float64) float64 {
	return math.Round(major*100) / 100
}
