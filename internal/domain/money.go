package domain

import "math"

// Cents converts a decimal dollar amount from the API boundary into integer
// cents, rounding half-up at the cent so that two-decimal precision is
// preserved exactly.
func Cents(dollars float64) int64 {
	return int64(math.Round(dollars * 100))
}

// Dollars converts integer cents back into the decimal dollar representation
// used on the wire.
func Dollars(cents int64) float64 {
	return float64(cents) / 100
}

// PercentFee computes a fee in cents as a percentage of an amount in cents,
// rounding half-up at the cent. Used for the 5% express advance fee.
func PercentFee(amount int64, percent float64) int64 {
	return int64(math.Round(float64(amount) * percent / 100))
}

// Progress returns currentAmount/targetAmount as a percentage rounded to one
// decimal place. A zero target reports 0 rather than dividing by zero.
func Progress(current, target int64) float64 {
	if target <= 0 {
		return 0
	}
	return math.Round(float64(current)/float64(target)*1000) / 10
}

// RoundUpAmount returns the fractional skim needed to bring a purchase amount
// up to the next whole dollar. Whole-dollar purchases skim nothing.
func RoundUpAmount(amount int64) int64 {
	rem := amount % 100
	if rem == 0 {
		return 0
	}
	return 100 - rem
}
