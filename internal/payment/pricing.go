package payment

// creditsPerAmount maps a purchase amount in whole currency units to the
// credits it buys. Amounts outside the table buy zero credits; callers decide
// whether to warn.
var creditsPerAmount = map[int64]int64{
	10: 10,
	25: 30,
	50: 70,
}

// CreditsForAmount returns the credit quantity for a purchase amount, or zero
// for unmapped amounts.
func CreditsForAmount(amount int64) int64 {
	return creditsPerAmount[amount]
}
