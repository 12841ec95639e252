package core

// Balance is the net position across all stored transactions. It is derived
// at query time and never persisted.
type Balance struct {
	Income  Money
	Outcome Money
	Total   Money
}

// NewBalance builds a Balance from pre-aggregated income and outcome cents.
func NewBalance(incomeCents, outcomeCents int64) Balance {
	return Balance{
		Income:  Money{Cents: incomeCents},
		Outcome: Money{Cents: outcomeCents},
		Total:   Money{Cents: incomeCents - outcomeCents},
	}
}

// ComputeBalance aggregates the given transactions into a Balance. Each
// transaction contributes its value with the sign determined by its type.
func ComputeBalance(transactions []Transaction) Balance {
	var income, outcome int64
	for _, t := range transactions {
		switch t.Type {
		case Income:
			income += t.Value.Cents
		case Outcome:
			outcome += t.Value.Cents
		}
	}
	return NewBalance(income, outcome)
}
