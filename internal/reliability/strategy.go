package reliability

// Strategy converts observed agreement over the compared set into the
// reported kappa value.
type Strategy interface {
	Name() string
	Kappa(observedAgreement float64, compared []comparison) float64
}

// SimpleAgreement reports observed agreement directly as kappa. This is NOT
// chance-corrected Cohen's Kappa; it is a documented simplification and the
// default for compatibility with existing reports.
type SimpleAgreement struct{}

func (SimpleAgreement) Name() string { return "simple_agreement" }

func (SimpleAgreement) Kappa(observed float64, _ []comparison) float64 {
	return observed
}

// ChanceCorrectedKappa computes true Cohen's Kappa: expected agreement is
// derived from each side's marginal category-usage frequencies over the
// compared set, then kappa = (p_o - p_e) / (1 - p_e).
type ChanceCorrectedKappa struct{}

func (ChanceCorrectedKappa) Name() string { return "cohens_kappa" }

func (ChanceCorrectedKappa) Kappa(observed float64, compared []comparison) float64 {
	n := len(compared)
	if n == 0 {
		return 0
	}

	marginalA := make(map[string]int)
	marginalB := make(map[string]int)
	for _, c := range compared {
		marginalA[c.categoryA]++
		marginalB[c.categoryB]++
	}

	expected := 0.0
	for category, countA := range marginalA {
		expected += (float64(countA) / float64(n)) * (float64(marginalB[category]) / float64(n))
	}

	if expected >= 1 {
		// Both coders used a single category throughout; agreement is
		// entirely attributable to chance.
		if observed >= 1 {
			return 1
		}
		return 0
	}

	return (observed - expected) / (1 - expected)
}
