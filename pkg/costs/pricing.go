package costs

// Pricing is the USD price per one million tokens for a model.
type Pricing struct {
	Input      float64
	Output     float64
	CacheRead  float64
	CacheWrite float64
}

// pricing holds per-model rates. Update when the provider changes pricing.
var pricing = map[string]Pricing{
	"claude-sonnet-4-5-20250929": {
		Input:      3.00,
		Output:     15.00,
		CacheRead:  0.30,
		CacheWrite: 3.75,
	},
	"claude-opus-4-1-20250805": {
		Input:      15.00,
		Output:     75.00,
		CacheRead:  1.50,
		CacheWrite: 18.75,
	},
	"claude-haiku-4-5-20251001": {
		Input:      0.80,
		Output:     4.00,
		CacheRead:  0.08,
		CacheWrite: 1.00,
	},
}

// defaultPricing is applied to unknown models. It matches the mid-size tier
// so unknown models are billed conservatively rather than for free.
var defaultPricing = Pricing{Input: 3.00, Output: 15.00, CacheRead: 0.30, CacheWrite: 3.75}

// PriceFor returns the price table entry for a model, falling back to the
// default tier for unknown models.
func PriceFor(model string) Pricing {
	if p, ok := pricing[model]; ok {
		return p
	}
	return defaultPricing
}
