package reconcile

import "github.com/shopspring/decimal"

// Policy holds the thresholds and penalty weights used to grade a pair of
// documents. Values are plain numbers so they can be overridden from
// config/models.yaml.
type Policy struct {
	// Variance percentage above which a pair is HIGH risk.
	HighVariancePct float64 `yaml:"high_variance_pct" json:"high_variance_pct" validate:"gte=0"`
	// Largest unit price difference still treated as equal.
	PriceTolerance float64 `yaml:"price_tolerance" json:"price_tolerance" validate:"gte=0"`

	VendorPenalty   int `yaml:"vendor_penalty" json:"vendor_penalty" validate:"gte=0,lte=100"`
	LineItemPenalty int `yaml:"line_item_penalty" json:"line_item_penalty" validate:"gte=0,lte=100"`
	// Charged per whole percentage point of variance above VarianceFreePct.
	VariancePointPenalty int     `yaml:"variance_point_penalty" json:"variance_point_penalty" validate:"gte=0,lte=100"`
	VarianceFreePct      float64 `yaml:"variance_free_pct" json:"variance_free_pct" validate:"gte=0"`
	// Charged once when the PO total is zero but the invoice total is not.
	ZeroBaselinePenalty int `yaml:"zero_baseline_penalty" json:"zero_baseline_penalty" validate:"gte=0,lte=100"`
	// Charged per unreadable numeric field on either document.
	DataPenalty int `yaml:"data_penalty" json:"data_penalty" validate:"gte=0,lte=100"`
}

// DefaultPolicy returns the production defaults: 5% HIGH cutoff, one cent
// price tolerance, -10 vendor, -5 per line item, -3 per point above 1%.
func DefaultPolicy() Policy {
	return Policy{
		HighVariancePct:      5,
		PriceTolerance:       0.01,
		VendorPenalty:        10,
		LineItemPenalty:      5,
		VariancePointPenalty: 3,
		VarianceFreePct:      1,
		ZeroBaselinePenalty:  10,
		DataPenalty:          5,
	}
}

func (p Policy) highVariance() decimal.Decimal {
	return decimal.NewFromFloat(p.HighVariancePct)
}

func (p Policy) priceTolerance() decimal.Decimal {
	return decimal.NewFromFloat(p.PriceTolerance)
}

func (p Policy) varianceFree() decimal.Decimal {
	return decimal.NewFromFloat(p.VarianceFreePct)
}
