package plan

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Plan describes a purchasable subscription plan. Plans are administered out
// of band; the billing engines only read them. Pricing facts are snapshotted
// onto dependent records at creation time, so editing a Plan never rewrites
// history.
type Plan struct {
	ID           string          `json:"id" gorm:"primaryKey"`
	Name         string          `json:"name" gorm:"uniqueIndex"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price" gorm:"type:decimal(12,2)"`
	Currency     string          `json:"currency"` // ISO 4217 code (e.g. USD)
	BillingCycle Cycle           `json:"billingCycle"`
	TrialDays    int             `json:"trialDays"`
	Active       bool            `json:"active"`
	Featured     bool            `json:"featured"`
	Features     FeatureList     `json:"features" gorm:"type:text"`
	SortOrder    int             `json:"sortOrder"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// RequiresPayment reports whether subscribing to this plan is gated on a
// verified payment order: no trial period and a non-zero price.
func (p *Plan) RequiresPayment() bool {
	return p.TrialDays == 0 && p.Price.GreaterThan(decimal.Zero)
}

// FeatureList is stored as a JSON array in a text column
type FeatureList []string

// Value implements driver.Valuer
func (f FeatureList) Value() (driver.Value, error) {
	if f == nil {
		return "[]", nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (f *FeatureList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*f = nil
		return nil
	case []byte:
		return json.Unmarshal(v, f)
	case string:
		return json.Unmarshal([]byte(v), f)
	default:
		return fmt.Errorf("unsupported type %T for FeatureList", src)
	}
}
