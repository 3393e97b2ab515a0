package plan

import (
	"context"
	"encoding/json"
	"io/ioutil"

	extErrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// seedPlan mirrors Plan but takes the price as a string so the seed file
// never goes through binary floating point.
type seedPlan struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Price        string   `json:"price"`
	Currency     string   `json:"currency"`
	BillingCycle Cycle    `json:"billingCycle"`
	TrialDays    int      `json:"trialDays"`
	Featured     bool     `json:"featured"`
	Features     []string `json:"features"`
	SortOrder    int      `json:"sortOrder"`
}

// LoadSeedFile will read plan definitions from a JSON file. Used by cmd/api
// with -seed to populate an empty catalog.
func LoadSeedFile(filename string) ([]Plan, error) {
	jsonBytes, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot open plans JSON file")
	}
	return ParseSeed(jsonBytes)
}

// ParseSeed decodes plan definitions from JSON
func ParseSeed(jsonBytes []byte) ([]Plan, error) {
	seeds := make([]seedPlan, 0, 4)
	if err := json.Unmarshal(jsonBytes, &seeds); err != nil {
		return nil, extErrors.Wrap(err, "Invalid plans JSON file")
	}
	plans := make([]Plan, 0, len(seeds))
	for _, s := range seeds {
		price, err := decimal.NewFromString(s.Price)
		if err != nil {
			return nil, extErrors.Wrapf(err, "Invalid price for plan %q", s.Name)
		}
		if !s.BillingCycle.Valid() {
			return nil, extErrors.Errorf("Invalid billing cycle for plan %q", s.Name)
		}
		plans = append(plans, Plan{
			Name:         s.Name,
			Description:  s.Description,
			Price:        price,
			Currency:     s.Currency,
			BillingCycle: s.BillingCycle,
			TrialDays:    s.TrialDays,
			Active:       true,
			Featured:     s.Featured,
			Features:     s.Features,
			SortOrder:    s.SortOrder,
		})
	}
	return plans, nil
}

// Seed inserts the given plans, skipping names that already exist so the
// seed is safe to run repeatedly
func (m *Manager) Seed(ctx context.Context, plans []Plan) (int, error) {
	var created int
	for i := range plans {
		exists, err := m.ExistsByName(ctx, plans[i].Name)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}
		if err := m.Create(ctx, &plans[i]); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
