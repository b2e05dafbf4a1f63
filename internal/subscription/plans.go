package subscription

// PlanConfig describes a purchasable subscription plan. The price ids are
// injected from configuration; the rest is fixed at build time.
type PlanConfig struct {
	ID         string   `json:"id"`
	PriceID    string   `json:"price_id"`
	Name       string   `json:"name"`
	Price      float64  `json:"price"`
	Currency   string   `json:"currency"`
	Interval   string   `json:"interval"` // month, year
	MaxUsers   int      `json:"max_users"`
	MaxClients int      `json:"max_clients"`
	MaxRepairs int      `json:"max_repairs"`
	Features   []string `json:"features"`
}

var availablePlans = map[string]PlanConfig{
	"monthly": {
		ID:         "monthly",
		Name:       "Monthly",
		Price:      59.0,
		Currency:   "EUR",
		Interval:   "month",
		MaxUsers:   5,
		MaxClients: 500,
		MaxRepairs: 1000,
		Features: []string{
			"basic",
			"repairs",
			"customers",
			"notifications",
			"metrics",
		},
	},
	"yearly": {
		ID:         "yearly",
		Name:       "Yearly",
		Price:      590.0,
		Currency:   "EUR",
		Interval:   "year",
		MaxUsers:   10,
		MaxClients: 1000,
		MaxRepairs: 2000,
		Features: []string{
			"basic",
			"repairs",
			"customers",
			"notifications",
			"metrics",
			"api_access",
			"priority_support",
		},
	},
}

// AvailablePlans returns the plan catalog keyed by plan id.
func AvailablePlans() map[string]PlanConfig {
	plans := make(map[string]PlanConfig, len(availablePlans))
	for k, v := range availablePlans {
		plans[k] = v
	}
	return plans
}

// PlanByPriceID finds the plan sold under a processor price id.
func PlanByPriceID(priceID string) (PlanConfig, bool) {
	for _, plan := range availablePlans {
		if plan.PriceID == priceID {
			return plan, true
		}
	}
	return PlanConfig{}, false
}

// SetPlanPriceID binds a processor price id to a plan at startup.
func SetPlanPriceID(planID, priceID string) {
	if plan, ok := availablePlans[planID]; ok {
		plan.PriceID = priceID
		availablePlans[planID] = plan
	}
}
