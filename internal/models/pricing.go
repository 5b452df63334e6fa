package models

// PricingEntry is one row of the static city rate table.
type PricingEntry struct {
	City        string `yaml:"city" json:"city"`
	RatePerHour int    `yaml:"rate_per_hour" json:"rate_per_hour"`
	MinHours    int    `yaml:"min_hours" json:"min_hours"`
}

// Quote is a successfully priced order.
type Quote struct {
	City        string `json:"city"`
	People      int    `json:"people"`
	Hours       int    `json:"hours"`
	RatePerHour int    `json:"rate_per_hour"`
	Total       int    `json:"total"`
}
