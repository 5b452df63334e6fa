package models

// DealRequest is the shape handed to the CRM when a lead is complete.
type DealRequest struct {
	Phone       string `json:"phone"`
	City        string `json:"city"`
	Hours       int    `json:"hours"`
	People      int    `json:"people"`
	CompanyName string `json:"company_name,omitempty"`
	Summary     string `json:"summary"`
	IsLegal     bool   `json:"is_legal"`
}

const (
	DealErrorValidation  = "validation"
	DealErrorUnavailable = "dependency_unavailable"
)

// DealResult reports the outcome of one deal hand-off attempt. Reason keeps
// the underlying failure text so a failed hand-off can be reconciled later.
type DealResult struct {
	Success   bool   `json:"success"`
	DealID    string `json:"deal_id,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Reason    string `json:"reason,omitempty"`
}
