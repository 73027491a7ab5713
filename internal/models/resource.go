package models

import "time"

type Resource struct {
	ID                string             `yaml:"id" json:"id"`
	SupplierID        string             `yaml:"supplier_id" json:"supplier_id"`
	Name              string             `yaml:"name" json:"name"`
	Category          string             `yaml:"category" json:"category"`
	Model             string             `yaml:"model" json:"model,omitempty"`
	PurposeRates      map[string]float64 `yaml:"purpose_rates" json:"purpose_rates"`
	QuantityAvailable int64              `yaml:"quantity_available" json:"quantity_available"`
	Available         bool               `yaml:"available" json:"available"`
	ApprovalStatus    string             `yaml:"approval_status" json:"approval_status"`
	CreatedAt         time.Time          `yaml:"created_at" json:"created_at"`
	UpdatedAt         time.Time          `yaml:"updated_at" json:"updated_at"`
}

// IsDispatchable reports whether the resource may receive offers at all.
func (r *Resource) IsDispatchable() bool {
	return r.Available && r.ApprovalStatus == ApprovalApproved
}

// SupportsPurpose reports whether the rate list covers the work purpose.
func (r *Resource) SupportsPurpose(purpose string) bool {
	_, ok := r.PurposeRates[purpose]
	return ok
}

// RateFor returns the hourly rate for a purpose, zero when unlisted.
func (r *Resource) RateFor(purpose string) float64 {
	return r.PurposeRates[purpose]
}
