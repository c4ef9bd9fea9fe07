package models

import "time"

type Patient struct {
	PatientID string    `json:"id"`
	LastName  string    `json:"last_name"`
	FirstName string    `json:"first_name"`
	Age       int       `json:"age"`
	WeightKG  float64   `json:"weight_kg"`
	Condition string    `json:"condition"`
	Notes     string    `json:"notes,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreatePatientRequest struct {
	LastName  string  `json:"last_name"`
	FirstName string  `json:"first_name"`
	Age       int     `json:"age"`
	WeightKG  float64 `json:"weight_kg"`
	Condition string  `json:"condition"`
	Notes     string  `json:"notes,omitempty"`
	Phone     string  `json:"phone,omitempty"`
}

type PatientFilters struct {
	Search string
	Page   int
	Limit  int
}

type PatientPage struct {
	Data       []Patient `json:"data"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	Limit      int       `json:"limit"`
	TotalPages int       `json:"total_pages"`
}
