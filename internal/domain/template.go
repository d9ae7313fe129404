package domain

import "time"

// Template holds a reusable subject and body. The body may contain named
// placeholders ({first_name}, {last_name}, {company}, {free_field1..3})
// which the composer substitutes per recipient.
type Template struct {
	ID        string    `json:"id" db:"id"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	Name      string    `json:"name" db:"name"`
	Subject   string    `json:"subject" db:"subject"`
	Body      string    `json:"body" db:"body"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Recipient is one addressable contact of a tenant. Email is unique per
// tenant; every other field is optional personalization data.
type Recipient struct {
	ID         string `json:"id" db:"id"`
	TenantID   string `json:"tenant_id" db:"tenant_id"`
	Email      string `json:"email" db:"email"`
	FirstName  string `json:"first_name" db:"first_name"`
	LastName   string `json:"last_name" db:"last_name"`
	Company    string `json:"company" db:"company"`
	Country    string `json:"country" db:"country"`
	City       string `json:"city" db:"city"`
	FreeField1 string `json:"free_field1" db:"free_field1"`
	FreeField2 string `json:"free_field2" db:"free_field2"`
	FreeField3 string `json:"free_field3" db:"free_field3"`
}

// PlaceholderValues returns the substitution map used by the composer.
// Missing optional fields substitute as empty strings, never an error.
func (r *Recipient) PlaceholderValues() map[string]string {
	return map[string]string{
		"first_name":  r.FirstName,
		"last_name":   r.LastName,
		"company":     r.Company,
		"free_field1": r.FreeField1,
		"free_field2": r.FreeField2,
		"free_field3": r.FreeField3,
	}
}
