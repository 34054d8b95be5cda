package entities

import (
	"fmt"
	"time"
)

// DefaultContactAllowance is how many contact reveals a user gets
const DefaultContactAllowance = 5

// Urgency of a contact request
type Urgency string

const (
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
	UrgencyUrgent Urgency = "urgent"
)

// ParseUrgency converts a raw string into an Urgency; empty means normal
func ParseUrgency(value string) (Urgency, error) {
	switch Urgency(value) {
	case "":
		return UrgencyNormal, nil
	case UrgencyNormal, UrgencyHigh, UrgencyUrgent:
		return Urgency(value), nil
	}
	return "", fmt.Errorf("unknown urgency %q", value)
}

// ContactQuotaState is the persisted counter of contact reveals
type ContactQuotaState struct {
	UserID    string `json:"user_id"`
	Allowance int    `json:"allowance"`
	Used      int    `json:"used"`
}

// Remaining returns how many reveals are left, never negative
func (s ContactQuotaState) Remaining() int {
	if s.Used >= s.Allowance {
		return 0
	}
	return s.Allowance - s.Used
}

// ContactRequestContext carries the data collected during one contact request
type ContactRequestContext struct {
	ProviderID         string  `json:"provider_id"`
	RequesterIsPatient bool    `json:"requester_is_patient"`
	DependentPatientID string  `json:"dependent_patient_id,omitempty"`
	ReasonForVisit     string  `json:"reason_for_visit"`
	Urgency            Urgency `json:"urgency"`
	Notes              string  `json:"notes,omitempty"`
}

// ContactRequestStatus is the persisted status of a contact request
type ContactRequestStatus string

const (
	ContactRequestStatusPending ContactRequestStatus = "pending"
	ContactRequestStatusSuccess ContactRequestStatus = "success"
	ContactRequestStatusDenied  ContactRequestStatus = "denied"
	ContactRequestStatusFailed  ContactRequestStatus = "failed"
)

// ContactRecord is emitted when a contact request resolves successfully
type ContactRecord struct {
	ID         string                `json:"id" db:"id"`
	UserID     string                `json:"user_id" db:"user_id"`
	Request    ContactRequestContext `json:"request"`
	Status     ContactRequestStatus  `json:"status" db:"status"`
	CreatedAt  time.Time             `json:"created_at" db:"created_at"`
	ResolvedAt *time.Time            `json:"resolved_at,omitempty" db:"resolved_at"`
}

// ContactDetails are the private contact details of a provider
type ContactDetails struct {
	ProviderID string `json:"provider_id"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Address    string `json:"address"`
	Hours      string `json:"hours"`
}

// DependentPatient is someone a user may request care for (child, parent, ...)
type DependentPatient struct {
	ID           string `json:"id"`
	FullName     string `json:"full_name"`
	Relationship string `json:"relationship"`
}
