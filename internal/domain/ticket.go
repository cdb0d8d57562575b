package domain

import (
	"strings"
	"time"
)

// TicketPriority enumerates SLA urgency, ordered by severity.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "LOW"
	TicketPriorityMedium   TicketPriority = "MEDIUM"
	TicketPriorityHigh     TicketPriority = "HIGH"
	TicketPriorityCritical TicketPriority = "CRITICAL"
	TicketPriorityUnknown  TicketPriority = "UNKNOWN"
)

// Priorities lists the known priorities from least to most severe.
var Priorities = []TicketPriority{
	TicketPriorityLow,
	TicketPriorityMedium,
	TicketPriorityHigh,
	TicketPriorityCritical,
}

// ParsePriority maps a stored or user supplied value onto the severity enum.
// Anything unrecognized becomes TicketPriorityUnknown.
func ParsePriority(raw string) TicketPriority {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "LOW":
		return TicketPriorityLow
	case "MEDIUM":
		return TicketPriorityMedium
	case "HIGH":
		return TicketPriorityHigh
	case "CRITICAL", "URGENT":
		return TicketPriorityCritical
	default:
		return TicketPriorityUnknown
	}
}

// Severity returns the rank of the priority; unknown sorts after every known value.
func (p TicketPriority) Severity() int {
	for i, known := range Priorities {
		if p == known {
			return i
		}
	}
	return len(Priorities)
}

// Known reports whether the priority is part of the severity enum.
func (p TicketPriority) Known() bool {
	return p.Severity() < len(Priorities)
}

// CategoryOther collects categories outside the configured known set.
const CategoryOther = "Other"

// DefaultCategories is the known category set used when none is configured.
var DefaultCategories = []string{"Billing", "Technical", "Account", "Shipping", "General"}

// Ticket is a read-only support request row owned by the upstream store.
type Ticket struct {
	ID          string
	CustomerID  string
	AccountID   string
	Category    string
	Subcategory string
	Priority    TicketPriority
	Status      string
	Description string
	GeoID       string
	CreatedAt   time.Time
}
