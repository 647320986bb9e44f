package enums

import "fmt"

// RentalStatus describes the allowed values for the `status` column in rental_transactions.
type RentalStatus string

const (
	RentalStatusActive   RentalStatus = "active"
	RentalStatusReturned RentalStatus = "returned"
)

var validRentalStatuses = []RentalStatus{
	RentalStatusActive,
	RentalStatusReturned,
}

// IsValid reports whether the value matches the canonical rental status enum.
func (s RentalStatus) IsValid() bool {
	for _, candidate := range validRentalStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseRentalStatus converts the raw string to RentalStatus.
func ParseRentalStatus(value string) (RentalStatus, error) {
	for _, candidate := range validRentalStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid rental status %q", value)
}
