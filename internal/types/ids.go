package types

import (
	"github.com/google/uuid"
)

// OwnerID is the UUID of a component that owns time-series associations.
type OwnerID string

// TimeSeriesID is the UUID of a stored time-series array.
type TimeSeriesID string

// NewOwnerID generates a random owner identifier.
func NewOwnerID() OwnerID {
	return OwnerID(uuid.New().String())
}

// NewTimeSeriesID generates a UUIDv7 time-series identifier.
// Time-ordered IDs keep sequential inserts clustered in B-tree pages.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewTimeSeriesID() TimeSeriesID {
	return TimeSeriesID(uuid.Must(uuid.NewV7()).String())
}

// ParseOwnerID validates and normalizes a string to OwnerID.
// Normalization lowercases and hyphenates so equal UUIDs compare equal in SQL.
func ParseOwnerID(s string) (OwnerID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", NewValidationError("owner_uuid", ErrInvalidOwnerID, "%q: %v", s, err)
	}
	return OwnerID(u.String()), nil
}

// ParseTimeSeriesID validates and normalizes a string to TimeSeriesID.
func ParseTimeSeriesID(s string) (TimeSeriesID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", NewValidationError("time_series_uuid", ErrInvalidOwnerID, "%q: %v", s, err)
	}
	return TimeSeriesID(u.String()), nil
}
