package model

import "time"

// SlotGranularity is the base length of a single slot. A booking whose service
// runs longer than this consumes the following slots of the same day via
// blocked_by.
const SlotGranularity = 30 * time.Minute

// DefaultServiceDuration applies when a service has no explicit duration.
const DefaultServiceDuration = 30 * time.Minute

type Provider struct {
	ID           int64
	ChatID       int64
	Name         string
	Description  string
	MinLeadHours int
}

type Client struct {
	ID       int64
	Username string
	FullName string
}

type Service struct {
	ID              int64
	ProviderID      int64
	Category        string
	Subcategory     *string
	Name            string
	Price           string
	DurationMinutes *int
	Description     string
}

// Duration returns the service's booking length, defaulting to the base slot
// granularity when unset or non-positive.
func (s Service) Duration() time.Duration {
	if s.DurationMinutes == nil || *s.DurationMinutes <= 0 {
		return DefaultServiceDuration
	}
	return time.Duration(*s.DurationMinutes) * time.Minute
}

type Slot struct {
	ID         int64
	ProviderID int64
	StartAt    time.Time
	Booked     bool
	ClientID   *int64
	ServiceID  *int64
	BlockedBy  *int64
}

type TemplateEntry struct {
	ID         int64
	ProviderID int64
	DayOfWeek  int // 0=Monday … 6=Sunday
	StartClock string
}

type DayOff struct {
	ID         int64
	ProviderID int64
	Day        time.Time
}
