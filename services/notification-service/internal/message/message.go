// Package message renders the user-facing notification texts.
package message

import (
	"fmt"
	"time"

	"github.com/okorolenko/masterbook/libs/slottime"
)

// Reminder phrases the client reminder. The event carries the compact
// datetime; ParseNextIfPast resolves it relative to delivery time, which also
// covers year-end rollover for bookings early in January.
func Reminder(kind, providerName string, serviceName *string, startCompact string, now time.Time) string {
	when := startCompact
	if t, err := slottime.ParseNextIfPast(startCompact, now); err == nil {
		switch kind {
		case "24h":
			when = "tomorrow at " + t.Format("15:04")
		case "3h":
			when = "today at " + t.Format("15:04")
		default:
			when = slottime.Format(t)
		}
	}

	text := fmt.Sprintf("Reminder: your appointment with %s is %s.", providerName, when)
	if serviceName != nil && *serviceName != "" {
		text = fmt.Sprintf("Reminder: your %s appointment with %s is %s.", *serviceName, providerName, when)
	}
	return text
}

// BookingCreated is the provider-facing text for a fresh booking.
func BookingCreated(clientName, clientUsername, startCompact string, serviceName, servicePrice *string) string {
	who := clientName
	if who == "" {
		who = "a client"
	}
	if clientUsername != "" {
		who = fmt.Sprintf("%s (@%s)", who, clientUsername)
	}
	text := fmt.Sprintf("New booking on %s by %s", startCompact, who)
	if serviceName != nil && *serviceName != "" {
		text += ": " + *serviceName
		if servicePrice != nil && *servicePrice != "" {
			text += ", " + *servicePrice
		}
	}
	return text + "."
}

// BookingCancelled is the provider-facing text for a cancellation.
func BookingCancelled(startCompact string, serviceName *string) string {
	text := fmt.Sprintf("Booking on %s was cancelled", startCompact)
	if serviceName != nil && *serviceName != "" {
		text += " (" + *serviceName + ")"
	}
	return text + ". The slot is available again."
}
