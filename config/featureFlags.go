package config

import (
	"os"
	"strings"
)

// StrictStageOverrideAudit requires a non-empty reason on every manual stage
// override. When disabled, overrides without a reason are accepted and logged.
//
// Set via env:
// - STRICT_STAGE_OVERRIDE_AUDIT=true
func StrictStageOverrideAudit() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STRICT_STAGE_OVERRIDE_AUDIT")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// RealtimeEventsFor enables outbound realtime notifications per event type.
//
// Set via env:
// - REALTIME_EVENTS="QUOTATION_UPLOADED,DEPOSIT_RECORDED,ORDER_CLOSED" or "*" for all.
//
// Event keys are case-insensitive.
func RealtimeEventsFor(eventType string) bool {
	eventType = strings.ToUpper(strings.TrimSpace(eventType))
	if eventType == "" {
		return false
	}
	raw := strings.TrimSpace(os.Getenv("REALTIME_EVENTS"))
	if raw == "" || raw == "*" {
		// Default on: the portal depends on push updates.
		return true
	}
	for _, part := range strings.Split(raw, ",") {
		if strings.ToUpper(strings.TrimSpace(part)) == eventType {
			return true
		}
	}
	return false
}
