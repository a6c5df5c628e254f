package mongodb

const (
	CredentialsCollection       = "oauth_credentials"  // For provider OAuth credentials
	SelectedCalendarsCollection = "selected_calendars" // For per-user calendar selections
	SlotsCollection             = "availability_slots" // For explicit availability slots
	BusinessHoursCollection     = "business_hours"     // For per-user scheduling policy
	WidgetStatsCollection       = "widget_stats"       // For widget engagement counters
)
