package core

// Stable identifiers for the two scheduled triggers. Reconfiguration replaces
// triggers by ID rather than looking them up through global state.
const (
	JobReconciliation = "reconciliation"
	JobReport         = "report"
)

// Default daily firing times used when configured values are out of range.
const (
	DefaultCheckHour    = 9
	DefaultCheckMinute  = 0
	DefaultReportHour   = 9
	DefaultReportMinute = 30
)

// Trigger is one daily firing time for a named job.
type Trigger struct {
	ID     string
	Hour   int
	Minute int
}

// PlanSchedule derives the trigger set from the current settings. The
// reconciliation trigger is always present; the report trigger only when
// scheduled sending is enabled. Invalid hours and minutes fall back to the
// defaults. The result fully replaces any previously configured triggers.
func PlanSchedule(settings *Settings) []Trigger {
	triggers := []Trigger{{
		ID:     JobReconciliation,
		Hour:   sanitizeHour(settings.CheckHour, DefaultCheckHour),
		Minute: sanitizeMinute(settings.CheckMinute, DefaultCheckMinute),
	}}

	if settings.ReportEnabled {
		triggers = append(triggers, Trigger{
			ID:     JobReport,
			Hour:   sanitizeHour(settings.ReportHour, DefaultReportHour),
			Minute: sanitizeMinute(settings.ReportMinute, DefaultReportMinute),
		})
	}

	return triggers
}
