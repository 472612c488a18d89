package reminder

import "time"

// PlaceholderID is the initial client-assigned identifier for a reminder the
// server has not acknowledged yet. [Collection.Add] renumbers placeholders
// downward on collision, so values closer to zero are older.
const PlaceholderID int64 = -1

// Defaults substituted during lenient payload decoding. Every payload field
// has one so decoding never fails, keeping sync resilient to version skew
// between client and server.
const (
	DefaultCountdownInterval = 30 * time.Minute
	DefaultSnoozeInterval    = 5 * time.Minute
	defaultWeeklyHour        = 9
	defaultMonthlyDay        = 1
)

// payloadTimeLayout is ISO 8601 with fractional seconds, matching what the
// server emits for every date field.
const payloadTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// weekdayKeys maps payload booleans to [time.Weekday] indices (0 = Sunday).
// The wire format explodes the weekday set into one boolean per day rather
// than a bitmask.
var weekdayKeys = [7]string{
	"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday",
}

func defaultWeekly() WeeklyComponents {
	return WeeklyComponents{
		Hour:     defaultWeeklyHour,
		Weekdays: [7]bool{true, true, true, true, true, true, true},
	}
}

func defaultMonthly() MonthlyComponents {
	return MonthlyComponents{
		Day:  defaultMonthlyDay,
		Hour: defaultWeeklyHour,
	}
}

// FromPayload decodes a parsed JSON object into a Reminder. It never fails:
// missing or malformed fields fall back to their documented defaults, with a
// missing execution basis defaulting to the current moment.
func FromPayload(payload map[string]any) *Reminder {
	r := &Reminder{
		ID:             int64Field(payload, "reminderId", PlaceholderID),
		DogID:          int64Field(payload, "dogId", 0),
		Action:         Action(stringField(payload, "reminderAction", string(ActionFeed))),
		Type:           decodeType(stringField(payload, "reminderType", string(TypeCountdown))),
		ExecutionBasis: dateField(payload, "reminderExecutionBasis", time.Now().UTC()),
		Enabled:        boolField(payload, "reminderIsEnabled", true),
		Deleted:        boolField(payload, "reminderIsDeleted", false),
	}

	name := stringField(payload, "reminderCustomActionName", "")
	if len([]rune(name)) > MaxCustomActionNameLength {
		name = string([]rune(name)[:MaxCustomActionNameLength])
	}
	r.CustomActionName = name

	if boolField(payload, "snoozeIsEnabled", false) {
		d := durationField(payload, "snoozeExecutionInterval", DefaultSnoozeInterval)
		r.Snooze = &d
	}

	r.Countdown = CountdownComponents{
		ExecutionInterval: durationField(payload, "countdownExecutionInterval", DefaultCountdownInterval),
	}

	weekly := defaultWeekly()
	weekly.Hour = clampInt(intField(payload, "weeklyHour", defaultWeeklyHour), 0, 23)
	weekly.Minute = clampInt(intField(payload, "weeklyMinute", 0), 0, 59)
	for i, key := range weekdayKeys {
		weekly.Weekdays[i] = boolField(payload, key, true)
	}
	if !weekly.HasWeekday() {
		weekly.Weekdays = defaultWeekly().Weekdays
	}
	weekly.IsSkipping = boolField(payload, "weeklyIsSkipping", false)
	weekly.SkippedDate = dateField(payload, "weeklySkipDate", time.Time{})
	r.Weekly = weekly

	monthly := MonthlyComponents{
		Day:         clampInt(intField(payload, "monthlyDay", defaultMonthlyDay), 1, 31),
		Hour:        clampInt(intField(payload, "monthlyHour", defaultWeeklyHour), 0, 23),
		Minute:      clampInt(intField(payload, "monthlyMinute", 0), 0, 59),
		IsSkipping:  boolField(payload, "monthlyIsSkipping", false),
		SkippedDate: dateField(payload, "monthlySkipDate", time.Time{}),
	}
	r.Monthly = monthly

	r.OneTime = OneTimeComponents{
		Date: dateField(payload, "oneTimeDate", r.ExecutionBasis),
	}

	return r
}

// ToPayload encodes the reminder as the wire representation: exploded
// boolean-per-weekday flags and ISO 8601 fractional-second date strings.
// FromPayload(r.ToPayload()) reproduces r for all four variant types.
func (r *Reminder) ToPayload() map[string]any {
	payload := map[string]any{
		"reminderId":               r.ID,
		"dogId":                    r.DogID,
		"reminderAction":           string(r.Action),
		"reminderCustomActionName": r.CustomActionName,
		"reminderType":             string(r.Type),
		"reminderExecutionBasis":   formatDate(r.ExecutionBasis),
		"reminderIsEnabled":        r.Enabled,
		"reminderIsDeleted":        r.Deleted,

		"countdownExecutionInterval": r.Countdown.ExecutionInterval.Seconds(),

		"weeklyHour":       r.Weekly.Hour,
		"weeklyMinute":     r.Weekly.Minute,
		"weeklyIsSkipping": r.Weekly.IsSkipping,
		"weeklySkipDate":   formatDate(r.Weekly.SkippedDate),

		"monthlyDay":        r.Monthly.Day,
		"monthlyHour":       r.Monthly.Hour,
		"monthlyMinute":     r.Monthly.Minute,
		"monthlyIsSkipping": r.Monthly.IsSkipping,
		"monthlySkipDate":   formatDate(r.Monthly.SkippedDate),

		"oneTimeDate": formatDate(r.OneTime.Date),
	}

	for i, key := range weekdayKeys {
		payload[key] = r.Weekly.Weekdays[i]
	}

	payload["snoozeIsEnabled"] = r.Snooze != nil
	if r.Snooze != nil {
		payload["snoozeExecutionInterval"] = r.Snooze.Seconds()
	}

	return payload
}

// --- lenient field extraction ------------------------------------------------

func decodeType(s string) Type {
	switch Type(s) {
	case TypeCountdown, TypeWeekly, TypeMonthly, TypeOneTime:
		return Type(s)
	default:
		return TypeCountdown
	}
}

func stringField(payload map[string]any, key, fallback string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return fallback
}

func boolField(payload map[string]any, key string, fallback bool) bool {
	if v, ok := payload[key].(bool); ok {
		return v
	}
	return fallback
}

// numField accepts the numeric shapes a parsed JSON object can carry.
func numField(payload map[string]any, key string) (float64, bool) {
	switch v := payload[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func intField(payload map[string]any, key string, fallback int) int {
	if v, ok := numField(payload, key); ok {
		return int(v)
	}
	return fallback
}

func int64Field(payload map[string]any, key string, fallback int64) int64 {
	if v, ok := numField(payload, key); ok {
		return int64(v)
	}
	return fallback
}

// durationField reads a second count and rejects non-positive values in
// favour of the fallback.
func durationField(payload map[string]any, key string, fallback time.Duration) time.Duration {
	if v, ok := numField(payload, key); ok && v > 0 {
		return time.Duration(v * float64(time.Second))
	}
	return fallback
}

func dateField(payload map[string]any, key string, fallback time.Time) time.Time {
	s, ok := payload[key].(string)
	if !ok || s == "" {
		return fallback
	}
	if t, err := time.Parse(payloadTimeLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return fallback
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(payloadTimeLayout)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
