package handler

// format.go
import (
	"fmt"
	"strings"
	"time"
)

var weekdaysLong = [...]string{"Sonntag", "Montag", "Dienstag", "Mittwoch", "Donnerstag", "Freitag", "Samstag"}
var weekdaysShort = [...]string{"So.", "Mo.", "Di.", "Mi.", "Do.", "Fr.", "Sa."}

// formatDayLong renders "Montag, 02.06."
func formatDayLong(t time.Time) string {
	return fmt.Sprintf("%s, %02d.%02d.", weekdaysLong[t.Weekday()], t.Day(), int(t.Month()))
}

// formatDayLongYear renders "Montag, 02.06.2025"
func formatDayLongYear(t time.Time) string {
	return fmt.Sprintf("%s, %02d.%02d.%d", weekdaysLong[t.Weekday()], t.Day(), int(t.Month()), t.Year())
}

// formatDayShort renders "Mo. 02.06. 14:30"
func formatDayShort(t time.Time) string {
	return fmt.Sprintf("%s %02d.%02d. %02d:%02d", weekdaysShort[t.Weekday()], t.Day(), int(t.Month()), t.Hour(), t.Minute())
}

// formatDayShortYear renders "Mo., 02.06.2025"
func formatDayShortYear(t time.Time) string {
	return fmt.Sprintf("%s, %02d.%02d.%d", weekdaysShort[t.Weekday()], t.Day(), int(t.Month()), t.Year())
}

// formatClock renders "14:30"
func formatClock(t time.Time) string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// formatDateShortYear renders "02.06.25"
func formatDateShortYear(t time.Time) string {
	return fmt.Sprintf("%02d.%02d.%02d", t.Day(), int(t.Month()), t.Year()%100)
}

// formatStamp renders "02.06.25, 14:30:05" for operator notifications
func formatStamp(t time.Time) string {
	return fmt.Sprintf("%02d.%02d.%02d, %02d:%02d:%02d", t.Day(), int(t.Month()), t.Year()%100, t.Hour(), t.Minute(), t.Second())
}

// formatPrice renders "14.50"
func formatPrice(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// formatKm renders "3.4"
func formatKm(v float64) string {
	return fmt.Sprintf("%.1f", v)
}

// truncate shortens s to max runes, appending an ellipsis
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

// cleanPhoneDisplay strips characters that are not part of a phone number
func cleanPhoneDisplay(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		switch {
		case r >= '0' && r <= '9', r == '+', r == ' ', r == '-', r == '(', r == ')':
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
