// Package weektag converts calendar dates into the week encodings used by
// the Pyramid partner format: "YYWW" and "YYWWD" under ISO-8601 week
// numbering (the week containing the year's first Thursday is week 1).
package weektag

import (
	"fmt"
	"time"
)

// Week returns the "YYWW" tag for t: two-digit ISO year, zero-padded ISO
// week number. The zero time yields "" so callers can omit the field.
func Week(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	year, week := t.ISOWeek()
	return fmt.Sprintf("%02d%02d", year%100, week)
}

// WeekDay returns the "YYWWD" tag for t, where D is the ISO weekday
// (1=Monday .. 7=Sunday). The zero time yields "".
func WeekDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	year, week := t.ISOWeek()
	return fmt.Sprintf("%02d%02d%d", year%100, week, ISOWeekday(t))
}

// DisplayWeek returns the "YYYY-W" form stored back on order lines for
// operator display. Unpadded week, full ISO year.
func DisplayWeek(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-%d", year, week)
}

// ISOWeekday maps Go's Sunday-based weekday to ISO 1..7.
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// OffsetDays shifts t by n calendar days. The zero time is passed through
// unchanged so absent dates stay absent after shifting.
func OffsetDays(t time.Time, n int) time.Time {
	if t.IsZero() {
		return t
	}
	return t.AddDate(0, 0, n)
}
