package manager

import (
	"strings"
	"time"
)

// Форматы, которые присылают клиенты: ISO-строка из JS (toISOString),
// <input type="datetime-local"> и <input type="date">.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.DateOnly,
}

// parseDate разбирает дату; строки без зоны трактуются в loc
func parseDate(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// notBeforeToday сравнивает календарные дни: любое время сегодня допустимо
func notBeforeToday(date, now time.Time, loc *time.Location) bool {
	return !startOfDay(date, loc).Before(startOfDay(now, loc))
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
