package database

import "time"

const sqliteTimestamp = "2006-01-02 15:04:05"

// DefaultLabel names a run after the time it was started.
func DefaultLabel(t time.Time) string {
	return "Run " + t.Format("2006-01-02 15:04")
}

// FormatTimestamp formats a SQLite datetime('now') value for display, e.g.
// "Feb 06, 2026 14:03". Unparseable values are returned unchanged.
func FormatTimestamp(ts string) string {
	t, err := time.Parse(sqliteTimestamp, ts)
	if err != nil {
		return ts
	}
	return t.Format("Jan 02, 2006 15:04")
}

// ShortID returns the first eight characters of a run ID.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
