package challenge

import (
	"strconv"
	"time"
)

// cacheAge formats how long ago a record was cached, for notices.
func cacheAge(cachedAt, now time.Time) string {
	d := now.Sub(cachedAt)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return strconv.Itoa(int(d.Minutes())) + "m ago"
	case d < 24*time.Hour:
		return strconv.Itoa(int(d.Hours())) + "h ago"
	default:
		return strconv.Itoa(int(d.Hours()/24)) + "d ago"
	}
}

// CacheNotice describes a cache hit for the caller's "note" presentation.
func CacheNotice(rec *Record, now time.Time) Notice {
	if rec == nil || rec.CachedAt == 0 {
		return Notice{Level: LevelNote, Message: "loaded from cache"}
	}
	return Notice{Level: LevelNote, Message: "loaded from cache (cached " + cacheAge(rec.CachedTime(), now) + ")"}
}
