package reporting

import (
	"fmt"
	"time"
)

// DefaultTimezone anchors all bucket arithmetic. One zone per engine instance,
// never mixed within a report.
const DefaultTimezone = "Asia/Manila"

// BucketKey maps a timestamp to the start of its bucket for the given
// frequency, evaluated in loc. Weekly buckets start on the ISO Monday,
// quarterly buckets on months 1, 4, 7 and 10.
func BucketKey(t time.Time, freq Frequency, loc *time.Location) time.Time {
	t = t.In(loc)
	switch freq {
	case FreqWeekly:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case FreqMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	case FreqQuarterly:
		month := time.Month((int(t.Month())-1)/3*3 + 1)
		return time.Date(t.Year(), month, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	}
}

// BucketRange enumerates every bucket start between start and end inclusive.
// The series built over this range has no gaps: empty buckets still appear.
func BucketRange(start, end time.Time, freq Frequency, loc *time.Location) []time.Time {
	if end.Before(start) {
		return nil
	}
	first := BucketKey(start, freq, loc)
	last := BucketKey(end, freq, loc)
	buckets := make([]time.Time, 0, 8)
	for cur := first; !cur.After(last); cur = nextBucket(cur, freq) {
		buckets = append(buckets, cur)
	}
	return buckets
}

func nextBucket(cur time.Time, freq Frequency) time.Time {
	switch freq {
	case FreqWeekly:
		return cur.AddDate(0, 0, 7)
	case FreqMonthly:
		return cur.AddDate(0, 1, 0)
	case FreqQuarterly:
		return cur.AddDate(0, 3, 0)
	default:
		return cur.AddDate(0, 0, 1)
	}
}

// FormatBucket renders the canonical period label for a bucket start.
func FormatBucket(bucket time.Time, freq Frequency) string {
	switch freq {
	case FreqMonthly:
		return bucket.Format("2006-01")
	case FreqQuarterly:
		return fmt.Sprintf("%d-Q%d", bucket.Year(), (int(bucket.Month())-1)/3+1)
	default:
		return bucket.Format("2006-01-02")
	}
}
