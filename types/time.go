package types

import "time"

// TimePoint is chain time with one second resolution, the unit every
// header timestamp, expiration and vesting computation uses.
type TimePoint int64

// MaxTimePoint is the far future; suspended schedules park here.
const MaxTimePoint TimePoint = 0xFFFFFFFF

// TimePointFromTime converts a time.Time to a TimePoint.
func TimePointFromTime(t time.Time) TimePoint {
	return TimePoint(t.Unix())
}

// ToTime converts a TimePoint to a time.Time (UTC).
func (t TimePoint) ToTime() time.Time {
	return time.Unix(int64(t), 0).UTC()
}

// Add returns t advanced by sec seconds.
func (t TimePoint) Add(sec int64) TimePoint { return t + TimePoint(sec) }

// Sub returns t-u in seconds.
func (t TimePoint) Sub(u TimePoint) int64 { return int64(t - u) }

func (t TimePoint) String() string {
	return t.ToTime().Format(time.RFC3339)
}
