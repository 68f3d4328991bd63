package token

import (
	"math"
	"time"
)

// AvgConsultationMinutes is the assumed per-patient consultation length used
// when estimating wall-clock appointment times.
const AvgConsultationMinutes = 10

var basePriority = map[Category]float64{
	CategoryEmergency:    1,
	CategoryPriorityPaid: 2,
	CategoryFollowup:     3,
	CategoryOnline:       4,
	CategoryWalkin:       5,
}

// PriorityFor computes the priority score for a booking: the category's base
// value minus a wait-time bonus of 0.1 per hour elapsed since bookingTime,
// capped at 1.0. Lower scores are served first. The evaluation instant is
// passed in so the function stays pure.
func PriorityFor(category Category, bookingTime, now time.Time) float64 {
	base, ok := basePriority[category]
	if !ok {
		base = 5
	}

	hours := now.Sub(bookingTime).Hours()
	bonus := math.Min(hours*0.1, 1.0)

	return math.Round((base-bonus)*100) / 100
}

// EstimateTime computes the expected consultation time for the 1-based queue
// position, offsetting the slot start by the accumulated delay and the
// consultations ahead of it.
func EstimateTime(slotStart time.Time, delayMinutes, position int) time.Time {
	offset := delayMinutes + (position-1)*AvgConsultationMinutes
	return slotStart.Add(time.Duration(offset) * time.Minute)
}
