// Package speed decodes ANT+ bicycle speed sensor broadcasts into speed,
// cadence and distance.
//
// The sensor sends two cumulative 16-bit counters: the time of the last wheel
// revolution event in 1/1024 s and the number of revolutions so far. Each new
// pair is turned into a delta against the previous pair by Apply, which both
// the bound channel (Sensor) and the scan mode (Scanner) front ends share.
package speed

import (
	"errors"
)

const (
	// DeviceType is the ANT+ device type of a bike speed sensor.
	DeviceType = 0x7b

	// Channel parameters of the speed profile.
	TransmissionType = 0
	ChannelPeriod    = 8118 // 4.04 Hz

	// DefaultWheelCircumference is a 700c road wheel, in meters.
	DefaultWheelCircumference = 2.118

	// TicksPerSecond is the resolution of the event time counter.
	TicksPerSecond = 1024

	// StaleTicks is the gap after which the revolution total restarts.
	StaleTicks = 5 * TicksPerSecond
)

var (
	// ErrDegenerateInterval means the revolution count moved while the event
	// time did not, so no rate can be derived.
	ErrDegenerateInterval = errors.New("revolution count changed with zero elapsed time")

	// ErrMalformed means the frame is too short or lacks required fields.
	ErrMalformed = errors.New("malformed message")
)

// Reading is one raw counter pair taken from a broadcast.
type Reading struct {
	EventTime       uint16 // 1/1024 s
	RevolutionCount uint16
}

// Delta is the outcome of applying a Reading to a State.
type Delta struct {
	State            State
	TotalRevolutions uint32
	Elapsed          uint16 // ticks since the previous reading
	Revolutions      uint16 // revolutions since the previous reading
	Fresh            bool   // State carries a new sample
}

// Apply derives the next state from the previous one and a new reading.
//
// The first reading for a state only records the counters. A reading whose
// revolution count equals the stored one is a repeat and changes nothing.
// Otherwise both counters are unwrapped against the stored pair, speed and
// cadence are computed from the deltas and the distance total is advanced;
// a gap longer than StaleTicks restarts the total before the delta is added.
//
// total is the caller's revolution accumulator for this device; the updated
// value is returned in the Delta. On error the state is returned unchanged.
func Apply(st State, circumference float64, r Reading, total uint32) (Delta, error) {
	d := Delta{State: st, TotalRevolutions: total}

	if !st.Seen {
		d.State.EventTime = r.EventTime
		d.State.RevolutionCount = r.RevolutionCount
		d.State.Seen = true
		return d, nil
	}
	if r.RevolutionCount == st.RevolutionCount {
		return d, nil
	}

	elapsed := unwrap(st.EventTime, r.EventTime)
	revolutions := unwrap(st.RevolutionCount, r.RevolutionCount)
	if elapsed == 0 {
		return d, ErrDegenerateInterval
	}

	rate := float64(revolutions) * TicksPerSecond / float64(elapsed)
	d.State.Speed = circumference * rate
	d.State.Cadence = 60 * rate

	if elapsed > StaleTicks {
		total = 0
	}
	total += uint32(revolutions)
	d.State.Distance = circumference * float64(total)

	d.State.EventTime = r.EventTime
	d.State.RevolutionCount = r.RevolutionCount
	d.State.Valid = true
	d.TotalRevolutions = total
	d.Elapsed = elapsed
	d.Revolutions = revolutions
	d.Fresh = true
	return d, nil
}

// unwrap returns cur-prev for a 16-bit counter that rolls over at 65536.
// At most one rollover is assumed between two readings.
func unwrap(prev, cur uint16) uint16 {
	if cur < prev {
		return uint16(uint32(cur) + 1<<16 - uint32(prev))
	}
	return cur - prev
}
