// Package report summarizes the samples of a session per device.
package report

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/sergev/antspeed/speed"
	"github.com/sergev/antspeed/units"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes one device over a session.
type Summary struct {
	DeviceID    uint16
	Samples     int
	MeanSpeed   float64 // m/s
	MaxSpeed    float64 // m/s
	MeanCadence float64 // rpm
	Distance    float64 // m, last reported
	MeanRSSI    float64 // dBm, valid when HasRSSI
	HasRSSI     bool
}

type series struct {
	speed    []float64
	cadence  []float64
	rssi     []float64
	distance float64
}

// Collector accumulates samples. Its Add method can be subscribed as a sink.
type Collector struct {
	devices map[uint16]*series
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{devices: make(map[uint16]*series)}
}

// Add records one sample.
func (c *Collector) Add(s speed.Sample) {
	d, ok := c.devices[s.DeviceID]
	if !ok {
		d = &series{}
		c.devices[s.DeviceID] = d
	}
	d.speed = append(d.speed, s.Speed)
	d.cadence = append(d.cadence, s.Cadence)
	d.distance = s.Distance
	if s.HasRSSI {
		d.rssi = append(d.rssi, float64(s.RSSI))
	}
}

// Summaries returns one summary per device, ordered by device ID.
func (c *Collector) Summaries() []Summary {
	var out []Summary
	for _, id := range slices.Sorted(maps.Keys(c.devices)) {
		d := c.devices[id]
		sum := Summary{
			DeviceID:    id,
			Samples:     len(d.speed),
			MeanSpeed:   stat.Mean(d.speed, nil),
			MaxSpeed:    floats.Max(d.speed),
			MeanCadence: stat.Mean(d.cadence, nil),
			Distance:    d.distance,
		}
		if len(d.rssi) > 0 {
			sum.MeanRSSI = stat.Mean(d.rssi, nil)
			sum.HasRSSI = true
		}
		out = append(out, sum)
	}
	return out
}

// Print writes the summaries as a table in the given units.
func Print(w io.Writer, summaries []Summary, unit string) {
	if len(summaries) == 0 {
		fmt.Fprintf(w, "No speed samples.\n")
		return
	}
	fmt.Fprintf(w, "%-8s %8s %10s %10s %9s %10s %8s\n",
		"Device", "Samples", "Avg "+units.SpeedLabel(unit), "Max "+units.SpeedLabel(unit),
		"Avg rpm", units.DistanceLabel(unit), "RSSI")
	for _, s := range summaries {
		rssi := "-"
		if s.HasRSSI {
			rssi = fmt.Sprintf("%.0f", s.MeanRSSI)
		}
		fmt.Fprintf(w, "%-8d %8d %10.1f %10.1f %9.0f %10.3f %8s\n",
			s.DeviceID, s.Samples,
			units.ConvertSpeed(s.MeanSpeed, unit),
			units.ConvertSpeed(s.MaxSpeed, unit),
			s.MeanCadence,
			units.ConvertDistance(s.Distance, unit),
			rssi)
	}
}
