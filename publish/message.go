// Package publish forwards decoded speed samples to live consumers:
// browsers over a WebSocket and subscribers of a Redis channel.
package publish

import (
	"encoding/json"
	"time"

	"github.com/sergev/antspeed/speed"
)

// Message is the JSON form of one sample.
type Message struct {
	Time      time.Time `json:"time"`
	DeviceID  uint16    `json:"device_id"`
	Speed     float64   `json:"speed_mps"`
	Cadence   float64   `json:"cadence_rpm"`
	Distance  float64   `json:"distance_m"`
	RSSI      *int8     `json:"rssi,omitempty"`
	Threshold *int8     `json:"threshold,omitempty"`
}

// NewMessage converts a sample taken at t.
func NewMessage(s speed.Sample, t time.Time) Message {
	m := Message{
		Time:     t.UTC(),
		DeviceID: s.DeviceID,
		Speed:    s.Speed,
		Cadence:  s.Cadence,
		Distance: s.Distance,
	}
	if s.HasRSSI {
		rssi, threshold := s.RSSI, s.Threshold
		m.RSSI = &rssi
		m.Threshold = &threshold
	}
	return m
}

// encode marshals a sample stamped with the current time.
func encode(s speed.Sample) ([]byte, error) {
	return json.Marshal(NewMessage(s, time.Now()))
}
