package speed

import (
	"encoding/binary"

	"github.com/sergev/antspeed/ant"
	"github.com/sergev/antspeed/monitoring"
)

// Driver is the part of an ANT node the decoders use.
type Driver interface {
	Write(msg []byte) error
	Open(cfg ant.ChannelConfig) error
	Close(channel uint8) error
}

// Sensor decodes one speed sensor paired on a dedicated channel.
//
// When attached with device ID 0 the channel pairs with the first sensor it
// finds; until the stick reports the real ID, every broadcast triggers a
// channel ID request.
type Sensor struct {
	Hub

	driver           Driver
	circumference    float64
	rfFrequency      uint8
	channel          uint8
	deviceID         uint16
	transmissionType uint8
	attached         bool

	state       State
	revolutions uint32
}

// NewSensor creates a sensor decoder that opens its channel through driver.
func NewSensor(driver Driver) *Sensor {
	return &Sensor{
		driver:        driver,
		circumference: DefaultWheelCircumference,
		rfFrequency:   ant.DefaultRFFreq,
	}
}

// SetWheelCircumference sets the wheel circumference in meters.
func (s *Sensor) SetWheelCircumference(meters float64) {
	s.circumference = meters
}

// SetFrequency sets the RF frequency used when the channel is opened.
func (s *Sensor) SetFrequency(freq uint8) {
	s.rfFrequency = freq
}

// Attach opens a receive channel for the given device and starts with a
// fresh state. Device ID 0 pairs with any speed sensor in range.
func (s *Sensor) Attach(channel uint8, deviceID uint16) error {
	err := s.driver.Open(ant.ChannelConfig{
		Number:           channel,
		Network:          ant.PublicNetwork,
		DeviceID:         deviceID,
		DeviceType:       DeviceType,
		TransmissionType: TransmissionType,
		Period:           ChannelPeriod,
		SearchTimeout:    ant.SearchNever,
		RFFrequency:      s.rfFrequency,
	})
	if err != nil {
		return err
	}
	s.channel = channel
	s.deviceID = deviceID
	s.transmissionType = TransmissionType
	s.state = State{DeviceID: deviceID}
	s.revolutions = 0
	s.attached = true
	return nil
}

// Detach closes the channel. The last state stays readable.
func (s *Sensor) Detach() error {
	if !s.attached {
		return nil
	}
	s.attached = false
	return s.driver.Close(s.channel)
}

// Channel returns the channel number the sensor is attached to.
func (s *Sensor) Channel() uint8 { return s.channel }

// DeviceID returns the paired device ID, 0 while unresolved.
func (s *Sensor) DeviceID() uint16 { return s.deviceID }

// TransmissionType returns the transmission type reported by the sensor.
func (s *Sensor) TransmissionType() uint8 { return s.transmissionType }

// State returns a copy of the current state.
func (s *Sensor) State() State { return s.state }

// Decode handles one frame received from the stick.
func (s *Sensor) Decode(data []byte) {
	if len(data) <= ant.IndexChannelNum {
		monitoring.Logf("speed sensor: %v (%d bytes)", ErrMalformed, len(data))
		return
	}
	if !s.attached || data[ant.IndexChannelNum] != s.channel {
		return
	}

	switch data[ant.IndexMsgType] {
	case ant.MsgBroadcastData:
		if len(data) < ant.IndexMsgData+8 {
			monitoring.Logf("speed sensor: broadcast %v (%d bytes)", ErrMalformed, len(data))
			return
		}
		if s.deviceID == 0 {
			if err := s.driver.Write(ant.RequestMessage(s.channel, ant.MsgChannelID)); err != nil {
				monitoring.Logf("speed sensor: channel id request: %v", err)
			}
		}
		s.update(readingAt(data))

	case ant.MsgChannelID:
		if len(data) < ant.IndexMsgData+4 {
			monitoring.Logf("speed sensor: channel id %v (%d bytes)", ErrMalformed, len(data))
			return
		}
		s.deviceID = binary.LittleEndian.Uint16(data[ant.IndexMsgData:])
		s.transmissionType = data[ant.IndexMsgData+3]
		s.state.DeviceID = s.deviceID
		monitoring.Debugf("speed sensor: channel %d paired with device %d", s.channel, s.deviceID)
	}
}

func (s *Sensor) update(r Reading) {
	d, err := Apply(s.state, s.circumference, r, s.revolutions)
	if err != nil {
		monitoring.Logf("speed sensor %d: %v", s.state.DeviceID, err)
		return
	}
	s.state = d.State
	s.revolutions = d.TotalRevolutions
	if d.Fresh {
		s.Emit(s.state.sample())
	}
}

// readingAt extracts the counters from a broadcast data page:
// bytes 4-5: event time (uint16, little-endian)
// bytes 6-7: revolution count (uint16, little-endian)
func readingAt(data []byte) Reading {
	return Reading{
		EventTime:       binary.LittleEndian.Uint16(data[ant.IndexMsgData+4:]),
		RevolutionCount: binary.LittleEndian.Uint16(data[ant.IndexMsgData+6:]),
	}
}
