package speed

import (
	"encoding/binary"
	"maps"
	"slices"

	"github.com/sergev/antspeed/ant"
	"github.com/sergev/antspeed/monitoring"
)

// Offsets inside the extended data that follows the 8-byte payload.
const (
	extFlags       = 0
	extDeviceID    = 1 // uint16, little-endian
	extDeviceType  = 3
	extMeasurement = 5
	extRSSI        = 6
	extThreshold   = 7

	// MinScanLength covers the flags byte and the channel ID block.
	MinScanLength = ant.IndexExtMsgBegin + 5
)

// Scanner decodes every speed sensor heard while the stick is in rx scan mode.
// States are kept per device ID for the lifetime of the scanner.
type Scanner struct {
	Hub

	driver        Driver
	circumference float64
	rfFrequency   uint8
	tracks        map[uint16]*track
}

type track struct {
	state       ScanState
	revolutions uint32
}

// NewScanner creates a scan mode decoder that opens scan mode through driver.
func NewScanner(driver Driver) *Scanner {
	return &Scanner{
		driver:        driver,
		circumference: DefaultWheelCircumference,
		rfFrequency:   ant.DefaultRFFreq,
		tracks:        make(map[uint16]*track),
	}
}

// SetWheelCircumference sets the wheel circumference in meters.
// It applies to all devices.
func (s *Scanner) SetWheelCircumference(meters float64) {
	s.circumference = meters
}

// SetFrequency sets the RF frequency used when scan mode is opened.
func (s *Scanner) SetFrequency(freq uint8) {
	s.rfFrequency = freq
}

// Scan puts the stick into rx scan mode with a wildcard channel ID.
func (s *Scanner) Scan() error {
	return s.driver.Open(ant.ChannelConfig{
		Number:      0,
		Network:     ant.PublicNetwork,
		RFFrequency: s.rfFrequency,
		Scan:        true,
	})
}

// Stop closes scan mode.
func (s *Scanner) Stop() error {
	return s.driver.Close(0)
}

// Devices returns the IDs of all sensors seen so far, in ascending order.
func (s *Scanner) Devices() []uint16 {
	return slices.Sorted(maps.Keys(s.tracks))
}

// State returns a copy of the state of one device.
func (s *Scanner) State(deviceID uint16) (ScanState, bool) {
	t, ok := s.tracks[deviceID]
	if !ok {
		return ScanState{}, false
	}
	return t.state, true
}

// Forget drops the state of a device. A later message starts it afresh.
func (s *Scanner) Forget(deviceID uint16) {
	delete(s.tracks, deviceID)
}

// Decode handles one extended frame received in scan mode.
func (s *Scanner) Decode(data []byte) {
	if len(data) < MinScanLength || data[ant.IndexExtMsgBegin+extFlags]&ant.ExtFlagChannelID == 0 {
		monitoring.Logf("speed scanner: %v (%d bytes)", ErrMalformed, len(data))
		return
	}
	ext := data[ant.IndexExtMsgBegin:]
	if end := ant.HeaderSize + int(data[ant.IndexMsgLen]); end >= MinScanLength && end < len(data) {
		// Leave out the checksum
		ext = data[ant.IndexExtMsgBegin:end]
	}

	deviceID := binary.LittleEndian.Uint16(ext[extDeviceID:])
	if ext[extDeviceType] != DeviceType {
		return
	}

	t, ok := s.tracks[deviceID]
	if !ok {
		t = &track{state: ScanState{State: State{DeviceID: deviceID}}}
		s.tracks[deviceID] = t
		monitoring.Debugf("speed scanner: new device %d", deviceID)
	}

	if ext[extFlags]&ant.ExtFlagRSSI != 0 && len(ext) > extThreshold &&
		ext[extMeasurement] == ant.ExtMeasurementRSSI {
		t.state.RSSI = int8(ext[extRSSI])
		t.state.Threshold = int8(ext[extThreshold])
		t.state.HasRSSI = true
	}

	if data[ant.IndexMsgType] != ant.MsgBroadcastData {
		return
	}
	d, err := Apply(t.state.State, s.circumference, readingAt(data), t.revolutions)
	if err != nil {
		monitoring.Logf("speed scanner %d: %v", deviceID, err)
		return
	}
	t.state.State = d.State
	t.revolutions = d.TotalRevolutions
	if d.Fresh {
		s.Emit(t.state.sample())
	}
}
