package speed

// State is the last seen counter pair of one sensor and the values derived
// from it. Speed, Cadence and Distance are meaningful only once Valid is set.
type State struct {
	DeviceID uint16 // 0 while a wildcard channel is unresolved

	EventTime       uint16 // last raw event time, 1/1024 s
	RevolutionCount uint16 // last raw revolution count
	Seen            bool   // counters hold a real reading

	Speed    float64 // m/s
	Cadence  float64 // rpm
	Distance float64 // m
	Valid    bool
}

// ScanState is a State seen in scan mode, with the signal quality reported
// in the extended message.
type ScanState struct {
	State
	RSSI      int8 // dBm
	Threshold int8 // dBm
	HasRSSI   bool
}

// Sample is one decoded measurement handed to sinks.
type Sample struct {
	DeviceID uint16
	Speed    float64 // m/s
	Cadence  float64 // rpm
	Distance float64 // m

	// Set in scan mode once the stick has reported signal strength.
	RSSI      int8
	Threshold int8
	HasRSSI   bool
}

func (st State) sample() Sample {
	return Sample{
		DeviceID: st.DeviceID,
		Speed:    st.Speed,
		Cadence:  st.Cadence,
		Distance: st.Distance,
	}
}

func (st ScanState) sample() Sample {
	s := st.State.sample()
	s.RSSI = st.RSSI
	s.Threshold = st.Threshold
	s.HasRSSI = st.HasRSSI
	return s
}
