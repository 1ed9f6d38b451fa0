package speed

import (
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sergev/antspeed/ant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// extFrame builds a scan mode frame with channel ID and, when withRSSI is set,
// an RSSI block.
func extFrame(msgType uint8, deviceID uint16, deviceType uint8, eventTime, revolutionCount uint16, withRSSI bool, rssi, threshold int8) []byte {
	content := make([]byte, 9)
	binary.LittleEndian.PutUint16(content[5:], eventTime)
	binary.LittleEndian.PutUint16(content[7:], revolutionCount)

	flags := byte(ant.ExtFlagChannelID)
	if withRSSI {
		flags |= ant.ExtFlagRSSI
	}
	id := make([]byte, 2)
	binary.LittleEndian.PutUint16(id, deviceID)
	content = append(content, flags, id[0], id[1], deviceType, 0x01)
	if withRSSI {
		content = append(content, ant.ExtMeasurementRSSI, byte(rssi), byte(threshold))
	}
	return ant.Encode(msgType, content...)
}

func speedFrame(deviceID, eventTime, revolutionCount uint16) []byte {
	return extFrame(ant.MsgBroadcastData, deviceID, DeviceType, eventTime, revolutionCount, false, 0, 0)
}

func TestScannerScanOpensRxScanMode(t *testing.T) {
	drv := &fakeDriver{}
	s := NewScanner(drv)
	require.NoError(t, s.Scan())
	require.Len(t, drv.opened, 1)
	assert.True(t, drv.opened[0].Scan)
	assert.Equal(t, uint8(ant.DefaultRFFreq), drv.opened[0].RFFrequency)
	assert.Zero(t, drv.opened[0].DeviceID)

	require.NoError(t, s.Stop())
	assert.Equal(t, []uint8{0}, drv.closed)
}

func TestScannerDecodesSpeed(t *testing.T) {
	s := NewScanner(&fakeDriver{})
	samples := collect(&s.Hub)

	s.Decode(speedFrame(100, 0, 0))
	s.Decode(speedFrame(100, 1024, 2))

	require.Len(t, *samples, 1)
	got := (*samples)[0]
	assert.Equal(t, uint16(100), got.DeviceID)
	assert.InDelta(t, 4.236, got.Speed, 1e-9)
	assert.InDelta(t, 120.0, got.Cadence, 1e-9)
	assert.InDelta(t, 4.236, got.Distance, 1e-9)
}

func TestScannerDeviceIsolation(t *testing.T) {
	s := NewScanner(&fakeDriver{})
	samples := collect(&s.Hub)

	s.Decode(speedFrame(1, 0, 0))
	s.Decode(speedFrame(2, 5000, 300))
	s.Decode(speedFrame(1, 1024, 2))

	before, ok := s.State(2)
	require.True(t, ok)

	s.Decode(speedFrame(1, 2048, 4))
	s.Decode(speedFrame(1, 3072, 6))

	after, ok := s.State(2)
	require.True(t, ok)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("device 2 changed by device 1 traffic (-before +after):\n%s", diff)
	}
	assert.False(t, after.Valid)

	one, ok := s.State(1)
	require.True(t, ok)
	assert.InDelta(t, 6*DefaultWheelCircumference, one.Distance, 1e-9)

	// Distance totals are kept per device
	s.Decode(speedFrame(2, 6024, 301))
	two, _ := s.State(2)
	assert.InDelta(t, DefaultWheelCircumference, two.Distance, 1e-9)

	assert.Equal(t, []uint16{1, 2}, s.Devices())
	assert.Len(t, *samples, 4)
}

func TestScannerMalformed(t *testing.T) {
	logs := captureLogs(t)
	s := NewScanner(&fakeDriver{})
	samples := collect(&s.Hub)

	short := speedFrame(1, 0, 0)[:MinScanLength-1]
	noFlag := speedFrame(1, 0, 0)
	noFlag[ant.IndexExtMsgBegin] = 0

	assert.NotPanics(t, func() {
		s.Decode(nil)
		s.Decode(short)
		s.Decode(noFlag)
	})
	assert.Empty(t, s.Devices())
	assert.Empty(t, *samples)
	assert.Len(t, *logs, 3)
}

func TestScannerIgnoresOtherProfiles(t *testing.T) {
	logs := captureLogs(t)
	s := NewScanner(&fakeDriver{})
	samples := collect(&s.Hub)

	const heartRate = 0x78
	s.Decode(extFrame(ant.MsgBroadcastData, 9, heartRate, 0, 0, true, -60, -90))
	s.Decode(extFrame(ant.MsgBroadcastData, 9, heartRate, 1024, 3, true, -60, -90))

	assert.Empty(t, s.Devices())
	assert.Empty(t, *samples)
	assert.Empty(t, *logs)
}

func TestScannerRSSI(t *testing.T) {
	s := NewScanner(&fakeDriver{})
	samples := collect(&s.Hub)

	// Signal strength is taken from any message type
	s.Decode(extFrame(ant.MsgAcknowledgedData, 42, DeviceType, 0, 0, true, -71, -96))
	st, ok := s.State(42)
	require.True(t, ok)
	assert.True(t, st.HasRSSI)
	assert.Equal(t, int8(-71), st.RSSI)
	assert.Equal(t, int8(-96), st.Threshold)
	assert.False(t, st.Seen, "acknowledged data does not carry counters to decode")

	s.Decode(speedFrame(42, 0, 0))
	s.Decode(extFrame(ant.MsgBroadcastData, 42, DeviceType, 1024, 1, true, -65, -96))

	require.Len(t, *samples, 1)
	assert.True(t, (*samples)[0].HasRSSI)
	assert.Equal(t, int8(-65), (*samples)[0].RSSI)
	assert.Equal(t, int8(-96), (*samples)[0].Threshold)

	// A frame without the RSSI block keeps the last values
	s.Decode(speedFrame(42, 2048, 2))
	require.Len(t, *samples, 2)
	assert.Equal(t, int8(-65), (*samples)[1].RSSI)
}

func TestScannerForget(t *testing.T) {
	s := NewScanner(&fakeDriver{})
	s.Decode(speedFrame(3, 0, 0))
	s.Decode(speedFrame(3, 1024, 1))

	s.Forget(3)
	_, ok := s.State(3)
	assert.False(t, ok)

	// The next message starts from scratch
	samples := collect(&s.Hub)
	s.Decode(speedFrame(3, 2048, 2))
	assert.Empty(t, *samples)
	st, ok := s.State(3)
	require.True(t, ok)
	assert.True(t, st.Seen)
	assert.False(t, st.Valid)
}
