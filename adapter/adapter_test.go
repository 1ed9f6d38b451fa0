package adapter

import (
	"context"
	"fmt"
	"testing"

	"github.com/sergev/antspeed/ant"
	"github.com/sergev/antspeed/config"
	"github.com/sergev/antspeed/monitoring"
	"github.com/sergev/antspeed/speed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
)

func captureLogs(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	logf := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	verbose := monitoring.Verbose
	t.Cleanup(func() {
		monitoring.SetLogger(logf)
		monitoring.Verbose = verbose
	})
	return &lines
}

func broadcast(channel uint8, eventTime, revs uint16) []byte {
	return ant.Encode(ant.MsgBroadcastData, channel, 0, 0, 0, 0,
		byte(eventTime), byte(eventTime>>8), byte(revs), byte(revs>>8))
}

func TestFormatSample(t *testing.T) {
	s := speed.Sample{DeviceID: 12345, Speed: 10, Cadence: 90, Distance: 1500}
	assert.Equal(t, "Device 12345:   36.0 km/h    90 rpm     1.500 km", formatSample(s, "kph"))
	assert.Equal(t, "Device 12345:   10.0 m/s     90 rpm  1500.000 m", formatSample(s, "mps"))

	s.HasRSSI = true
	s.RSSI = -60
	s.Threshold = -90
	assert.Contains(t, formatSample(s, "mph"), " mph ")
	assert.Contains(t, formatSample(s, "mph"), "RSSI -60 dBm (threshold -90)")
}

func TestBindDeviceID(t *testing.T) {
	saved := config.DeviceID
	t.Cleanup(func() { config.DeviceID = saved })
	config.DeviceID = 4242

	id, err := bindDeviceID(nil)
	require.NoError(t, err)
	assert.Equal(t, uint16(4242), id)

	id, err = bindDeviceID([]string{"0xbeef"})
	require.NoError(t, err)
	assert.Equal(t, uint16(0xbeef), id)

	id, err = bindDeviceID([]string{"17"})
	require.NoError(t, err)
	assert.Equal(t, uint16(17), id)

	_, err = bindDeviceID([]string{"65536"})
	assert.Error(t, err)
	_, err = bindDeviceID([]string{"sensor"})
	assert.Error(t, err)
}

func TestWithEventsRoutesChannelEvents(t *testing.T) {
	logs := captureLogs(t)
	monitoring.Verbose = false

	var handled [][]byte
	handle := withEvents(func(msg []byte) { handled = append(handled, msg) })

	data := broadcast(0, 1, 1)
	handle(data)
	handle(ant.Encode(ant.MsgChannelEvent, 0, 0x01, ant.EventRxFail))
	handle(ant.Encode(ant.MsgChannelEvent, 2, ant.MsgOpenChannel, ant.ChannelInWrongState))

	require.Len(t, handled, 1)
	assert.Equal(t, data, handled[0])
	require.Len(t, *logs, 1)
	assert.Contains(t, (*logs)[0], "channel 2: response to 0x4b")

	monitoring.Verbose = true
	handle(ant.Encode(ant.MsgChannelEvent, 0, 0x01, ant.EventRxFail))
	assert.Len(t, *logs, 2)
}

func TestReplayDecoderBind(t *testing.T) {
	saved := config.WheelCircumference
	t.Cleanup(func() { config.WheelCircumference = saved })
	config.WheelCircumference = 2

	dec, err := newReplayDecoder("bind", 1)
	require.NoError(t, err)

	var samples []speed.Sample
	dec.Subscribe(func(s speed.Sample) { samples = append(samples, s) })

	dec.Decode(broadcast(0, 1024, 9)) // other channel
	dec.Decode(broadcast(1, 0, 0))
	dec.Decode(broadcast(1, 1024, 5))

	require.Len(t, samples, 1)
	assert.InDelta(t, 10, samples[0].Speed, 1e-9)
	assert.InDelta(t, 300, samples[0].Cadence, 1e-9)
	assert.InDelta(t, 10, samples[0].Distance, 1e-9)
}

func TestReplayDecoderModes(t *testing.T) {
	dec, err := newReplayDecoder("scan", 0)
	require.NoError(t, err)
	assert.IsType(t, &speed.Scanner{}, dec)

	_, err = newReplayDecoder("listen", 0)
	assert.Error(t, err)
}

func TestRegistryMatching(t *testing.T) {
	saved := registeredAdapters
	t.Cleanup(func() { registeredAdapters = saved })
	registeredAdapters = nil

	factory := func(*enumerator.PortDetails) (Stick, error) { return nil, nil }
	RegisterAdapter("usb1", 0x0fcf, 0x1004, factory)
	RegisterAdapter("usb2", 0x0fcf, 0x1008, factory)
	RegisterUSBAdapter("libusb", factory)

	found := matchPort(0x0fcf, 0x1008)
	require.Len(t, found, 1)
	assert.Equal(t, "usb2", found[0].Name)
	assert.Empty(t, matchPort(0x1209, 0x4d69))
	assert.Empty(t, matchPort(0, 0))

	usb := usbAdapters()
	require.Len(t, usb, 1)
	assert.Equal(t, "libusb", usb[0].Name)
}

type countingHub struct{ sinks []speed.Sink }

func (h *countingHub) Subscribe(fn speed.Sink) string {
	h.sinks = append(h.sinks, fn)
	return fmt.Sprint(len(h.sinks))
}

func TestStartPublishers(t *testing.T) {
	hub := &countingHub{}
	stop, err := startPublishers(context.Background(), hub, "", "", "")
	require.NoError(t, err)
	stop()
	assert.Empty(t, hub.sinks)

	stop, err = startPublishers(context.Background(), hub, "127.0.0.1:0", "", "")
	require.NoError(t, err)
	require.Len(t, hub.sinks, 1)
	assert.NotPanics(t, func() { hub.sinks[0](speed.Sample{DeviceID: 1}) })
	stop()

	_, err = startPublishers(context.Background(), hub, "256.0.0.1:http", "", "")
	assert.Error(t, err)
}
