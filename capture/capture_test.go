package capture

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/sergev/antspeed/ant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 6, 1, 7, 30, 0, 0, time.UTC)

// usbmonPacket builds a 64-byte usbmon header followed by the transfer data.
func usbmonPacket(event byte, endpoint, device uint8, data []byte) []byte {
	hdr := make([]byte, 64)
	binary.LittleEndian.PutUint64(hdr[0:8], 0xffff8880deadbeef)
	hdr[8] = event
	hdr[9] = byte(layers.USBTransportTypeBulk)
	hdr[10] = endpoint
	hdr[11] = device
	binary.LittleEndian.PutUint16(hdr[12:14], 1)
	hdr[14] = '-' // no setup packet
	hdr[15] = 0   // data present
	binary.LittleEndian.PutUint32(hdr[32:36], uint32(len(data)))
	binary.LittleEndian.PutUint32(hdr[36:40], uint32(len(data)))
	return append(hdr, data...)
}

func writePcap(t *testing.T, linkType layers.LinkType, packets ...[]byte) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	w := pcapgo.NewWriter(&buf)
	require.NoError(t, w.WriteFileHeader(65536, linkType))
	for i, p := range packets {
		ci := gopacket.CaptureInfo{
			Timestamp:     start.Add(time.Duration(i) * 250 * time.Millisecond),
			CaptureLength: len(p),
			Length:        len(p),
		}
		require.NoError(t, w.WritePacket(ci, p))
	}
	return &buf
}

func TestReplayExtractsInboundFrames(t *testing.T) {
	first := ant.Encode(ant.MsgBroadcastData, 0, 0, 0, 0, 0, 0, 0, 1, 0)
	second := ant.Encode(ant.MsgBroadcastData, 0, 0, 0, 0, 0, 0, 4, 2, 0)
	event := ant.Encode(ant.MsgChannelEvent, 0, 0x01, ant.EventRxFail)

	// The second frame is split across two transfers
	split := len(second) / 2
	buf := writePcap(t, layers.LinkTypeLinuxUSB,
		usbmonPacket('S', 0x01, 5, ant.OpenChannel(0)), // host to stick
		usbmonPacket('C', 0x81, 5, append(append([]byte(nil), first...), event...)),
		usbmonPacket('C', 0x81, 5, second[:split]),
		usbmonPacket('C', 0x81, 5, second[split:]),
	)

	var frames []Frame
	stats, err := Replay(buf, Options{}, func(f Frame) {
		f.Data = append([]byte(nil), f.Data...)
		frames = append(frames, f)
	})
	require.NoError(t, err)

	assert.Equal(t, Stats{Packets: 4, Transfers: 3, Frames: 3}, stats)
	require.Len(t, frames, 3)
	assert.Equal(t, first, frames[0].Data)
	assert.Equal(t, event, frames[1].Data)
	assert.Equal(t, second, frames[2].Data)
	assert.Equal(t, uint8(5), frames[0].Device)
	assert.True(t, frames[0].Time.Equal(start.Add(250*time.Millisecond)))
	assert.True(t, frames[2].Time.Equal(start.Add(750*time.Millisecond)))
}

func TestReplayDeviceFilter(t *testing.T) {
	frame := ant.Encode(ant.MsgStartup, 0x00)
	buf := writePcap(t, layers.LinkTypeLinuxUSB,
		usbmonPacket('C', 0x81, 3, frame),
		usbmonPacket('C', 0x81, 7, frame),
	)

	var devices []uint8
	stats, err := Replay(buf, Options{Device: 7}, func(f Frame) {
		devices = append(devices, f.Device)
	})
	require.NoError(t, err)
	assert.Equal(t, []uint8{7}, devices)
	assert.Equal(t, 1, stats.Transfers)
}

func TestReplayCountsDroppedFrames(t *testing.T) {
	bad := ant.Encode(ant.MsgStartup, 0x00)
	bad[len(bad)-1] ^= 0xff
	buf := writePcap(t, layers.LinkTypeLinuxUSB, usbmonPacket('C', 0x81, 1, bad))

	stats, err := Replay(buf, Options{}, func(Frame) {
		t.Error("unexpected frame")
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Dropped)
}

func TestReplayRejectsOtherLinkTypes(t *testing.T) {
	buf := writePcap(t, layers.LinkTypeEthernet)
	_, err := Replay(buf, Options{}, func(Frame) {})
	assert.ErrorIs(t, err, ErrLinkType)
}

func TestReplayFile(t *testing.T) {
	buf := writePcap(t, layers.LinkTypeLinuxUSB, usbmonPacket('C', 0x81, 1, ant.Encode(ant.MsgStartup, 0x00)))
	path := filepath.Join(t.TempDir(), "ride.pcap")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	stats, err := ReplayFile(path, Options{}, func(Frame) {})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Frames)

	_, err = ReplayFile(filepath.Join(t.TempDir(), "missing.pcap"), Options{}, func(Frame) {})
	assert.Error(t, err)
}
