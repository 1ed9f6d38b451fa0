// Package capture replays ANT stick traffic recorded with usbmon
// (e.g. "tcpdump -i usbmon1 -w ride.pcap" or Wireshark) so the decoders can
// be run offline.
package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/sergev/antspeed/ant"
)

var ErrLinkType = errors.New("not a usbmon capture")

// Frame is one ANT frame recovered from a capture.
type Frame struct {
	Time   time.Time
	Device uint8 // USB device address
	Data   []byte
}

// Stats counts what a replay went through.
type Stats struct {
	Packets   int // all packets in the file
	Transfers int // completed bulk IN transfers with data
	Frames    int // ANT frames handed to the callback
	Dropped   int // frames rejected by the framer
}

// Options narrows a replay.
type Options struct {
	Device uint8 // USB device address to follow, 0 for all
}

// ReplayFile opens a pcap file and replays it.
func ReplayFile(path string, opts Options, handle func(Frame)) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to open capture: %w", err)
	}
	defer f.Close()
	return Replay(f, opts, handle)
}

// Replay reads a Linux USB pcap stream and hands every ANT frame received
// from the stick to handle, in capture order.
func Replay(r io.Reader, opts Options, handle func(Frame)) (Stats, error) {
	var stats Stats

	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return stats, fmt.Errorf("failed to read pcap header: %w", err)
	}
	if reader.LinkType() != layers.LinkTypeLinuxUSB {
		return stats, fmt.Errorf("%w: link type %v", ErrLinkType, reader.LinkType())
	}

	framers := make(map[uint8]*ant.Framer)
	source := gopacket.NewPacketSource(reader, reader.LinkType())
	for {
		packet, err := source.NextPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("failed to read packet %d: %w", stats.Packets+1, err)
		}
		stats.Packets++

		usb, ok := packet.Layer(layers.LayerTypeUSB).(*layers.USB)
		if !ok {
			continue
		}
		if usb.EventType != layers.USBEventTypeComplete ||
			usb.TransferType != layers.USBTransportTypeBulk ||
			usb.Direction != layers.USBDirectionTypeIn {
			continue
		}
		if opts.Device != 0 && usb.DeviceAddress != opts.Device {
			continue
		}

		// Transfer data sits at the end of the packet, after the usbmon header
		raw := packet.Data()
		n := int(usb.UrbDataLength)
		if n == 0 || n > len(raw) {
			continue
		}
		stats.Transfers++

		framer, ok := framers[usb.DeviceAddress]
		if !ok {
			framer = &ant.Framer{}
			framers[usb.DeviceAddress] = framer
		}
		ts := packet.Metadata().Timestamp
		framer.Feed(raw[len(raw)-n:], func(msg []byte) {
			stats.Frames++
			handle(Frame{Time: ts, Device: usb.DeviceAddress, Data: msg})
		})
	}

	for _, framer := range framers {
		stats.Dropped += framer.Dropped
	}
	return stats, nil
}
