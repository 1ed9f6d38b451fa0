package ant

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrShortMessage = errors.New("message too short")
	ErrChecksum     = errors.New("checksum mismatch")
	ErrTimeout      = errors.New("timed out waiting for response")
)

// NetworkKey is the 8-byte key assigned to an ANT network.
type NetworkKey [NetworkKeySize]byte

// ChannelConfig describes a receive channel to open on the stick.
type ChannelConfig struct {
	Number           uint8
	Network          uint8
	DeviceID         uint16 // 0 is a wildcard
	DeviceType       uint8  // 0 is a wildcard
	TransmissionType uint8  // 0 is a wildcard
	Period           uint16 // in 1/32768 s
	SearchTimeout    uint8
	RFFrequency      uint8 // offset from 2400 MHz
	Scan             bool  // open in continuous rx scan mode
}

// Checksum returns the XOR of all bytes.
func Checksum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum ^= v
	}
	return sum
}

// Encode builds a complete frame for the given message ID and content.
func Encode(id byte, content ...byte) []byte {
	msg := make([]byte, 0, HeaderSize+len(content)+1)
	msg = append(msg, Sync, byte(len(content)), id)
	msg = append(msg, content...)
	return append(msg, Checksum(msg))
}

// Validate checks the sync byte, declared length and checksum of a frame.
func Validate(msg []byte) error {
	if len(msg) < HeaderSize+1 {
		return ErrShortMessage
	}
	if msg[IndexSync] != Sync {
		return fmt.Errorf("bad sync byte 0x%02x", msg[IndexSync])
	}
	size := HeaderSize + int(msg[IndexMsgLen]) + 1
	if len(msg) < size {
		return ErrShortMessage
	}
	if Checksum(msg[:size-1]) != msg[size-1] {
		return ErrChecksum
	}
	return nil
}

func ResetSystem() []byte {
	return Encode(MsgResetSystem, 0x00)
}

func SetNetworkKey(network uint8, key NetworkKey) []byte {
	return Encode(MsgSetNetworkKey, append([]byte{network}, key[:]...)...)
}

func AssignChannel(channel, channelType, network uint8) []byte {
	return Encode(MsgAssignChannel, channel, channelType, network)
}

func SetChannelID(channel uint8, deviceID uint16, deviceType, transmissionType uint8) []byte {
	id := make([]byte, 2)
	binary.LittleEndian.PutUint16(id, deviceID)
	return Encode(MsgChannelID, channel, id[0], id[1], deviceType, transmissionType)
}

func SetChannelPeriod(channel uint8, period uint16) []byte {
	p := make([]byte, 2)
	binary.LittleEndian.PutUint16(p, period)
	return Encode(MsgChannelPeriod, channel, p[0], p[1])
}

func SetSearchTimeout(channel, timeout uint8) []byte {
	return Encode(MsgSearchTimeout, channel, timeout)
}

func SetChannelRFFreq(channel, freq uint8) []byte {
	return Encode(MsgChannelFrequency, channel, freq)
}

// LibConfig enables extended data on received messages.
func LibConfig(flags uint8) []byte {
	return Encode(MsgLibConfig, 0x00, flags)
}

func OpenChannel(channel uint8) []byte {
	return Encode(MsgOpenChannel, channel)
}

func OpenRxScanMode() []byte {
	return Encode(MsgOpenRxScanMode, 0x00)
}

func CloseChannel(channel uint8) []byte {
	return Encode(MsgCloseChannel, channel)
}

// RequestMessage asks the stick to send the message with the given ID
// for a channel, e.g. MsgChannelID to resolve a wildcard pairing.
func RequestMessage(channel, id uint8) []byte {
	return Encode(MsgRequest, channel, id)
}

// OpenSequence returns the messages that configure and open a channel.
func OpenSequence(cfg ChannelConfig, key NetworkKey) [][]byte {
	seq := [][]byte{
		SetNetworkKey(cfg.Network, key),
		AssignChannel(cfg.Number, ChannelTypeReceive, cfg.Network),
		SetChannelID(cfg.Number, cfg.DeviceID, cfg.DeviceType, cfg.TransmissionType),
	}
	if cfg.Scan {
		// Scan mode listens continuously, the period and timeout do not apply.
		return append(seq,
			SetChannelRFFreq(cfg.Number, cfg.RFFrequency),
			LibConfig(LibConfigChannelIDRSSI),
			OpenRxScanMode(),
		)
	}
	return append(seq,
		SetChannelPeriod(cfg.Number, cfg.Period),
		SetSearchTimeout(cfg.Number, cfg.SearchTimeout),
		SetChannelRFFreq(cfg.Number, cfg.RFFrequency),
		OpenChannel(cfg.Number),
	)
}

// ChannelEvent is a decoded MsgChannelEvent frame.
type ChannelEvent struct {
	Channel   uint8
	MessageID uint8 // 0x01 for RF events, otherwise the message being answered
	Code      uint8
}

// ParseChannelEvent decodes a channel response or event frame.
func ParseChannelEvent(msg []byte) (ChannelEvent, error) {
	if len(msg) < IndexMsgData+2 || msg[IndexMsgType] != MsgChannelEvent {
		return ChannelEvent{}, ErrShortMessage
	}
	return ChannelEvent{
		Channel:   msg[IndexChannelNum],
		MessageID: msg[IndexMsgData],
		Code:      msg[IndexMsgData+1],
	}, nil
}

// IsError reports whether the event is a failed command response.
func (e ChannelEvent) IsError() bool {
	return e.MessageID != 0x01 && e.Code != ResponseNoError
}

func (e ChannelEvent) String() string {
	if e.MessageID == 0x01 {
		return fmt.Sprintf("channel %d: event %s", e.Channel, codeName(e.Code))
	}
	return fmt.Sprintf("channel %d: response to 0x%02x: %s", e.Channel, e.MessageID, codeName(e.Code))
}

func codeName(code uint8) string {
	switch code {
	case ResponseNoError:
		return "ok"
	case EventRxSearchTimeout:
		return "search timeout"
	case EventRxFail:
		return "rx fail"
	case EventTx:
		return "tx"
	case EventTransferRxFailed:
		return "transfer rx failed"
	case EventChannelClosed:
		return "channel closed"
	case EventRxFailGoToSearch:
		return "rx fail, back to search"
	case EventChannelCollision:
		return "channel collision"
	case ChannelInWrongState:
		return "channel in wrong state"
	case ChannelNotOpened:
		return "channel not opened"
	case ChannelIDNotSet:
		return "channel id not set"
	case InvalidMessage:
		return "invalid message"
	case InvalidNetworkNumber:
		return "invalid network number"
	case InvalidScanTxChannel:
		return "invalid scan tx channel"
	case InvalidParameterProvide:
		return "invalid parameter"
	}
	return fmt.Sprintf("code 0x%02x", code)
}
