package ant

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
)

// Capabilities is the reply to a MsgCapabilities request.
type Capabilities struct {
	MaxChannels      uint8
	MaxNetworks      uint8
	StandardOptions  uint8
	AdvancedOptions  uint8
	AdvancedOptions2 uint8
}

// Standard option bits: a set bit means the feature is missing.
const (
	NoReceiveChannels  = 1 << 0
	NoTransmitChannels = 1 << 1
	NoReceiveMessages  = 1 << 2
	NoTransmitMessages = 1 << 3
	NoAckedMessages    = 1 << 4
	NoBurstMessages    = 1 << 5
)

// Capabilities queries the channel and network counts of the stick.
func (n *Node) Capabilities(ctx context.Context) (Capabilities, error) {
	var caps Capabilities
	reply, err := n.Request(ctx, 0, MsgCapabilities)
	if err != nil {
		return caps, err
	}

	// The channel byte slot carries max channels in this reply:
	// byte 3: max channels
	// byte 4: max networks
	// byte 5: standard options
	// byte 6: advanced options
	// byte 7: advanced options 2 (optional)
	if len(reply) < IndexMsgData+4 {
		return caps, fmt.Errorf("capabilities reply: %w", ErrShortMessage)
	}
	caps.MaxChannels = reply[IndexChannelNum]
	caps.MaxNetworks = reply[IndexMsgData]
	caps.StandardOptions = reply[IndexMsgData+1]
	caps.AdvancedOptions = reply[IndexMsgData+2]
	if int(reply[IndexMsgLen]) >= 5 {
		caps.AdvancedOptions2 = reply[IndexMsgData+3]
	}
	return caps, nil
}

// Version returns the firmware version string of the stick.
func (n *Node) Version(ctx context.Context) (string, error) {
	reply, err := n.Request(ctx, 0, MsgVersion)
	if err != nil {
		return "", err
	}
	end := HeaderSize + int(reply[IndexMsgLen])
	text := reply[IndexChannelNum:end]
	if i := bytes.IndexByte(text, 0); i >= 0 {
		text = text[:i]
	}
	return string(text), nil
}

// SerialNumber returns the 4-byte serial number of the stick.
func (n *Node) SerialNumber(ctx context.Context) (uint32, error) {
	reply, err := n.Request(ctx, 0, MsgSerialNumber)
	if err != nil {
		return 0, err
	}
	if reply[IndexMsgLen] < 4 {
		return 0, fmt.Errorf("serial number reply: %w", ErrShortMessage)
	}
	return binary.LittleEndian.Uint32(reply[IndexChannelNum : IndexChannelNum+4]), nil
}
