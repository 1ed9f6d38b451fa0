package ant

import "time"

// Frame layout of a serial ANT message:
//
//	+------+--------+------------+---------+-----------+----------+
//	| Sync | Length | Message ID | Channel | Data      | Checksum |
//	+------+--------+------------+---------+-----------+----------+
//	| 0xA4 | 1 byte | 1 byte     | 1 byte  | Length-1  | 1 byte   |
//	+------+--------+------------+---------+-----------+----------+
//
// Length counts the channel byte plus the data bytes.
const (
	Sync = 0xa4

	IndexSync        = 0
	IndexMsgLen      = 1
	IndexMsgType     = 2
	IndexChannelNum  = 3
	IndexMsgData     = 4
	IndexExtMsgBegin = 12 // channel byte + 8 payload bytes after the header

	HeaderSize    = 3  // sync, length, message id
	MaxDataLength = 32 // longest content accepted by the framer
)

// Message IDs
const (
	MsgChannelEvent      = 0x40 // channel response or event
	MsgAssignChannel     = 0x42
	MsgChannelPeriod     = 0x43
	MsgSearchTimeout     = 0x44
	MsgChannelFrequency  = 0x45
	MsgSetNetworkKey     = 0x46
	MsgResetSystem       = 0x4a
	MsgOpenChannel       = 0x4b
	MsgCloseChannel      = 0x4c
	MsgRequest           = 0x4d
	MsgBroadcastData     = 0x4e
	MsgAcknowledgedData  = 0x4f
	MsgBurstData         = 0x50
	MsgChannelID         = 0x51
	MsgCapabilities      = 0x54
	MsgOpenRxScanMode    = 0x5b
	MsgSerialNumber      = 0x61
	MsgLibConfig         = 0x6e
	MsgStartup           = 0x6f
	MsgVersion           = 0x3e
	MsgChannelStatus     = 0x52
	MsgEnableExtMessages = 0x66
)

// Channel types for MsgAssignChannel
const (
	ChannelTypeReceive  = 0x00
	ChannelTypeTransmit = 0x10
)

// Extended message flags (first byte after the payload)
const (
	ExtFlagChannelID = 0x80 // device number, device type, transmission type follow
	ExtFlagRSSI      = 0x40 // measurement type, RSSI, threshold follow
	ExtFlagTimestamp = 0x20

	ExtMeasurementRSSI = 0x20

	// Lib config flags enabling the channel ID and RSSI extensions.
	LibConfigChannelIDRSSI = ExtFlagChannelID | ExtFlagRSSI
)

// Channel response codes (third data byte of MsgChannelEvent)
const (
	ResponseNoError         = 0x00
	EventRxSearchTimeout    = 0x01
	EventRxFail             = 0x02
	EventTx                 = 0x03
	EventTransferRxFailed   = 0x04
	EventChannelClosed      = 0x07
	EventRxFailGoToSearch   = 0x08
	EventChannelCollision   = 0x09
	ChannelInWrongState     = 0x15
	ChannelNotOpened        = 0x16
	ChannelIDNotSet         = 0x18
	InvalidMessage          = 0x28
	InvalidNetworkNumber    = 0x29
	InvalidListID           = 0x30
	InvalidScanTxChannel    = 0x31
	InvalidParameterProvide = 0x33
)

// ANT+ network parameters
const (
	PublicNetwork   = 0
	DefaultRFFreq   = 57  // 2457 MHz, the ANT+ managed frequency
	SearchNever     = 255 // search timeout that never expires
	NetworkKeySize  = 8
	MaxChannels     = 8
	MaxRFFrequency  = 124
	ResetSettleTime = 500 * time.Millisecond
)
