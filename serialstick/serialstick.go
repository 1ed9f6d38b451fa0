package serialstick

import (
	"fmt"
	"time"

	"github.com/sergev/antspeed/adapter"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

const (
	VendorID = 0x0fcf // Dynastream Innovations

	ProductIDUSB1 = 0x1004 // ANT USB1 stick, CP210x bridge
	ProductIDUSB2 = 0x1008 // ANT USB2 stick, kernel serial driver
	ProductIDUSBm = 0x1009 // ANT USB-m stick, kernel serial driver
)

// The USB1 stick runs its UART at a fixed rate; the others ignore it
const (
	BaudRateUSB1 = 115200
	BaudRateUSB2 = 57600
)

// ReadTimeout bounds a single read so callers can poll for cancellation
const ReadTimeout = 250 * time.Millisecond

// Client wraps a serial port connection to an ANT stick
type Client struct {
	port         serial.Port
	name         string
	productID    uint16
	product      string
	serialNumber string
}

func init() {
	adapter.RegisterAdapter("ANT USB1 stick", VendorID, ProductIDUSB1, NewClient)
	adapter.RegisterAdapter("ANT USB2 stick", VendorID, ProductIDUSB2, NewClient)
	adapter.RegisterAdapter("ANT USB-m stick", VendorID, ProductIDUSBm, NewClient)
}

// baudRate selects the line speed for a stick model
func baudRate(productID uint16) int {
	if productID == ProductIDUSB1 {
		return BaudRateUSB1
	}
	return BaudRateUSB2
}

// NewClient opens the serial port of an ANT stick described by portDetails
func NewClient(portDetails *enumerator.PortDetails) (adapter.Stick, error) {
	var pid uint64
	if _, err := fmt.Sscanf(portDetails.PID, "%x", &pid); err != nil {
		return nil, fmt.Errorf("bad product id %q: %w", portDetails.PID, err)
	}

	mode := &serial.Mode{
		BaudRate: baudRate(uint16(pid)),
	}
	port, err := serial.Open(portDetails.Name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portDetails.Name, err)
	}
	if err := port.SetReadTimeout(ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", portDetails.Name, err)
	}

	// Discard whatever the stick sent before we opened it
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to flush %s: %w", portDetails.Name, err)
	}

	return &Client{
		port:         port,
		name:         portDetails.Name,
		productID:    uint16(pid),
		product:      portDetails.Product,
		serialNumber: portDetails.SerialNumber,
	}, nil
}

// Read returns 0 bytes and no error when the read timeout expires
func (c *Client) Read(p []byte) (int, error) {
	return c.port.Read(p)
}

func (c *Client) Write(p []byte) (int, error) {
	return c.port.Write(p)
}

// PrintStatus prints port information to stdout
func (c *Client) PrintStatus() {
	model := "Unknown"
	switch c.productID {
	case ProductIDUSB1:
		model = "ANT USB1"
	case ProductIDUSB2:
		model = "ANT USB2"
	case ProductIDUSBm:
		model = "ANT USB-m"
	}
	fmt.Printf("ANT Stick: %s (VID=0x%04X PID=0x%04X)\n", model, VendorID, c.productID)
	fmt.Printf("Port: %s, %d baud\n", c.name, baudRate(c.productID))
	if c.product != "" {
		fmt.Printf("Product: %s\n", c.product)
	}
	if c.serialNumber != "" {
		fmt.Printf("USB Serial Number: %s\n", c.serialNumber)
	}
}

// Close closes the serial port connection
func (c *Client) Close() error {
	if c.port != nil {
		return c.port.Close()
	}
	return nil
}
