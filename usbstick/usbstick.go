package usbstick

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"
	"github.com/sergev/antspeed/adapter"
	"go.bug.st/serial/enumerator"
)

const (
	VendorID = 0x0fcf // Dynastream Innovations

	ProductIDUSB2 = 0x1008 // ANT USB2 stick
	ProductIDUSBm = 0x1009 // ANT USB-m stick

	Config    = 1
	Interface = 0

	EndpointBulkOut = 0x01
	EndpointBulkIn  = 0x81

	// ReadTimeout bounds a single bulk read so callers can poll for cancellation
	ReadTimeout = 250 * time.Millisecond
)

// Client wraps a USB connection to an ANT stick
type Client struct {
	ctx     *gousb.Context
	dev     *gousb.Device
	intf    *gousb.Interface
	done    func()
	bulkOut *gousb.OutEndpoint
	bulkIn  *gousb.InEndpoint

	productID    uint16
	manufacturer string
	product      string
	serialNumber string
}

func init() {
	adapter.RegisterUSBAdapter("ANT USB stick", NewClient)
}

// isANTStick reports whether a device descriptor belongs to a supported stick
func isANTStick(desc *gousb.DeviceDesc) bool {
	if uint16(desc.Vendor) != VendorID {
		return false
	}
	switch uint16(desc.Product) {
	case ProductIDUSB2, ProductIDUSBm:
		return true
	}
	return false
}

// NewClient creates a new ANT stick client using USB communication
// The portDetails parameter is ignored as the stick is opened directly
func NewClient(portDetails *enumerator.PortDetails) (adapter.Stick, error) {
	ctx := gousb.NewContext()

	devs, err := ctx.OpenDevices(isANTStick)
	if err != nil && len(devs) == 0 {
		ctx.Close()
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}
	if len(devs) == 0 {
		ctx.Close()
		return nil, fmt.Errorf("ANT stick not found (VID=0x%04X PID=0x%04X or 0x%04X)", VendorID, ProductIDUSB2, ProductIDUSBm)
	}

	// Use the first matching device
	dev := devs[0]
	// Close any additional devices if multiple were found
	for i := 1; i < len(devs); i++ {
		devs[i].Close()
	}

	// The kernel may have bound a serial driver to the stick
	if err := dev.SetAutoDetach(true); err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("failed to enable kernel driver auto-detach: %w", err)
	}

	cfg, err := dev.Config(Config)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("failed to get config %d: %w", Config, err)
	}

	intf, err := cfg.Interface(Interface, 0)
	if err != nil {
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("failed to claim interface %d: %w", Interface, err)
	}

	// Create done function that closes interface and config
	done := func() {
		intf.Close()
		cfg.Close()
	}

	bulkOut, err := intf.OutEndpoint(EndpointBulkOut)
	if err != nil {
		done()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("failed to open bulk out endpoint: %w", err)
	}

	bulkIn, err := intf.InEndpoint(EndpointBulkIn & 0x0f)
	if err != nil {
		done()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("failed to open bulk in endpoint: %w", err)
	}

	client := &Client{
		ctx:       ctx,
		dev:       dev,
		intf:      intf,
		done:      done,
		bulkOut:   bulkOut,
		bulkIn:    bulkIn,
		productID: uint16(dev.Desc.Product),
	}

	// String descriptors are informational only
	client.manufacturer, _ = dev.Manufacturer()
	client.product, _ = dev.Product()
	client.serialNumber, _ = dev.SerialNumber()

	return client, nil
}

// Read receives bytes from the bulk in endpoint.
// It returns 0 bytes and no error when nothing arrives within ReadTimeout.
func (c *Client) Read(p []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), ReadTimeout)
	defer cancel()

	n, err := c.bulkIn.ReadContext(ctx, p)
	if err != nil && ctx.Err() != nil {
		return n, nil
	}
	return n, err
}

// Write sends bytes to the bulk out endpoint
func (c *Client) Write(p []byte) (int, error) {
	return c.bulkOut.Write(p)
}

// PrintStatus prints USB descriptor information to stdout
func (c *Client) PrintStatus() {
	model := "Unknown"
	switch c.productID {
	case ProductIDUSB2:
		model = "ANT USB2"
	case ProductIDUSBm:
		model = "ANT USB-m"
	}

	fmt.Printf("ANT Stick: %s (VID=0x%04X PID=0x%04X)\n", model, VendorID, c.productID)
	if c.manufacturer != "" {
		fmt.Printf("Manufacturer: %s\n", c.manufacturer)
	}
	if c.product != "" {
		fmt.Printf("Product: %s\n", c.product)
	}
	if c.serialNumber != "" {
		fmt.Printf("USB Serial Number: %s\n", c.serialNumber)
	}
	fmt.Printf("Transport: libusb, bus %d address %d\n", c.dev.Desc.Bus, c.dev.Desc.Address)
}

// Close closes the USB connection
func (c *Client) Close() error {
	if c.done != nil {
		c.done()
	}
	if c.dev != nil {
		c.dev.Close()
	}
	if c.ctx != nil {
		return c.ctx.Close()
	}
	return nil
}
