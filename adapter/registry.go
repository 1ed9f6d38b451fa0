package adapter

import "go.bug.st/serial/enumerator"

// AdapterFactory is a function that creates a stick from port details
type AdapterFactory func(portDetails *enumerator.PortDetails) (Stick, error)

// AdapterInfo contains information about a stick type
type AdapterInfo struct {
	Name      string
	VendorID  uint16
	ProductID uint16
	Factory   AdapterFactory
}

var registeredAdapters []AdapterInfo

// RegisterAdapter registers a serial port stick factory with its VID/PID
func RegisterAdapter(name string, vendorID, productID uint16, factory AdapterFactory) {
	registeredAdapters = append(registeredAdapters, AdapterInfo{
		Name:      name,
		VendorID:  vendorID,
		ProductID: productID,
		Factory:   factory,
	})
}

// RegisterUSBAdapter registers a stick that is opened directly over USB
func RegisterUSBAdapter(name string, factory AdapterFactory) {
	registeredAdapters = append(registeredAdapters, AdapterInfo{
		Name:      name,
		VendorID:  0, // Special marker for USB-only sticks
		ProductID: 0,
		Factory:   factory,
	})
}

// matchPort returns the serial adapters registered for a VID/PID pair.
func matchPort(vendorID, productID uint16) []AdapterInfo {
	var found []AdapterInfo
	for _, info := range registeredAdapters {
		if info.VendorID == 0 && info.ProductID == 0 {
			continue // Skip USB-only sticks here
		}
		if info.VendorID == vendorID && info.ProductID == productID {
			found = append(found, info)
		}
	}
	return found
}

// usbAdapters returns the sticks opened directly over USB.
func usbAdapters() []AdapterInfo {
	var found []AdapterInfo
	for _, info := range registeredAdapters {
		if info.VendorID == 0 && info.ProductID == 0 {
			found = append(found, info)
		}
	}
	return found
}
