package main

import (
	"github.com/sergev/antspeed/adapter"

	// Stick drivers register themselves with the adapter package
	_ "github.com/sergev/antspeed/serialstick"
	_ "github.com/sergev/antspeed/usbstick"
)

func main() {
	adapter.Execute()
}
