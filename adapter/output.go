package adapter

import (
	"fmt"
	"time"

	"github.com/sergev/antspeed/config"
	"github.com/sergev/antspeed/speed"
	"github.com/sergev/antspeed/units"
)

// formatSample renders one sample in the configured units.
func formatSample(s speed.Sample, unit string) string {
	line := fmt.Sprintf("Device %5d: %6.1f %-4s %5.0f rpm %9.3f %s",
		s.DeviceID,
		units.ConvertSpeed(s.Speed, unit), units.SpeedLabel(unit),
		s.Cadence,
		units.ConvertDistance(s.Distance, unit), units.DistanceLabel(unit))
	if s.HasRSSI {
		line += fmt.Sprintf("  RSSI %d dBm (threshold %d)", s.RSSI, s.Threshold)
	}
	return line
}

// printSample is the sink used by the live commands.
func printSample(s speed.Sample) {
	fmt.Printf("%s %s\n", time.Now().Format("15:04:05"), formatSample(s, config.Units))
}
