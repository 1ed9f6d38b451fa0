package adapter

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/sergev/antspeed/ant"
	"github.com/sergev/antspeed/config"
	"github.com/sergev/antspeed/monitoring"
	"github.com/sergev/antspeed/units"
	"github.com/spf13/cobra"
	"go.bug.st/serial/enumerator"
)

var (
	flagVerbose bool
	flagWheel   float64
	flagUnits   string
)

var rootCmd = &cobra.Command{
	Use:   "antspeed",
	Short: "A CLI program which reads ANT+ bike speed sensors via USB stick",
	Long:  "The antspeed tool receives ANT+ bicycle speed sensors through an ANT USB stick and prints speed, cadence and distance.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Initialize configuration
		err := config.Initialize()
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to initialize config: %w", err))
		}

		// Command line flags override the config file
		if cmd.Flags().Changed("wheel") {
			if flagWheel <= 0 {
				cobra.CheckErr(fmt.Errorf("wheel circumference must be positive, got %g", flagWheel))
			}
			config.WheelCircumference = flagWheel
		}
		if cmd.Flags().Changed("units") {
			cobra.CheckErr(units.Validate(flagUnits))
			config.Units = flagUnits
		}
		monitoring.Verbose = flagVerbose
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "print channel events and pairing details")
	rootCmd.PersistentFlags().Float64VarP(&flagWheel, "wheel", "w", 0, "wheel circumference in meters (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&flagUnits, "units", "u", "", "display units: mps, kph, kmph, mph (overrides config)")
}

// findAdapter attempts to find and initialize a registered stick
// Returns the initialized stick or an error if none is found
func findAdapter() (Stick, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	// Try registered serial port sticks
	for _, port := range ports {
		if !port.IsUSB {
			continue
		}
		portVID, err := strconv.ParseUint(port.VID, 16, 16)
		if err != nil {
			continue
		}
		portPID, err := strconv.ParseUint(port.PID, 16, 16)
		if err != nil {
			continue
		}

		for _, info := range matchPort(uint16(portVID), uint16(portPID)) {
			stick, err := info.Factory(port)
			if err != nil {
				monitoring.Debugf("%s on %s: %v", info.Name, port.Name, err)
				continue // Try next port
			}
			return stick, nil
		}
	}

	// Try registered USB-only sticks
	for _, info := range usbAdapters() {
		stick, err := info.Factory(nil)
		if err != nil {
			monitoring.Debugf("%s: %v", info.Name, err)
			continue
		}
		if stick != nil {
			return stick, nil
		}
	}

	return nil, fmt.Errorf("no supported ANT USB stick found")
}

// openNode finds a stick, resets it and wraps it in an ANT node.
// Opening channels needs the network key, status queries do not.
func openNode(ctx context.Context, needKey bool) (Stick, *ant.Node, error) {
	if needKey && !config.HasNetworkKey {
		return nil, nil, fmt.Errorf("network_key is not set in %s", config.Path)
	}

	stick, err := findAdapter()
	if err != nil {
		return nil, nil, err
	}
	node := ant.NewNode(stick, config.NetworkKey)
	if err := node.Reset(ctx); err != nil {
		stick.Close()
		return nil, nil, fmt.Errorf("failed to reset stick: %w", err)
	}
	return stick, node, nil
}

// withEvents routes channel responses and events to the diagnostic log and
// everything else to handle.
func withEvents(handle func([]byte)) func([]byte) {
	return func(msg []byte) {
		if msg[ant.IndexMsgType] != ant.MsgChannelEvent {
			handle(msg)
			return
		}
		ev, err := ant.ParseChannelEvent(msg)
		if err != nil {
			monitoring.Logf("channel event: %v", err)
			return
		}
		if ev.IsError() {
			monitoring.Logf("%s", ev)
			return
		}
		monitoring.Debugf("%s", ev)
	}
}

// runUntilCancelled runs the node read loop; interruption is a normal exit.
func runUntilCancelled(ctx context.Context, node *ant.Node, handle func([]byte)) error {
	err := node.Run(ctx, withEvents(handle))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
