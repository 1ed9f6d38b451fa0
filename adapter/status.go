package adapter

import (
	"context"
	"fmt"

	"github.com/sergev/antspeed/ant"
	"github.com/sergev/antspeed/config"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the status of the ANT stick",
	Long:  "Check the status of the ANT USB stick and show the active configuration.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		stick, node, err := openNode(ctx, false)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to find ANT stick: %w", err))
		}
		defer stick.Close()

		// Print transport information
		stick.PrintStatus()
		printNodeStatus(ctx, node)

		fmt.Printf("\nConfiguration file: %s\n", config.Path)
		fmt.Printf("Wheel Circumference: %.3f m\n", config.WheelCircumference)
		fmt.Printf("Units: %s\n", config.Units)
		fmt.Printf("Channel: %d, Device: %d, RF Frequency: %d MHz\n",
			config.Channel, config.DeviceID, 2400+int(config.Frequency))
		if config.HasNetworkKey {
			fmt.Printf("Network Key: configured\n")
		} else {
			fmt.Printf("Network Key: not set\n")
		}
	},
}

// printNodeStatus queries firmware details through the ANT protocol
func printNodeStatus(ctx context.Context, node *ant.Node) {
	version, err := node.Version(ctx)
	if err != nil {
		fmt.Printf("Warning: Failed to fetch firmware version: %v\n", err)
	} else {
		fmt.Printf("ANT Firmware Version: %s\n", version)
	}

	serial, err := node.SerialNumber(ctx)
	if err == nil {
		fmt.Printf("ANT Serial Number: %d\n", serial)
	}

	caps, err := node.Capabilities(ctx)
	if err != nil {
		fmt.Printf("Warning: Failed to fetch capabilities: %v\n", err)
		return
	}
	fmt.Printf("Max Channels: %d\n", caps.MaxChannels)
	fmt.Printf("Max Networks: %d\n", caps.MaxNetworks)
	if caps.StandardOptions&ant.NoReceiveChannels != 0 {
		fmt.Printf("Receive Channels: Not supported\n")
	}
	if caps.AdvancedOptions2 != 0 {
		fmt.Printf("Advanced Options: 0x%02x 0x%02x\n", caps.AdvancedOptions, caps.AdvancedOptions2)
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
