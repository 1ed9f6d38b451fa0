package adapter

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/sergev/antspeed/config"
	"github.com/sergev/antspeed/speed"
	"github.com/spf13/cobra"
)

var bindChannel int

var bindCmd = &cobra.Command{
	Use:   "bind [DEVICE_ID]",
	Short: "Receive one paired speed sensor",
	Long: `Open a receive channel to one speed sensor and print speed, cadence
and distance until interrupted. Device ID 0 pairs with the first speed
sensor in range. By default the device ID is taken from the configuration.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		deviceID, err := bindDeviceID(args)
		cobra.CheckErr(err)

		channel := config.Channel
		if cmd.Flags().Changed("channel") {
			if bindChannel < 0 || bindChannel > 7 {
				cobra.CheckErr(fmt.Errorf("channel must be between 0 and 7, got %d", bindChannel))
			}
			channel = uint8(bindChannel)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		stick, node, err := openNode(ctx, true)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to open ANT stick: %w", err))
		}
		defer stick.Close()

		sensor := speed.NewSensor(node)
		sensor.SetWheelCircumference(config.WheelCircumference)
		sensor.SetFrequency(config.Frequency)
		sensor.Subscribe(printSample)

		stopPublishers, err := startPublishers(ctx, sensor, flagListen, flagRedis, flagRedisChannel)
		cobra.CheckErr(err)
		defer stopPublishers()

		err = sensor.Attach(channel, deviceID)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to attach sensor: %w", err))
		}
		defer sensor.Detach()

		if deviceID == 0 {
			fmt.Printf("Searching for any speed sensor on channel %d, press Ctrl-C to stop\n", channel)
		} else {
			fmt.Printf("Searching for speed sensor %d on channel %d, press Ctrl-C to stop\n", deviceID, channel)
		}

		err = runUntilCancelled(ctx, node, sensor.Decode)
		if err != nil {
			cobra.CheckErr(err)
		}
		if sensor.DeviceID() != 0 {
			fmt.Printf("\nSensor %d, transmission type %d\n", sensor.DeviceID(), sensor.TransmissionType())
		}
	},
}

// bindDeviceID takes the device ID from the argument or the configuration.
func bindDeviceID(args []string) (uint16, error) {
	if len(args) == 0 {
		return config.DeviceID, nil
	}
	id, err := strconv.ParseUint(args[0], 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid device ID %q: %w", args[0], err)
	}
	return uint16(id), nil
}

func init() {
	bindCmd.Flags().IntVarP(&bindChannel, "channel", "c", 0, "ANT channel number (overrides config)")
	addPublishFlags(bindCmd)
	rootCmd.AddCommand(bindCmd)
}
