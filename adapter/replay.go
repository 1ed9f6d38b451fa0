package adapter

import (
	"fmt"
	"os"

	"github.com/sergev/antspeed/ant"
	"github.com/sergev/antspeed/capture"
	"github.com/sergev/antspeed/config"
	"github.com/sergev/antspeed/report"
	"github.com/sergev/antspeed/speed"
	"github.com/spf13/cobra"
)

var (
	replayMode    string
	replayChannel int
	replayDevice  int
	replayQuiet   bool
)

// offlineDriver stands in for the stick when decoding a capture:
// channel setup and ID requests go nowhere.
type offlineDriver struct{}

func (offlineDriver) Write([]byte) error { return nil }
func (offlineDriver) Open(ant.ChannelConfig) error { return nil }
func (offlineDriver) Close(uint8) error { return nil }

// decoder is what both speed front ends offer to the replay loop.
type decoder interface {
	Decode(data []byte)
	Subscribe(fn speed.Sink) string
}

// newReplayDecoder builds the decoder for a replay mode.
func newReplayDecoder(mode string, channel uint8) (decoder, error) {
	switch mode {
	case "scan":
		scanner := speed.NewScanner(offlineDriver{})
		scanner.SetWheelCircumference(config.WheelCircumference)
		return scanner, scanner.Scan()
	case "bind":
		sensor := speed.NewSensor(offlineDriver{})
		sensor.SetWheelCircumference(config.WheelCircumference)
		return sensor, sensor.Attach(channel, 0)
	}
	return nil, fmt.Errorf("unknown mode %q (expected scan or bind)", mode)
}

var replayCmd = &cobra.Command{
	Use:   "replay FILE.pcap",
	Short: "Decode a usbmon capture of ANT stick traffic",
	Long: `Replay a pcap file recorded from a Linux usbmon interface while an
ANT stick was receiving, decode the speed sensors in it and print the samples
followed by a per-device summary. Use --mode bind for captures of a paired
channel and --mode scan for captures made in scan mode.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if replayChannel < 0 || replayChannel > 7 {
			cobra.CheckErr(fmt.Errorf("channel must be between 0 and 7, got %d", replayChannel))
		}
		if replayDevice < 0 || replayDevice > 127 {
			cobra.CheckErr(fmt.Errorf("USB device address must be between 0 and 127, got %d", replayDevice))
		}
		dec, err := newReplayDecoder(replayMode, uint8(replayChannel))
		cobra.CheckErr(err)

		collector := report.NewCollector()
		dec.Subscribe(collector.Add)

		var now string
		if !replayQuiet {
			dec.Subscribe(func(s speed.Sample) {
				fmt.Printf("%s %s\n", now, formatSample(s, config.Units))
			})
		}

		handle := withEvents(dec.Decode)
		stats, err := capture.ReplayFile(args[0], capture.Options{Device: uint8(replayDevice)}, func(f capture.Frame) {
			now = f.Time.Format("15:04:05.000")
			handle(f.Data)
		})
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to replay %s: %w", args[0], err))
		}

		fmt.Printf("\n%d packets, %d transfers, %d ANT frames, %d dropped\n\n",
			stats.Packets, stats.Transfers, stats.Frames, stats.Dropped)
		report.Print(os.Stdout, collector.Summaries(), config.Units)
	},
}

func init() {
	replayCmd.Flags().StringVarP(&replayMode, "mode", "m", "scan", "decoder to use: scan or bind")
	replayCmd.Flags().IntVarP(&replayChannel, "channel", "c", 0, "channel number for bind mode")
	replayCmd.Flags().IntVarP(&replayDevice, "device", "d", 0, "USB device address to follow, 0 for all")
	replayCmd.Flags().BoolVarP(&replayQuiet, "quiet", "q", false, "print only the summary")
	rootCmd.AddCommand(replayCmd)
}
