package adapter

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/sergev/antspeed/config"
	"github.com/sergev/antspeed/report"
	"github.com/sergev/antspeed/speed"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Receive all speed sensors in range",
	Long: `Put the stick into continuous scan mode and print every speed sensor
heard, with signal strength, until interrupted.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		stick, node, err := openNode(ctx, true)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to open ANT stick: %w", err))
		}
		defer stick.Close()

		scanner := speed.NewScanner(node)
		scanner.SetWheelCircumference(config.WheelCircumference)
		scanner.SetFrequency(config.Frequency)
		scanner.Subscribe(printSample)
		collector := report.NewCollector()
		scanner.Subscribe(collector.Add)

		stopPublishers, err := startPublishers(ctx, scanner, flagListen, flagRedis, flagRedisChannel)
		cobra.CheckErr(err)
		defer stopPublishers()

		err = scanner.Scan()
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to start scan: %w", err))
		}
		defer scanner.Stop()
		fmt.Printf("Scanning for speed sensors, press Ctrl-C to stop\n")

		err = runUntilCancelled(ctx, node, scanner.Decode)
		if err != nil {
			cobra.CheckErr(err)
		}

		fmt.Printf("\n")
		report.Print(os.Stdout, collector.Summaries(), config.Units)
	},
}

func init() {
	addPublishFlags(scanCmd)
	rootCmd.AddCommand(scanCmd)
}
