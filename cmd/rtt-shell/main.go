package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xiaoapeng/rtt-shell/internal/probe"
	"github.com/xiaoapeng/rtt-shell/internal/ptysh"
	"github.com/xiaoapeng/rtt-shell/internal/session"
)

var (
	device      string
	tifName     string
	speedKHz    int
	usbSerial   uint32
	libraryPath string

	rxChannel   int
	txChannel   int
	searchAddr  uint64
	searchRange uint64

	logFile    string
	mirrorAddr string

	demoShell string
)

var rootCmd = &cobra.Command{
	Use:   "rtt-shell",
	Short: "Interactive RTT terminal with timestamped logging",
	Long: `rtt-shell bridges the RTT byte stream of firmware on an embedded
target to an interactive local terminal session and records every
completed input line to a timestamped log file.`,
}

var runCmd = &cobra.Command{
	Use:           "run",
	Short:         "Connect to a target through a J-Link probe",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := probe.Connect(probe.Config{
			LibraryPath: libraryPath,
			USBSerial:   usbSerial,
			Device:      device,
			Interface:   tifName,
			SpeedKHz:    speedKHz,
		})
		if err != nil {
			return err
		}
		defer func() { _ = p.Close() }()

		return runSession(session.Config{
			Transport:   p,
			RxChannel:   rxChannel,
			TxChannel:   txChannel,
			SearchAddr:  searchAddr,
			SearchRange: searchRange,
			LogPath:     logFile,
			MirrorAddr:  mirrorAddr,
			RawConsole:  true,
		})
	},
}

var demoCmd = &cobra.Command{
	Use:           "demo",
	Short:         "Run the terminal pipeline against a local shell (no hardware)",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		tr, err := ptysh.Start(demoShell)
		if err != nil {
			return err
		}
		defer func() { _ = tr.Close() }()

		return runSession(session.Config{
			Transport:  tr,
			RxChannel:  0,
			TxChannel:  0,
			LogPath:    logFile,
			MirrorAddr: mirrorAddr,
			RawConsole: true,
		})
	},
}

// runSession starts the session and blocks until the byte stream
// requests quit or the process receives a termination signal.
func runSession(cfg session.Config) error {
	s, err := session.Start(cfg)
	if err != nil {
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case <-s.Done():
	case <-sig:
	}
	s.Stop()
	return nil
}

func init() {
	runCmd.Flags().StringVar(&device, "device", "", "Target device name, e.g. MCXN947_M33_0 (required)")
	runCmd.Flags().StringVar(&tifName, "interface", "swd", "Target interface: swd or jtag")
	runCmd.Flags().IntVar(&speedKHz, "speed", 4000, "Interface speed in kHz")
	runCmd.Flags().Uint32Var(&usbSerial, "usb-sn", 0, "Select probe by USB serial number")
	runCmd.Flags().StringVar(&libraryPath, "jlink-lib", "", "Path to the J-Link library (default: auto-detect)")
	runCmd.Flags().IntVar(&rxChannel, "rx-channel", 0, "RTT up channel to read from")
	runCmd.Flags().IntVar(&txChannel, "tx-channel", 0, "RTT down channel to write to (-1 disables transmit)")
	runCmd.Flags().Uint64Var(&searchAddr, "rtt-addr", 0, "RTT control block address hint")
	runCmd.Flags().Uint64Var(&searchRange, "rtt-range", 0, "RTT control block search range (with --rtt-addr)")
	runCmd.Flags().StringVar(&logFile, "log-file", "", "Append completed lines to this file")
	runCmd.Flags().StringVar(&mirrorAddr, "mirror-addr", "", "Serve a read-only WebSocket mirror on this address")
	_ = runCmd.MarkFlagRequired("device")

	demoCmd.Flags().StringVar(&demoShell, "shell", "", "Shell to run (default: $SHELL or /bin/sh)")
	demoCmd.Flags().StringVar(&logFile, "log-file", "", "Append completed lines to this file")
	demoCmd.Flags().StringVar(&mirrorAddr, "mirror-addr", "", "Serve a read-only WebSocket mirror on this address")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(demoCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
