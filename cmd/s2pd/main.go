// Command s2pd is the SCSI/SASI target emulator daemon: it loads a
// property-file configuration, attaches the configured targets and LUNs to
// an in-process bus, and dispatches command cycles until interrupted.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/uweseimet/scsi2pi-go/bus"
	"github.com/uweseimet/scsi2pi-go/config"
	"github.com/uweseimet/scsi2pi-go/target"
)

var (
	configPath  string
	debug       bool
	metricsAddr string
)

func main() {
	root := &cobra.Command{
		Use:   "s2pd",
		Short: "SCSI/SASI target emulator daemon",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "attach configured targets and dispatch command cycles",
		RunE:  runServe,
	}
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the target/LUN property file")
	serveCmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging, including per-signal bus tracing")
	serveCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address")
	serveCmd.MarkFlagRequired("config")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("s2pd (scsi2pi-go)")
		},
	}

	root.AddCommand(serveCmd, versionCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	logrus.SetLevel(logrus.InfoLevel)
	if debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	log := logrus.NewEntry(logrus.StandardLogger())

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("s2pd: %w", err)
	}

	ipb := bus.NewInProcessBus()
	if !ipb.Init(true) {
		return fmt.Errorf("s2pd: bus initialization failed")
	}
	defer ipb.CleanUp()

	var b bus.Bus = ipb
	if debug {
		b = bus.NewDelegatingBus(b, "s2pd")
	}

	dispatcher := target.NewDispatcher(b, log)
	controllers, err := config.Attach(cfg, b, dispatcher, log)
	if err != nil {
		return fmt.Errorf("s2pd: %w", err)
	}
	log.Infof("attached %d target(s)", len(controllers))

	if metricsAddr != "" {
		go serveMetrics(metricsAddr, log)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan target.ShutdownMode, 1)
	go func() { done <- dispatcher.Run(ctx) }()

	select {
	case <-ctx.Done():
		log.Info("received interrupt, stopping")
	case mode := <-done:
		log.Infof("dispatcher stopped itself (mode %d)", mode)
	}
	return nil
}

func serveMetrics(addr string, log *logrus.Entry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Infof("serving metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Error("metrics server stopped")
	}
}
