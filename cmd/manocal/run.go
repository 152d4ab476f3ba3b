package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/CK6170/Manocal-go/internal/server"
	"github.com/CK6170/Manocal-go/models"
	"github.com/CK6170/Manocal-go/modern"
)

// loadParameters loads the config and binds the flags shared by run and monitor.
func loadParameters(cmd *cobra.Command) (*models.PARAMETERS, error) {
	flags := map[string]*pflag.Flag{
		"serial.port":     cmd.Flags().Lookup("port"),
		"serial.baudrate": cmd.Flags().Lookup("baud"),
		"output.dir":      cmd.Flags().Lookup("output"),
		"monitor.addr":    cmd.Flags().Lookup("monitor"),
	}
	p, err := modern.LoadParameters(configPath, flags)
	if err != nil {
		return nil, err
	}
	if detect, _ := cmd.Flags().GetBool("detect"); detect {
		p.SERIAL.PORT = ""
	}
	if changed, err := modern.EnsureSerialPort(p); err != nil {
		return nil, err
	} else if changed {
		logrus.WithField("port", p.SERIAL.PORT).Info("auto-detected serial port")
	}
	if p.DEBUG && !logrus.IsLevelEnabled(logrus.DebugLevel) {
		logrus.SetLevel(logrus.DebugLevel)
	}
	return p, nil
}

func addSerialFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("port", "p", "", "serial port (default "+modern.DefaultPort+")")
	cmd.Flags().Int("baud", 0, "baud rate (default 115200)")
	cmd.Flags().Bool("detect", false, "auto-detect the serial port instead of using the configured one")
}

func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a calibration session",
		Long: `Run opens the serial port, waits for 'start', then for every step asks for the
manometer reading, samples the sensor and appends min/max/average ADC to a CSV
file named after the session start time. Type 'stop' at any prompt to finish early.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadParameters(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSession(ctx, cmd, p)
		},
	}
	addSerialFlags(cmd)
	cmd.Flags().StringP("output", "o", "", "output directory (default "+modern.DefaultOutputDir+")")
	cmd.Flags().String("monitor", "", "serve a read-only session monitor on this address, e.g. 127.0.0.1:8080")
	return cmd
}

func runSession(ctx context.Context, cmd *cobra.Command, p *models.PARAMETERS) error {
	printer := &consolePrinter{out: cmd.OutOrStdout(), port: p.SERIAL.PORT}
	log := logrus.WithField("port", p.SERIAL.PORT)

	newController := func(onEvent func(modern.Event)) *modern.Controller {
		return modern.NewController(
			modern.SessionSettings(p),
			modern.PortOpener(p.SERIAL),
			modern.NewReaderSource(cmd.InOrStdin()),
			modern.NewCSVSinkFactory(p.OUTPUT.DIR, p.OUTPUT.PREFIX),
			modern.WithEvents(onEvent),
			modern.WithLogger(log),
		)
	}

	if p.MONITOR.ADDR == "" {
		_, err := newController(printer.Handle).Run(ctx)
		return err
	}

	srv := server.New(log)
	ctl := newController(modern.Fanout(printer.Handle, srv.Publish))
	httpSrv := &http.Server{Addr: p.MONITOR.ADDR, Handler: srv.Handler()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("Serving monitor on http://%s/api/session", p.MONITOR.ADDR)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if _, err := ctl.Run(gctx); err != nil {
			srv.Fail(err)
			return err
		}
		log.Infof("session finished; monitor still serving on %s, press Ctrl+C to exit", p.MONITOR.ADDR)
		<-gctx.Done()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
