package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/magnetometer/cmd/magneto/console"
	"github.com/mklimuk/magnetometer/stream"
)

var streamCmd = cli.Command{
	Name:  "stream",
	Usage: "sample continuously and publish readings over MQTT and WebSocket",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "mqtt-broker", Usage: "broker URL, e.g. tcp://localhost:1883"},
		&cli.StringFlag{Name: "topic", Usage: "MQTT topic"},
		&cli.StringFlag{Name: "client-id", Usage: "MQTT client id"},
		&cli.StringFlag{Name: "listen", Usage: "address serving readings on /ws and /metrics, e.g. :8080"},
		&cli.DurationFlag{Name: "interval", Aliases: []string{"i"}, Usage: "sampling interval"},
		&cli.BoolFlag{Name: "temperature", Usage: "include the die temperature"},
	},
	Action: func(c *cli.Context) error {
		dev, file, release, err := openDevice(c)
		if err != nil {
			return console.Exit(1, "could not open device: %s", console.Red(err))
		}
		defer release()

		cfg := file.Stream
		if c.IsSet("mqtt-broker") {
			cfg.MQTTBroker = c.String("mqtt-broker")
		}
		if c.IsSet("topic") {
			cfg.Topic = c.String("topic")
		}
		if c.IsSet("client-id") {
			cfg.ClientID = c.String("client-id")
		}
		if c.IsSet("listen") {
			cfg.Listen = c.String("listen")
		}
		if c.IsSet("interval") {
			cfg.Interval = c.Duration("interval")
		}
		if cfg.MQTTBroker == "" && cfg.Listen == "" {
			return console.Exit(1, "nothing to publish to: set --mqtt-broker or --listen")
		}

		ctx, stop := signal.NotifyContext(commandContext(c), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := dev.Init(ctx, nil); err != nil {
			return console.Exit(1, "device initialization error: %s", console.Red(err))
		}

		var pubs []stream.Publisher
		if cfg.MQTTBroker != "" {
			dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			m, err := stream.DialMQTT(dialCtx, cfg.MQTTBroker, cfg.ClientID, stream.WithTopic(cfg.Topic))
			cancel()
			if err != nil {
				return console.Exit(1, "%s", console.Red(err))
			}
			defer m.Close()
			pubs = append(pubs, m)
			console.Infof("publishing to %s on %s", console.White(cfg.Topic), console.White(cfg.MQTTBroker))
		}
		if cfg.Listen != "" {
			hub := stream.NewHub()
			defer hub.Close()
			metrics := stream.NewMetrics()
			mux := http.NewServeMux()
			mux.Handle("/ws", hub)
			mux.Handle("/metrics", metrics.Handler())
			srv := &http.Server{Addr: cfg.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					slog.Error("http server error", "error", err)
					stop()
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
			pubs = append(pubs, hub, metrics)
			console.Infof("serving readings on %s", console.White("ws://"+cfg.Listen+"/ws"))
			console.Infof("serving metrics on %s", console.White("http://"+cfg.Listen+"/metrics"))
		}

		err = stream.Run(ctx, dev, stream.Options{Interval: cfg.Interval, Temperature: c.Bool("temperature")}, pubs...)
		if err != nil {
			return console.Exit(1, "stream error: %s", console.Red(err))
		}
		return nil
	},
}
