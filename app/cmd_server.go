package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"

	"github.com/JiscSD/ammolib/command"
	"github.com/JiscSD/ammolib/distributor"
	"github.com/JiscSD/ammolib/version"

	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/sqs"
	oklogrun "github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func NewCmdServer(logger logrus.FieldLogger, config *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Watch the distributor and relay queued commands to it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.WithField("v", version.VERSION).Info("Starting server...")
			return doServer(logger, config)
		},
	}
}

func doServer(logger logrus.FieldLogger, config *Config) error {
	client, err := distributorClient(logger, config)
	if err != nil {
		return err
	}

	var g oklogrun.Group
	var binder *distributor.Binder
	{
		binder = distributor.NewBinder(context.Background(), client,
			distributor.WithProbeInterval(config.Distributor.ProbeInterval),
			distributor.WithBinderLogger(logger.WithField("component", "binder")))

		g.Add(func() error {
			for ev := range binder.Events() {
				logger.WithField("connected", ev.Handle != nil).Debug("Distributor availability changed")
			}
			return nil
		}, func(error) {
			binder.Stop()
		})
	}
	if config.Command.QueueURL != "" {
		receiver, err := commandReceiver(logger, config, client, prometheus.DefaultRegisterer)
		if err != nil {
			return err
		}

		g.Add(func() error {
			receiver.Run()
			return nil
		}, func(error) {
			receiver.Stop()
		})
	} else {
		logger.Warn("No command queue configured, commands will not be relayed")
	}
	{
		ln, err := net.Listen("tcp", config.Metrics.Addr)
		if err != nil {
			return err
		}
		logger.WithField("addr", ln.Addr().String()).Info("HTTP server listening")

		g.Add(func() error {
			return http.Serve(ln, serverMux(binder))
		}, func(error) {
			ln.Close()
		})
	}
	{
		cancel := make(chan struct{})

		g.Add(func() error {
			err := interrupt(cancel, logger, binder)
			logger.Warn("Shutting down...")
			return err
		}, func(error) {
			close(cancel)
		})
	}

	return g.Run()
}

func commandReceiver(logger logrus.FieldLogger, config *Config, client *distributor.Client, reg prometheus.Registerer) (*command.Receiver, error) {
	var repo command.Repository
	if config.Command.RepositoryTable != "" {
		sess, err := awsSession(logger, config.AWS.DynamoDBProfile, config.AWS.DynamoDBEndpoint)
		if err != nil {
			return nil, err
		}
		repo = command.NewRepository(dynamodb.New(sess), config.Command.RepositoryTable)
	}

	sess, err := awsSession(logger, config.AWS.SQSProfile, config.AWS.SQSEndpoint)
	if err != nil {
		return nil, err
	}
	return command.NewReceiver(
		logger.WithField("component", "receiver"),
		sqs.New(sess), config.Command.QueueURL,
		repo, client,
		command.NewMetrics(reg)), nil
}

func serverMux(binder *distributor.Binder) *http.ServeMux {
	mux := http.NewServeMux()

	// Health check. The server is healthy even when the distributor is away.
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
		if binder != nil {
			fmt.Fprintf(w, "distributor connected: %t\n", binder.Connected())
		}
	})

	// Prometheus metrics.
	mux.Handle("/metrics", promhttp.Handler())

	// Profiling data.
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return mux
}
