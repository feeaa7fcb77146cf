package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/JiscSD/ammolib/request"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var requestsDispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ammolib",
	Subsystem: "requests",
	Name:      "dispatched_total",
	Help:      "Requests dispatched, by transport mode.",
}, []string{"mode"})

func init() {
	prometheus.MustRegister(requestsDispatched)
}

type requestOptions struct {
	out     string
	timeout time.Duration
}

func NewCmdRequest(out io.Writer, logger logrus.FieldLogger, config *Config) *cobra.Command {
	opts := &requestOptions{}
	cmd := &cobra.Command{
		Use:   "request <post|pull|subscribe|publish|directed-post|directed-subscribe> [key=value...]",
		Short: "Build a request and dispatch it or write it to a file",
		Long: `Build a request from key=value fields, e.g.

  ammolib request post topic=text/plain payload=hello notice=device:broadcast

The request is sent to the distributor through the configured transport,
unless --out is given, in which case the encoded request is written to a file.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
			defer cancel()
			return doRequest(ctx, out, logger, config, afero.NewOsFs(), args[0], args[1:], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Write the encoded request to this file instead of dispatching it")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Deadline for building and dispatching the request")

	return cmd
}

func doRequest(ctx context.Context, out io.Writer, logger logrus.FieldLogger, config *Config, fs afero.Fs, name string, pairs []string, opts *requestOptions) error {
	action, err := request.ParseAction(name)
	if err != nil {
		return err
	}
	vals, err := request.ParsePairs(pairs)
	if err != nil {
		return err
	}
	extras, err := request.DecodeExtras(vals)
	if err != nil {
		return err
	}

	builderOpts := []request.Option{
		request.WithLogger(logger),
		request.WithDispatchCounter(requestsDispatched),
	}
	if opts.out != "" {
		builderOpts = append(builderOpts, request.WithCommander(&fileCommander{fs: fs, path: opts.out}))
	} else {
		transport, err := requestTransport(logger, config)
		if err != nil {
			return err
		}
		builderOpts = append(builderOpts, transport...)
	}
	if extras.Provider != "" && extras.Topic == "" {
		store, err := openStore(ctx, logger, config)
		if err != nil {
			return err
		}
		defer store.Close()
		builderOpts = append(builderOpts, request.WithTypeResolver(store))
	}

	b := request.NewBuilder(ctx, builderOpts...)
	defer b.Release()
	b.Extras(extras)
	if extras.Provider != "" && extras.Topic == "" {
		b.TopicFromProvider(ctx)
	}

	req, err := b.Do(ctx, action)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{"mode": b.Mode(), "request": req.UUID}).Info("Request made")
	_, err = fmt.Fprintln(out, req.UUID)
	return err
}

// requestTransport returns the builder options for the configured transport.
// A one-shot command cannot wait for bind events so bind behaves like peek.
func requestTransport(logger logrus.FieldLogger, config *Config) ([]request.Option, error) {
	var opts []request.Option
	pub, err := commandPublisher(logger, config)
	if err != nil {
		return nil, err
	}
	if pub != nil {
		opts = append(opts, request.WithCommander(pub))
	}
	if config.Distributor.Transport == TransportCommand {
		return opts, nil
	}
	client, err := distributorClient(logger, config)
	if err != nil {
		return nil, err
	}
	return append(opts, request.WithPeeker(func(ctx context.Context) request.Distributor {
		if err := client.Ping(ctx); err != nil {
			logger.WithError(err).Info("Distributor is not reachable")
			return nil
		}
		return client
	})), nil
}

// fileCommander writes the encoded request to a file.
type fileCommander struct {
	fs   afero.Fs
	path string
}

func (c *fileCommander) StartCommand(ctx context.Context, cmd request.Command) error {
	if err := afero.WriteFile(c.fs, c.path, request.Marshal(cmd.Request), 0644); err != nil {
		return errors.Wrapf(err, "cannot write %s", c.path)
	}
	return nil
}
