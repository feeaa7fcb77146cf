package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/JiscSD/ammolib/dispatcher"
	"github.com/JiscSD/ammolib/preference"
	"github.com/JiscSD/ammolib/presence"
	"github.com/JiscSD/ammolib/provider"
	"github.com/JiscSD/ammolib/types"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewCmdStore groups the commands working on the local content providers.
func NewCmdStore(out io.Writer, logger logrus.FieldLogger, config *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Queue requests and read preferences or presence in the local store",
	}

	var (
		mime     string
		lifetime time.Duration
	)
	queue := func(use, short string, args cobra.PositionalArgs, fn func(ctx context.Context, d *dispatcher.Dispatcher, args []string, opts []dispatcher.RequestOption) bool) *cobra.Command {
		c := &cobra.Command{
			Use:   use,
			Short: short,
			Args:  args,
			RunE: func(cmd *cobra.Command, args []string) error {
				var opts []dispatcher.RequestOption
				if mime != "" {
					opts = append(opts, dispatcher.WithMIME(mime))
				}
				if lifetime > 0 {
					opts = append(opts, dispatcher.WithLifetime(lifetime))
				}
				return withStore(logger, config, func(ctx context.Context, store provider.Resolver) error {
					return dispatch(ctx, out, logger, store, func(d *dispatcher.Dispatcher) bool {
						return fn(ctx, d, args, opts)
					})
				})
			},
		}
		c.Flags().StringVarP(&mime, "mime", "m", "", "Content type")
		c.Flags().DurationVar(&lifetime, "lifetime", 0, "How long the request stays queued")
		return c
	}

	cmd.AddCommand(
		queue("post <data>", "Queue data for posting", cobra.ExactArgs(1),
			func(ctx context.Context, d *dispatcher.Dispatcher, args []string, opts []dispatcher.RequestOption) bool {
				return d.PostString(ctx, mime, args[0], opts...)
			}),
		queue("pull <uri> [query]", "Queue a retrieval", cobra.RangeArgs(1, 2),
			func(ctx context.Context, d *dispatcher.Dispatcher, args []string, opts []dispatcher.RequestOption) bool {
				return d.Pull(ctx, args[0], mime, optionalArg(args, 1), opts...)
			}),
		queue("subscribe <uri> [filter]", "Record an interest", cobra.RangeArgs(1, 2),
			func(ctx context.Context, d *dispatcher.Dispatcher, args []string, opts []dispatcher.RequestOption) bool {
				return d.Subscribe(ctx, args[0], mime, optionalArg(args, 1), opts...)
			}),
		queue("unsubscribe <uri>", "Remove an interest", cobra.ExactArgs(1),
			func(ctx context.Context, d *dispatcher.Dispatcher, args []string, opts []dispatcher.RequestOption) bool {
				if mime == "" {
					return d.Unsubscribe(ctx, args[0])
				}
				return d.Unsubscribe(ctx, args[0], mime)
			}),
		queue("publish <uri>", "Record a publication", cobra.ExactArgs(1),
			func(ctx context.Context, d *dispatcher.Dispatcher, args []string, opts []dispatcher.RequestOption) bool {
				return d.Publish(ctx, args[0], mime, opts...)
			}),
		newCmdPref(out, logger, config),
		newCmdPresence(out, logger, config),
	)

	return cmd
}

func optionalArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return ""
}

func withStore(logger logrus.FieldLogger, config *Config, fn func(ctx context.Context, store provider.Resolver) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	store, err := openStore(ctx, logger, config)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(ctx, store)
}

// noticeCollector keeps the messages shown to the user by a facade.
type noticeCollector struct {
	mu   sync.Mutex
	msgs []string
}

func (c *noticeCollector) Notify(ctx context.Context, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func dispatch(ctx context.Context, out io.Writer, logger logrus.FieldLogger, store provider.Resolver, fn func(d *dispatcher.Dispatcher) bool) error {
	notices := &noticeCollector{}
	d := dispatcher.New(store, dispatcher.WithLogger(logger), dispatcher.WithNotifier(notices))
	if !fn(d) {
		if len(notices.msgs) == 0 {
			return errors.New("request was not queued")
		}
		return errors.New(strings.Join(notices.msgs, "; "))
	}
	_, err := fmt.Fprintln(out, "Queued.")
	return err
}

// logBroadcaster reports preference changes in the log.
type logBroadcaster struct {
	logger logrus.FieldLogger
}

func (b logBroadcaster) Broadcast(ctx context.Context, intent *types.Intent) error {
	fields := logrus.Fields{"action": intent.Action, "data": intent.Data}
	for k, v := range intent.Extras {
		fields[k] = v
	}
	b.logger.WithFields(fields).Info("Preference changed")
	return nil
}

func newCmdPref(out io.Writer, logger logrus.FieldLogger, config *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pref",
		Short: "Read or write a preference",
	}

	var def string
	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a preference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(logger, config, func(ctx context.Context, store provider.Resolver) error {
				p := preference.New(store, "ammolib", preference.WithLogger(logger))
				_, err := fmt.Fprintln(out, p.GetString(ctx, args[0], def))
				return err
			})
		},
	}
	get.Flags().StringVarP(&def, "default", "d", "", "Value printed when the preference is not set")

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write a preference",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(logger, config, func(ctx context.Context, store provider.Resolver) error {
				p := preference.New(store, preference.WriterPackagePrefix,
					preference.WithLogger(logger),
					preference.WithBroadcaster(logBroadcaster{logger: logger}))
				return p.PutString(ctx, args[0], args[1])
			})
		},
	}

	cmd.AddCommand(get, set)
	return cmd
}

func newCmdPresence(out io.Writer, logger logrus.FieldLogger, config *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "presence [operator]",
		Short: "Print the presence of one or every operator",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(logger, config, func(ctx context.Context, store provider.Resolver) error {
				p := presence.New(store, logger)
				if len(args) == 1 {
					_, err := fmt.Fprintf(out, "%s\t%s\n", args[0], statusText(p.GetUserPresenceStatus(ctx, args[0])))
					return err
				}
				for _, u := range p.GetAllAvailableUsers(ctx) {
					if _, err := fmt.Fprintf(out, "%s\t%s\n", u.UserID, statusText(u.Status)); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func statusText(code int32) string {
	if code == presence.UnknownStatus {
		return "UNKNOWN"
	}
	return types.DecodeState(code).String()
}
