package command

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/JiscSD/ammolib/request"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const (
	// maxNumberOfMessages is the number of messages that we want to receive
	// from SQS incoming batches.
	maxNumberOfMessages = 10

	// waitTimeSeconds is the longest we're waiting on each SQS receive poll.
	waitTimeSeconds = 1
)

// Metrics counts what the receiver does with the commands it is given.
type Metrics struct {
	Received   prometheus.Counter
	Relayed    prometheus.Counter
	Duplicated prometheus.Counter
	Failed     prometheus.Counter
}

// NewMetrics builds the receiver counters and registers them with reg
// unless it is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ammolib",
			Subsystem: "commands",
			Name:      name,
			Help:      help,
		})
	}
	m := &Metrics{
		Received:   counter("received_total", "The total number of commands received."),
		Relayed:    counter("relayed_total", "The total number of commands handled successfully."),
		Duplicated: counter("duplicated_total", "The total number of commands seen before."),
		Failed:     counter("failed_total", "The total number of commands that could not be handled."),
	}
	if reg != nil {
		reg.MustRegister(m.Received, m.Relayed, m.Duplicated, m.Failed)
	}
	return m
}

// Receiver consumes commands from an SQS queue.
//
// Each message is decoded, checked against the repository so a request is
// relayed at most once and handed to the handler subscribed to its action.
// MakeRequestAction is relayed to the distributor given to NewReceiver.
// Messages are deleted from the queue once processed, whatever the outcome.
type Receiver struct {
	logger   logrus.FieldLogger
	client   sqsiface.SQSAPI
	queueURL string
	repo     Repository
	metrics  *Metrics
	ctx      context.Context
	cancel   context.CancelFunc
	stop     chan chan struct{}
	subscriptions
}

// NewReceiver returns a usable Receiver. repo may be nil, in which case
// requests are not deduplicated.
func NewReceiver(
	logger logrus.FieldLogger,
	client sqsiface.SQSAPI, queueURL string,
	repo Repository, relay request.Distributor,
	metrics *Metrics) *Receiver {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	r := &Receiver{
		logger:   logger,
		client:   client,
		queueURL: queueURL,
		repo:     repo,
		metrics:  metrics,
		stop:     make(chan chan struct{}),
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.subscriptions.s = make(map[string]Handler)
	if relay != nil {
		r.Subscribe(request.MakeRequestAction, Relay(relay))
	}
	return r
}

// Run receives until Stop is called.
func (r *Receiver) Run() {
	for {
		select {
		case ch := <-r.stop:
			r.cancel()
			close(ch)
			return
		default:
			out, err := r.client.ReceiveMessageWithContext(r.ctx, &sqs.ReceiveMessageInput{
				QueueUrl:              aws.String(r.queueURL),
				MaxNumberOfMessages:   aws.Int64(maxNumberOfMessages),
				WaitTimeSeconds:       aws.Int64(waitTimeSeconds),
				MessageAttributeNames: aws.StringSlice([]string{AttributeAction}),
			})
			if err != nil {
				r.logger.Errorf("Error receiving a command from SQS: %s", err)
				r.sleep(time.Second)
				continue
			}
			for _, m := range out.Messages {
				r.process(m)
			}
		}
	}
}

// Stop blocks until the receiver terminates.
func (r *Receiver) Stop() {
	ch := make(chan struct{})
	r.stop <- ch
	<-ch
}

func (r *Receiver) sleep(d time.Duration) {
	select {
	case <-time.After(d):
	case <-r.ctx.Done():
	}
}

func (r *Receiver) process(m *sqs.Message) {
	defer r.deleteMessage(m.ReceiptHandle)
	r.metrics.Received.Inc()

	action := request.MakeRequestAction
	if attr, ok := m.MessageAttributes[AttributeAction]; ok && aws.StringValue(attr.StringValue) != "" {
		action = aws.StringValue(attr.StringValue)
	}
	logger := r.logger.WithFields(logrus.Fields{
		"messageID": aws.StringValue(m.MessageId),
		"action":    action,
	})

	req, err := decodeBody(aws.StringValue(m.Body), logger)
	if err != nil {
		r.metrics.Failed.Inc()
		logger.WithError(err).Warn("Command could not be decoded")
		return
	}
	logger = logger.WithField("request", req.UUID)

	if r.repo != nil && req.UUID != "" {
		seen, err := r.repo.SeenBeforeOrStore(r.ctx, action, req)
		switch {
		case err != nil:
			// An unreachable repository is not a reason to drop the command.
			logger.WithError(err).Warn("Local data repository check failed")
		case seen:
			r.metrics.Duplicated.Inc()
			logger.Warn("Command found in the local data repository")
			return
		}
	}

	state := RecordStateRelayed
	if err := r.handle(action, req); err != nil {
		state = RecordStateFailed
		r.metrics.Failed.Inc()
		logger.WithError(err).Error("Handler failure")
	} else {
		r.metrics.Relayed.Inc()
		logger.Debug("Command handled")
	}

	if r.repo != nil && req.UUID != "" {
		if err := r.repo.SetState(r.ctx, req.UUID, state); err != nil {
			logger.WithError(err).Warn("Local data repository update failed")
		}
	}
}

// handle runs the handler in panic recovery mode.
func (r *Receiver) handle(action string, req *request.Request) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic! %s %s", p, debug.Stack())
		}
	}()
	return r.subscriptions.handle(r.ctx, action, req)
}

// deleteMessage does best effort to delete a message from SQS.
func (r *Receiver) deleteMessage(receiptHandle *string) {
	_, err := r.client.DeleteMessageWithContext(r.ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(r.queueURL),
		ReceiptHandle: receiptHandle,
	})
	if err != nil {
		r.logger.Error("Command could not be removed from SQS: ", err)
	}
}
