// Package commandmock provides in-memory SNS topics and SQS queues for
// tests. A queue subscribed to a topic receives what is published the way a
// raw message delivery subscription does.
package commandmock

import (
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/aws/aws-sdk-go/service/sns/snsiface"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
)

// Queue implements the receiving side of sqsiface.SQSAPI. An empty receive
// waits for pollInterval, like a short long-poll.
type Queue struct {
	sqsiface.SQSAPI

	// ReceiveErr, when set, is returned by the next receive.
	ReceiveErr error

	mu       sync.Mutex
	messages []*sqs.Message
	deleted  []string
	seq      int
}

var _ sqsiface.SQSAPI = (*Queue)(nil)

const pollInterval = 5 * time.Millisecond

func NewQueue() *Queue {
	return &Queue{}
}

// Send enqueues a message.
func (q *Queue) Send(body string, attrs map[string]*sqs.MessageAttributeValue) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	id := strconv.Itoa(q.seq)
	q.messages = append(q.messages, &sqs.Message{
		MessageId:         aws.String("msg-" + id),
		ReceiptHandle:     aws.String("rh-" + id),
		Body:              aws.String(body),
		MessageAttributes: attrs,
	})
}

func (q *Queue) ReceiveMessageWithContext(ctx aws.Context, in *sqs.ReceiveMessageInput, opts ...request.Option) (*sqs.ReceiveMessageOutput, error) {
	q.mu.Lock()
	if err := q.ReceiveErr; err != nil {
		q.ReceiveErr = nil
		q.mu.Unlock()
		return nil, err
	}
	n := int(aws.Int64Value(in.MaxNumberOfMessages))
	if n < 1 {
		n = 1
	}
	if n > len(q.messages) {
		n = len(q.messages)
	}
	batch := q.messages[:n]
	q.messages = q.messages[n:]
	q.mu.Unlock()

	if len(batch) == 0 {
		select {
		case <-time.After(pollInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &sqs.ReceiveMessageOutput{Messages: batch}, nil
}

func (q *Queue) DeleteMessageWithContext(ctx aws.Context, in *sqs.DeleteMessageInput, opts ...request.Option) (*sqs.DeleteMessageOutput, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deleted = append(q.deleted, aws.StringValue(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

// Deleted returns how many messages have been deleted.
func (q *Queue) Deleted() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.deleted)
}

// Topic implements the publishing side of snsiface.SNSAPI.
type Topic struct {
	snsiface.SNSAPI

	// Err, when set, is returned by every publish.
	Err error

	mu        sync.Mutex
	queues    []*Queue
	published []*sns.PublishInput
}

var _ snsiface.SNSAPI = (*Topic)(nil)

func NewTopic() *Topic {
	return &Topic{}
}

// SubscribeQueue delivers every later publication to q.
func (t *Topic) SubscribeQueue(q *Queue) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queues = append(t.queues, q)
}

func (t *Topic) PublishWithContext(ctx aws.Context, in *sns.PublishInput, opts ...request.Option) (*sns.PublishOutput, error) {
	if t.Err != nil {
		return nil, t.Err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.published = append(t.published, in)
	attrs := make(map[string]*sqs.MessageAttributeValue, len(in.MessageAttributes))
	for k, v := range in.MessageAttributes {
		attrs[k] = &sqs.MessageAttributeValue{DataType: v.DataType, StringValue: v.StringValue}
	}
	for _, q := range t.queues {
		q.Send(aws.StringValue(in.Message), attrs)
	}
	return &sns.PublishOutput{MessageId: aws.String("sns-" + strconv.Itoa(len(t.published)))}, nil
}

// Published returns what has been published so far.
func (t *Topic) Published() []*sns.PublishInput {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*sns.PublishInput, len(t.published))
	copy(out, t.published)
	return out
}
