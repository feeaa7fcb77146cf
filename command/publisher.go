// Package command carries requests to the distributor indirectly, as
// fire-and-forget commands over SNS and SQS, for when no direct handle is
// available.
package command

import (
	"context"
	"encoding/base64"

	"github.com/JiscSD/ammolib/request"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/aws/aws-sdk-go/service/sns/snsiface"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// AttributeAction is the message attribute naming the command.
const AttributeAction = "action"

// Publisher implements request.Commander. The message body is the base64
// encoded request parcel.
type Publisher struct {
	logger   logrus.FieldLogger
	client   snsiface.SNSAPI
	topicARN string
}

var _ request.Commander = (*Publisher)(nil)

func NewPublisher(logger logrus.FieldLogger, client snsiface.SNSAPI, topicARN string) *Publisher {
	return &Publisher{logger: logger, client: client, topicARN: topicARN}
}

func (p *Publisher) StartCommand(ctx context.Context, cmd request.Command) error {
	if cmd.Request == nil {
		return errors.New("command has no request")
	}
	if cmd.Action == "" {
		cmd.Action = request.MakeRequestAction
	}
	body := base64.StdEncoding.EncodeToString(request.Marshal(cmd.Request))
	out, err := p.client.PublishWithContext(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(body),
		MessageAttributes: map[string]*sns.MessageAttributeValue{
			AttributeAction: {
				DataType:    aws.String("String"),
				StringValue: aws.String(cmd.Action),
			},
		},
	})
	if err != nil {
		return errors.Wrapf(err, "error publishing command %s", cmd.Action)
	}
	p.logger.WithFields(logrus.Fields{
		"request":   cmd.Request.UUID,
		"messageID": aws.StringValue(out.MessageId),
	}).Debug("Command published")
	return nil
}

// decodeBody is the inverse of the encoding used by StartCommand.
func decodeBody(body string, logger logrus.FieldLogger) (*request.Request, error) {
	data, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, errors.Wrap(err, "command body is not base64")
	}
	return request.Decode(data, logger)
}
