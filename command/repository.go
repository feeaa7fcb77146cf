package command

import (
	"context"
	"strconv"
	"time"

	"github.com/JiscSD/ammolib/request"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/pkg/errors"
)

// Repository remembers the requests already relayed.
type Repository interface {
	SeenBeforeOrStore(ctx context.Context, action string, req *request.Request) (bool, error)
	SetState(ctx context.Context, id string, state RecordState) error
}

// record is what we keep about a request, keyed by its UUID.
type record struct {
	ID       string      `dynamodbav:"ID"`
	Action   string      `dynamodbav:"action"`
	Kind     string      `dynamodbav:"kind"`
	State    RecordState `dynamodbav:"state"`
	Received int64       `dynamodbav:"received"`
}

// RecordState tracks a request through the receiver.
type RecordState int

const (
	_                   RecordState = iota
	RecordStateReceived RecordState = iota
	RecordStateRelayed
	RecordStateFailed
)

func (s RecordState) String() string {
	switch s {
	case RecordStateReceived:
		return "RECEIVED"
	case RecordStateRelayed:
		return "RELAYED"
	case RecordStateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// DynamoDBRepository is a Repository backed by a DynamoDB table whose hash
// key is the string attribute ID.
type DynamoDBRepository struct {
	client dynamodbiface.DynamoDBAPI
	table  string
	now    func() time.Time
}

var _ Repository = (*DynamoDBRepository)(nil)

func NewRepository(client dynamodbiface.DynamoDBAPI, table string) *DynamoDBRepository {
	return &DynamoDBRepository{client: client, table: table, now: time.Now}
}

// SeenBeforeOrStore reports whether the request is known and records it
// otherwise. The write is conditional so two receivers racing on the same
// request agree on a single winner.
func (r *DynamoDBRepository) SeenBeforeOrStore(ctx context.Context, action string, req *request.Request) (bool, error) {
	rec, err := toRecord(action, req)
	if err != nil {
		return false, err
	}
	item, err := r.get(ctx, rec.ID)
	if err != nil {
		return false, err
	}
	if item != nil {
		return true, nil
	}
	rec.Received = r.now().Unix()
	if err := r.put(ctx, rec); err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

// SetState records the outcome of relaying a request.
func (r *DynamoDBRepository) SetState(ctx context.Context, id string, state RecordState) error {
	_, err := r.client.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.table),
		Key: map[string]*dynamodb.AttributeValue{
			"ID": {S: aws.String(id)},
		},
		UpdateExpression: aws.String("SET #s = :s"),
		ExpressionAttributeNames: map[string]*string{
			"#s": aws.String("state"),
		},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":s": {N: aws.String(strconv.Itoa(int(state)))},
		},
	})
	return errors.Wrapf(err, "error updating record %s", id)
}

func (r *DynamoDBRepository) get(ctx context.Context, id string) (*record, error) {
	out, err := r.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key: map[string]*dynamodb.AttributeValue{
			"ID": {S: aws.String(id)},
		},
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, nil
	}
	rec := &record{}
	if err := dynamodbattribute.UnmarshalMap(out.Item, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *DynamoDBRepository) put(ctx context.Context, rec *record) error {
	item, err := dynamodbattribute.MarshalMap(rec)
	if err != nil {
		return err
	}
	_, err = r.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(ID)"),
	})
	return err
}

func toRecord(action string, req *request.Request) (*record, error) {
	if req == nil {
		return nil, errors.New("request is nil")
	}
	if req.UUID == "" {
		return nil, errors.New("request has no UUID")
	}
	return &record{
		ID:     req.UUID,
		Action: action,
		Kind:   req.Action.String(),
		State:  RecordStateReceived,
	}, nil
}
