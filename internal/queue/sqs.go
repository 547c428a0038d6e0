// Package queue provides the core.Publisher implementations that put job
// descriptors onto the processing queue: Amazon SQS for the managed
// deployment and NATS JetStream for the self-hosted one.
package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// ErrEmptyBody is returned when asked to publish an empty message.
var ErrEmptyBody = errors.New("message body cannot be empty")

// SQSSendAPI is the subset of the SQS client used by SQSPublisher.
type SQSSendAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher sends message bodies to one SQS queue.
type SQSPublisher struct {
	client   SQSSendAPI
	queueURL string
}

// NewSQSPublisher creates a publisher for queueURL.
func NewSQSPublisher(client SQSSendAPI, queueURL string) *SQSPublisher {
	return &SQSPublisher{client: client, queueURL: queueURL}
}

// NewSQSPublisherFromConfig builds the SQS client from a loaded AWS configuration.
func NewSQSPublisherFromConfig(awsConfig aws.Config, queueURL string) *SQSPublisher {
	return NewSQSPublisher(sqs.NewFromConfig(awsConfig), queueURL)
}

// Publish sends body as a single message.
func (p *SQSPublisher) Publish(ctx context.Context, body []byte) error {
	if len(body) == 0 {
		return ErrEmptyBody
	}

	_, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("failed to send message to queue %s: %w", p.queueURL, err)
	}

	return nil
}
