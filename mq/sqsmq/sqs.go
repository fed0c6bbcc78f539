package sqsmq

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/dayzy/notes/mq"
)

const ShareCleanupQueue = "ShareCleanupQueue"

type SQSMessageQueue struct {
	client   *sqs.Client
	queueURL string
}

func NewSQSMessageQueue(ctx context.Context, devMode bool, sqsEndpoint string, queueName string) (*SQSMessageQueue, error) {
	client, err := newSQSClient(ctx, devMode, sqsEndpoint)
	if err != nil {
		return nil, err
	}

	queueURL, err := findQueueURL(ctx, client, queueName)
	if err != nil {
		return nil, err
	}

	return &SQSMessageQueue{client, queueURL}, nil
}

// findQueueURL resolves the queue by name, falling back to listing queues
// for local emulators that do not implement GetQueueUrl.
func findQueueURL(ctx context.Context, client *sqs.Client, queueName string) (string, error) {
	if url, err := getQueueURL(ctx, client, queueName); err == nil {
		return url, nil
	}

	queues, err := getQueues(ctx, client)
	if err != nil {
		return "", err
	}
	for _, q := range queues {
		if strings.HasSuffix(q, "/"+queueName) {
			return q, nil
		}
	}
	return "", fmt.Errorf("given queue name '%s' not found in SQS", queueName)
}

func (sqsmq *SQSMessageQueue) Send(ctx context.Context, body string) error {
	return sendMessage(ctx, sqsmq, body)
}

func (sqsmq *SQSMessageQueue) Receive(ctx context.Context, visibilityTimeout int32) (*mq.Message, error) {
	return receiveMessage(ctx, sqsmq, visibilityTimeout)
}

func (sqsmq *SQSMessageQueue) Delete(ctx context.Context, msg *mq.Message) error {
	return deleteMessage(ctx, sqsmq, msg)
}

func (sqsmq *SQSMessageQueue) Retry(ctx context.Context, msg *mq.Message, delaySeconds int32) error {
	return changeVisibility(ctx, sqsmq, msg, delaySeconds)
}
