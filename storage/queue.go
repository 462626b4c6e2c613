package storage

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
)

type queueClient interface {
	DequeueMessage(ctx context.Context, o *azqueue.DequeueMessageOptions) (azqueue.DequeueMessagesResponse, error)
	DeleteMessage(ctx context.Context, messageID string, popReceipt string, o *azqueue.DeleteMessageOptions) (azqueue.DeleteMessageResponse, error)
}

// Message is a dequeued queue message.
type Message struct {
	ID           string
	PopReceipt   string
	Text         string
	DequeueCount int64
}

// Queue consumes messages from a single Azure Storage queue.
type Queue struct {
	client            queueClient
	visibilityTimeout int32
}

// NewQueue connects to queue name. Dequeued messages stay invisible for
// visibility before they are redelivered.
func NewQueue(connStr, name string, visibility time.Duration) (*Queue, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	c, err := azqueue.NewQueueClientFromConnectionString(connStr, name, &opts)
	if err != nil {
		return nil, err
	}
	return &Queue{client: c, visibilityTimeout: int32(visibility / time.Second)}, nil
}

// Dequeue retrieves a single message, or nil when the queue is empty.
func (q *Queue) Dequeue(ctx context.Context) (*Message, error) {
	var opts *azqueue.DequeueMessageOptions
	if q.visibilityTimeout > 0 {
		vt := q.visibilityTimeout
		opts = &azqueue.DequeueMessageOptions{VisibilityTimeout: &vt}
	}
	resp, err := q.client.DequeueMessage(ctx, opts)
	if err != nil {
		return nil, err
	}
	if len(resp.Messages) == 0 {
		return nil, nil
	}
	m := resp.Messages[0]
	msg := &Message{}
	if m.MessageID != nil {
		msg.ID = *m.MessageID
	}
	if m.PopReceipt != nil {
		msg.PopReceipt = *m.PopReceipt
	}
	if m.MessageText != nil {
		msg.Text = *m.MessageText
	}
	if m.DequeueCount != nil {
		msg.DequeueCount = *m.DequeueCount
	}
	return msg, nil
}

// Delete removes a processed message from the queue.
func (q *Queue) Delete(ctx context.Context, msg *Message) error {
	_, err := q.client.DeleteMessage(ctx, msg.ID, msg.PopReceipt, nil)
	return err
}
