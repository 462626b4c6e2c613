package transport

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
)

// AzureQueues sends push payloads to Azure Storage queues.
type AzureQueues struct {
	svc *azqueue.ServiceClient
}

// NewAzureQueues connects to the queue service behind connStr.
func NewAzureQueues(connStr string) (*AzureQueues, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Second * 30,
				RetryDelay:    time.Millisecond * 500,
				MaxRetryDelay: time.Second * 5,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := azqueue.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &AzureQueues{svc: svc}, nil
}

func (q *AzureQueues) Send(ctx context.Context, queue, message string) error {
	_, err := q.svc.NewQueueClient(queue).EnqueueMessage(ctx, message, nil)
	return err
}
