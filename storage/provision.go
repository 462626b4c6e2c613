package storage

import (
	"context"
	"errors"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
)

type tableCreator interface {
	CreateTable(ctx context.Context, options *aztables.CreateTableOptions) (aztables.CreateTableResponse, error)
}

type queueCreator interface {
	Create(ctx context.Context, o *azqueue.CreateOptions) (azqueue.CreateResponse, error)
}

// CreateTables creates each named table, skipping blanks and tables that
// already exist.
func CreateTables(ctx context.Context, connStr string, names []string) error {
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, nil)
	if err != nil {
		return err
	}
	for _, name := range names {
		if name == "" {
			continue
		}
		if err := createTable(ctx, svc.NewClient(name)); err != nil {
			return err
		}
	}
	return nil
}

// CreateQueues creates each named queue, skipping blanks and queues that
// already exist.
func CreateQueues(ctx context.Context, connStr string, names []string) error {
	svc, err := azqueue.NewServiceClientFromConnectionString(connStr, nil)
	if err != nil {
		return err
	}
	for _, name := range names {
		if name == "" {
			continue
		}
		if err := createQueue(ctx, svc.NewQueueClient(name)); err != nil {
			return err
		}
	}
	return nil
}

func createTable(ctx context.Context, c tableCreator) error {
	_, err := c.CreateTable(ctx, nil)
	if err != nil && !hasErrorCode(err, string(aztables.TableAlreadyExists)) {
		return err
	}
	return nil
}

func createQueue(ctx context.Context, c queueCreator) error {
	_, err := c.Create(ctx, nil)
	if err != nil && !hasErrorCode(err, "QueueAlreadyExists") {
		return err
	}
	return nil
}

func hasErrorCode(err error, code string) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.ErrorCode == code
}
