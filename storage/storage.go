package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"

	"github.com/peakee-labs/blinders/auth"
	"github.com/peakee-labs/blinders/domain"
)

type tableClient interface {
	GetEntity(ctx context.Context, partitionKey, rowKey string, options *aztables.GetEntityOptions) (aztables.GetEntityResponse, error)
	UpsertEntity(ctx context.Context, entity []byte, options *aztables.UpsertEntityOptions) (aztables.UpsertEntityResponse, error)
	UpdateEntity(ctx context.Context, entity []byte, options *aztables.UpdateEntityOptions) (aztables.UpdateEntityResponse, error)
	NewListEntitiesPager(options *aztables.ListEntitiesOptions) *runtime.Pager[aztables.ListEntitiesResponse]
}

// ErrNoExplainLog is returned when a user has no stored explain logs.
var ErrNoExplainLog = errors.New("no explain log for user")

const (
	defaultExplainPage = 10
	maxExplainPage     = 100
)

// Storage provides the Azure Table backed user directory and explain logs.
type Storage struct {
	users       tableClient
	explainLogs tableClient
}

// New creates a Storage instance from the given connection string.
func New(connStr, usersTable, explainLogsTable string) (*Storage, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Second * 30,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &Storage{users: svc.NewClient(usersTable), explainLogs: svc.NewClient(explainLogsTable)}, nil
}

type userEntity struct {
	aztables.Entity
	UserID string `json:"UserID"`
	Email  string `json:"Email,omitempty"`
	Name   string `json:"Name,omitempty"`
}

// FindBySubject looks the user up by identity-provider subject. Users are
// keyed by subject in both partition and row key.
func (s *Storage) FindBySubject(ctx context.Context, subjectID string) (*auth.UserRecord, error) {
	ent, err := s.users.GetEntity(ctx, subjectID, subjectID, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, auth.ErrUserNotFound
		}
		return nil, err
	}
	return decodeUserEntity(ent.Value)
}

func decodeUserEntity(data []byte) (*auth.UserRecord, error) {
	var ent userEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return nil, err
	}
	if ent.UserID == "" {
		return nil, auth.ErrUserNotFound
	}
	return &auth.UserRecord{ID: ent.UserID, SubjectID: ent.RowKey, Email: ent.Email, Name: ent.Name}, nil
}

// UpsertUser creates or replaces the directory record for rec.SubjectID.
func (s *Storage) UpsertUser(ctx context.Context, rec auth.UserRecord) error {
	payload, err := sonic.Marshal(userEntity{
		Entity: aztables.Entity{PartitionKey: rec.SubjectID, RowKey: rec.SubjectID},
		UserID: rec.ID,
		Email:  rec.Email,
		Name:   rec.Name,
	})
	if err == nil {
		_, err = s.users.UpsertEntity(ctx, payload, nil)
	}
	return err
}

type explainLogEntity struct {
	aztables.Entity
	SubjectID string `json:"SubjectID"`
	Text      string `json:"Text"`
	Sentence  string `json:"Sentence"`
	Response  string `json:"Response"`
	CreatedAt int64  `json:"CreatedAt"`
	GetCount  int    `json:"GetCount"`
}

func encodeExplainLog(l domain.ExplainLog) ([]byte, error) {
	resp, err := sonic.Marshal(l.Response)
	if err != nil {
		return nil, err
	}
	return sonic.Marshal(explainLogEntity{
		Entity:    aztables.Entity{PartitionKey: l.UserID, RowKey: l.ID},
		SubjectID: l.SubjectID,
		Text:      l.Request.Text,
		Sentence:  l.Request.Sentence,
		Response:  string(resp),
		CreatedAt: l.CreatedAt,
		GetCount:  l.GetCount,
	})
}

func decodeExplainLog(data []byte) (domain.ExplainLog, error) {
	var ent explainLogEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return domain.ExplainLog{}, err
	}
	l := domain.ExplainLog{
		ID:        ent.RowKey,
		UserID:    ent.PartitionKey,
		SubjectID: ent.SubjectID,
		Request:   domain.ExplainRequest{Text: ent.Text, Sentence: ent.Sentence},
		CreatedAt: ent.CreatedAt,
		GetCount:  ent.GetCount,
	}
	if ent.Response != "" {
		if err := sonic.UnmarshalString(ent.Response, &l.Response); err != nil {
			return domain.ExplainLog{}, err
		}
	}
	return l, nil
}

func userPartition(userID string) string {
	return "PartitionKey eq '" + strings.ReplaceAll(userID, "'", "''") + "'"
}

// AddExplainLog stores l keyed by user and log id. Replaying the same log
// overwrites the same row.
func (s *Storage) AddExplainLog(ctx context.Context, l domain.ExplainLog) error {
	if l.UserID == "" || l.ID == "" {
		return errors.New("explain log requires user id and id")
	}
	payload, err := encodeExplainLog(l)
	if err == nil {
		_, err = s.explainLogs.UpsertEntity(ctx, payload, nil)
	}
	return err
}

// ExplainLogs returns one page of userID's explain logs in row key order.
func (s *Storage) ExplainLogs(ctx context.Context, userID string, page domain.Pagination) ([]domain.ExplainLog, domain.Pagination, error) {
	if userID == "" {
		return nil, domain.Pagination{}, errors.New("user id is required")
	}
	limit := page.Limit
	switch {
	case limit <= 0:
		limit = defaultExplainPage
	case limit > maxExplainPage:
		limit = maxExplainPage
	}

	filter := userPartition(userID)
	top := int32(limit)
	opts := &aztables.ListEntitiesOptions{Filter: &filter, Top: &top}
	if page.Next != "" {
		opts.NextPartitionKey = &userID
		opts.NextRowKey = &page.Next
	}
	pager := s.explainLogs.NewListEntitiesPager(opts)

	logs := []domain.ExplainLog{}
	next := domain.Pagination{Limit: limit}
	if !pager.More() {
		return logs, next, nil
	}
	resp, err := pager.NextPage(ctx)
	if err != nil {
		return nil, domain.Pagination{}, err
	}
	for _, e := range resp.Entities {
		l, err := decodeExplainLog(e)
		if err != nil {
			return nil, domain.Pagination{}, err
		}
		logs = append(logs, l)
	}
	if resp.NextRowKey != nil && (resp.NextPartitionKey == nil || *resp.NextPartitionKey == userID) {
		next.Next = *resp.NextRowKey
	}
	return logs, next, nil
}

// LeastReadExplainLog returns the userID log handed out the fewest times,
// oldest first on ties, and counts this read against it.
func (s *Storage) LeastReadExplainLog(ctx context.Context, userID string) (*domain.ExplainLog, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	filter := userPartition(userID)
	pager := s.explainLogs.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})

	var pick *domain.ExplainLog
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			l, err := decodeExplainLog(e)
			if err != nil {
				return nil, err
			}
			if pick == nil || l.GetCount < pick.GetCount || (l.GetCount == pick.GetCount && l.CreatedAt < pick.CreatedAt) {
				pick = &l
			}
		}
	}
	if pick == nil {
		return nil, ErrNoExplainLog
	}

	pick.GetCount++
	payload, err := sonic.Marshal(struct {
		aztables.Entity
		GetCount int `json:"GetCount"`
	}{
		Entity:   aztables.Entity{PartitionKey: pick.UserID, RowKey: pick.ID},
		GetCount: pick.GetCount,
	})
	if err == nil {
		et := azcore.ETagAny
		_, err = s.explainLogs.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
	}
	if err != nil {
		return nil, err
	}
	return pick, nil
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == 404
}
