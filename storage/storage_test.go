package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"

	"github.com/peakee-labs/blinders/auth"
	"github.com/peakee-labs/blinders/domain"
)

type fakeTable struct {
	rows     map[string][]byte
	getErr   error
	upserted [][]byte
	updated  [][]byte
	listOpts []*aztables.ListEntitiesOptions
}

func newFakeTable() *fakeTable {
	return &fakeTable{rows: map[string][]byte{}}
}

func (f *fakeTable) GetEntity(_ context.Context, pk, rk string, _ *aztables.GetEntityOptions) (aztables.GetEntityResponse, error) {
	if f.getErr != nil {
		return aztables.GetEntityResponse{}, f.getErr
	}
	row, ok := f.rows[pk+"/"+rk]
	if !ok {
		return aztables.GetEntityResponse{}, &azcore.ResponseError{StatusCode: 404, ErrorCode: "ResourceNotFound"}
	}
	return aztables.GetEntityResponse{Value: row}, nil
}

func (f *fakeTable) UpsertEntity(_ context.Context, entity []byte, _ *aztables.UpsertEntityOptions) (aztables.UpsertEntityResponse, error) {
	var keys aztables.Entity
	if err := sonic.Unmarshal(entity, &keys); err != nil {
		return aztables.UpsertEntityResponse{}, err
	}
	f.rows[keys.PartitionKey+"/"+keys.RowKey] = entity
	f.upserted = append(f.upserted, entity)
	return aztables.UpsertEntityResponse{}, nil
}

func (f *fakeTable) UpdateEntity(_ context.Context, entity []byte, _ *aztables.UpdateEntityOptions) (aztables.UpdateEntityResponse, error) {
	var patch map[string]any
	if err := sonic.Unmarshal(entity, &patch); err != nil {
		return aztables.UpdateEntityResponse{}, err
	}
	key := patch["PartitionKey"].(string) + "/" + patch["RowKey"].(string)
	row, ok := f.rows[key]
	if !ok {
		return aztables.UpdateEntityResponse{}, &azcore.ResponseError{StatusCode: 404, ErrorCode: "ResourceNotFound"}
	}
	var merged map[string]any
	if err := sonic.Unmarshal(row, &merged); err != nil {
		return aztables.UpdateEntityResponse{}, err
	}
	for k, v := range patch {
		merged[k] = v
	}
	f.rows[key], _ = sonic.Marshal(merged)
	f.updated = append(f.updated, entity)
	return aztables.UpdateEntityResponse{}, nil
}

// NewListEntitiesPager serves rows of the partition named in a
// "PartitionKey eq '<pk>'" filter, ordered by row key and paged by Top.
func (f *fakeTable) NewListEntitiesPager(opts *aztables.ListEntitiesOptions) *runtime.Pager[aztables.ListEntitiesResponse] {
	f.listOpts = append(f.listOpts, opts)
	pk := strings.TrimSuffix(strings.TrimPrefix(*opts.Filter, "PartitionKey eq '"), "'")
	var keys []string
	for k := range f.rows {
		if strings.HasPrefix(k, pk+"/") {
			keys = append(keys, strings.TrimPrefix(k, pk+"/"))
		}
	}
	sort.Strings(keys)

	start := ""
	if opts.NextRowKey != nil {
		start = *opts.NextRowKey
	}
	return runtime.NewPager(runtime.PagingHandler[aztables.ListEntitiesResponse]{
		More: func(page aztables.ListEntitiesResponse) bool { return page.NextRowKey != nil },
		Fetcher: func(_ context.Context, page *aztables.ListEntitiesResponse) (aztables.ListEntitiesResponse, error) {
			if page != nil {
				start = *page.NextRowKey
			}
			var resp aztables.ListEntitiesResponse
			for i, rk := range keys {
				if rk < start {
					continue
				}
				if opts.Top != nil && len(resp.Entities) == int(*opts.Top) {
					next := keys[i]
					resp.NextPartitionKey = &pk
					resp.NextRowKey = &next
					break
				}
				resp.Entities = append(resp.Entities, f.rows[pk+"/"+rk])
			}
			return resp, nil
		},
	})
}

func TestFindBySubjectRoundTrip(t *testing.T) {
	users := newFakeTable()
	s := &Storage{users: users, explainLogs: newFakeTable()}
	ctx := context.Background()

	rec := auth.UserRecord{ID: "u-42", SubjectID: "firebase-1", Email: "a@b.c", Name: "Ann"}
	if err := s.UpsertUser(ctx, rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := s.FindBySubject(ctx, "firebase-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if *got != rec {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestFindBySubjectNotFound(t *testing.T) {
	s := &Storage{users: newFakeTable(), explainLogs: newFakeTable()}
	_, err := s.FindBySubject(context.Background(), "missing")
	if !errors.Is(err, auth.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestFindBySubjectStoreError(t *testing.T) {
	users := newFakeTable()
	users.getErr = &azcore.ResponseError{StatusCode: 500}
	s := &Storage{users: users, explainLogs: newFakeTable()}
	_, err := s.FindBySubject(context.Background(), "x")
	if err == nil || errors.Is(err, auth.ErrUserNotFound) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestDecodeUserEntityWithoutID(t *testing.T) {
	_, err := decodeUserEntity([]byte(`{"PartitionKey":"s","RowKey":"s"}`))
	if !errors.Is(err, auth.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAddExplainLog(t *testing.T) {
	logs := newFakeTable()
	s := &Storage{users: newFakeTable(), explainLogs: logs}
	entry := domain.ExplainLog{
		ID:        "log-1",
		UserID:    "u-1",
		SubjectID: "sub-1",
		Request:   domain.ExplainRequest{Text: "run", Sentence: "I run daily"},
		Response:  domain.Explanation{Translate: "chạy"},
		CreatedAt: 1700000000000,
	}
	if err := s.AddExplainLog(context.Background(), entry); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.AddExplainLog(context.Background(), entry); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(logs.rows) != 1 {
		t.Fatalf("expected replay to overwrite a single row, got %d", len(logs.rows))
	}

	var stored explainLogEntity
	if err := sonic.Unmarshal(logs.rows["u-1/log-1"], &stored); err != nil {
		t.Fatalf("decode stored: %v", err)
	}
	if stored.Text != "run" || stored.SubjectID != "sub-1" || stored.CreatedAt != entry.CreatedAt {
		t.Fatalf("unexpected entity: %+v", stored)
	}
	var resp domain.Explanation
	if err := sonic.Unmarshal([]byte(stored.Response), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Translate != "chạy" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestAddExplainLogRequiresKeys(t *testing.T) {
	s := &Storage{users: newFakeTable(), explainLogs: newFakeTable()}
	if err := s.AddExplainLog(context.Background(), domain.ExplainLog{ID: "x"}); err == nil {
		t.Fatal("expected error for missing user id")
	}
}

func seedExplainLogs(t *testing.T, s *Storage, userID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := s.AddExplainLog(context.Background(), domain.ExplainLog{
			ID:        "log-" + string(rune('a'+i)),
			UserID:    userID,
			Request:   domain.ExplainRequest{Text: "word", Sentence: "a word here"},
			Response:  domain.Explanation{Translate: "từ"},
			CreatedAt: int64(1000 - i),
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestExplainLogsPages(t *testing.T) {
	logs := newFakeTable()
	s := &Storage{users: newFakeTable(), explainLogs: logs}
	seedExplainLogs(t, s, "u-1", 5)
	seedExplainLogs(t, s, "u-2", 2)
	ctx := context.Background()

	first, page, err := s.ExplainLogs(ctx, "u-1", domain.Pagination{Limit: 3})
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first) != 3 || first[0].ID != "log-a" || page.Next != "log-d" || page.Limit != 3 {
		t.Fatalf("unexpected first page: %+v %+v", first, page)
	}
	if first[0].Response.Translate != "từ" || first[0].UserID != "u-1" {
		t.Fatalf("log not decoded: %+v", first[0])
	}

	second, page, err := s.ExplainLogs(ctx, "u-1", page)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second) != 2 || second[0].ID != "log-d" || page.Next != "" {
		t.Fatalf("unexpected second page: %+v %+v", second, page)
	}
	if got := *logs.listOpts[1].NextPartitionKey; got != "u-1" {
		t.Fatalf("continuation must stay in the user partition, got %q", got)
	}
}

func TestExplainLogsDefaultsAndEscapes(t *testing.T) {
	logs := newFakeTable()
	s := &Storage{users: newFakeTable(), explainLogs: logs}

	got, page, err := s.ExplainLogs(context.Background(), "o'brien", domain.Pagination{Limit: 1000})
	if err != nil || len(got) != 0 || page.Limit != maxExplainPage {
		t.Fatalf("unexpected result: %v %+v %v", got, page, err)
	}
	if f := *logs.listOpts[0].Filter; f != "PartitionKey eq 'o''brien'" {
		t.Fatalf("unexpected filter %q", f)
	}
	if _, _, err := s.ExplainLogs(context.Background(), "", domain.Pagination{}); err == nil {
		t.Fatal("expected error for empty user id")
	}
}

func TestLeastReadExplainLogRotates(t *testing.T) {
	logs := newFakeTable()
	s := &Storage{users: newFakeTable(), explainLogs: logs}
	seedExplainLogs(t, s, "u-1", 2)
	ctx := context.Background()

	// log-b is older, so it goes first while both are unread
	first, err := s.LeastReadExplainLog(ctx, "u-1")
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	if first.ID != "log-b" || first.GetCount != 1 {
		t.Fatalf("unexpected first log: %+v", first)
	}
	second, err := s.LeastReadExplainLog(ctx, "u-1")
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if second.ID != "log-a" || second.GetCount != 1 {
		t.Fatalf("unexpected second log: %+v", second)
	}
	if len(logs.updated) != 2 {
		t.Fatalf("expected two count updates, got %d", len(logs.updated))
	}

	if _, err := s.LeastReadExplainLog(ctx, "nobody"); !errors.Is(err, ErrNoExplainLog) {
		t.Fatalf("expected ErrNoExplainLog, got %v", err)
	}
}
