package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/peakee-labs/blinders/auth"
	"github.com/peakee-labs/blinders/domain"
	"github.com/peakee-labs/blinders/gateway"
	"github.com/peakee-labs/blinders/storage"
	"github.com/peakee-labs/blinders/transport"
)

type fakeTransport struct {
	target  transport.Target
	payload []byte
	res     []byte
	err     error
}

func (f *fakeTransport) Request(_ context.Context, target transport.Target, payload []byte) ([]byte, error) {
	f.target = target
	f.payload = payload
	return f.res, f.err
}

func (f *fakeTransport) Push(context.Context, transport.Target, []byte) error {
	return errors.New("unexpected push")
}

type fakeIndex struct {
	stored  []domain.MatchInfo
	vectors [][]float32
	exclude string
	limit   uint64
	matches []storage.Match
	err     error
}

func (f *fakeIndex) UpsertMatch(_ context.Context, info domain.MatchInfo, vector []float32) error {
	if f.err != nil {
		return f.err
	}
	f.stored = append(f.stored, info)
	f.vectors = append(f.vectors, vector)
	return nil
}

func (f *fakeIndex) Similar(_ context.Context, _ []float32, exclude string, limit uint64) ([]storage.Match, error) {
	f.exclude = exclude
	f.limit = limit
	return f.matches, f.err
}

const profileBody = `{"gender":"female","major":"student","native":"vi-VN","country":"VN","learnings":["en-US"],"interests":["music"],"age":21}`

var caller = auth.User{Identity: auth.Identity{SubjectID: "uid-1"}, InternalID: "u-1"}

func newTestService() (*Service, *fakeTransport, *fakeIndex) {
	tr := &fakeTransport{res: []byte(`{"embedded":[0.1,0.2]}`)}
	idx := &fakeIndex{}
	return NewService(tr, "embed", idx, log.New()), tr, idx
}

func TestEmbedProfileStoresCallerVector(t *testing.T) {
	svc, tr, idx := newTestService()

	resp, err := svc.EmbedProfileHandler()(context.Background(), gateway.Request{Body: profileBody}, caller)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if resp.StatusCode != http.StatusOK || resp.Body != `{"embedded":[0.1,0.2]}` {
		t.Fatalf("unexpected response: %d %s", resp.StatusCode, resp.Body)
	}
	if tr.target != "embed" {
		t.Fatalf("unexpected target %q", tr.target)
	}
	var sent domain.EmbeddingRequest
	if err := sonic.Unmarshal(tr.payload, &sent); err != nil {
		t.Fatalf("decode sent payload: %v", err)
	}
	if sent.Type != domain.Embedding || !strings.HasPrefix(sent.Payload, "[BEGIN]gender: female") {
		t.Fatalf("unexpected embed request: %+v", sent)
	}
	if len(idx.stored) != 1 || idx.stored[0].UserID != "u-1" {
		t.Fatalf("expected profile stored under internal id, got %+v", idx.stored)
	}
}

func TestEmbedProfileRejectsInvalidProfile(t *testing.T) {
	svc, tr, _ := newTestService()

	cases := map[string]string{
		"":                        "match info is required",
		"{":                       "cannot unmarshal user match",
		`{"learnings":["en-US"]}`: "native language is required",
		`{"native":"vi-VN"}`:      "at least one learning language is required",
	}
	for body, want := range cases {
		resp, err := svc.EmbedProfileHandler()(context.Background(), gateway.Request{Body: body}, caller)
		if err != nil {
			t.Fatalf("handler: %v", err)
		}
		if resp.StatusCode != http.StatusBadRequest || resp.Body != want {
			t.Fatalf("body %q: unexpected response %d %q", body, resp.StatusCode, resp.Body)
		}
	}
	if tr.payload != nil {
		t.Fatal("invalid profile must not reach the embed function")
	}
}

func TestEmbedProfileRemoteFailure(t *testing.T) {
	svc, tr, idx := newTestService()
	tr.err = &transport.RemoteInvocationError{Target: "embed", Message: "quota exceeded"}

	resp, _ := svc.EmbedProfileHandler()(context.Background(), gateway.Request{Body: profileBody}, caller)
	if resp.StatusCode != http.StatusBadRequest || resp.Body != "cannot add user match" {
		t.Fatalf("unexpected response: %d %q", resp.StatusCode, resp.Body)
	}
	if len(idx.stored) != 0 {
		t.Fatal("nothing should be stored")
	}
}

func TestAddUserMatchInfoFunction(t *testing.T) {
	svc, _, idx := newTestService()
	h := svc.AddUserMatchInfoFunction()

	payload := `{"type":"ADD_USER_MATCH_INFO","matchInfo":{"userId":"u-9","native":"en-US","learnings":["vi-VN"]}}`
	res, err := h(context.Background(), []byte(payload))
	if err != nil {
		t.Fatalf("function: %v", err)
	}
	if string(res) != `{"embedded":[0.1,0.2]}` {
		t.Fatalf("unexpected result: %s", res)
	}
	if len(idx.stored) != 1 || idx.stored[0].UserID != "u-9" {
		t.Fatalf("unexpected stored profiles: %+v", idx.stored)
	}

	if _, err := h(context.Background(), []byte(`{"type":"EMBEDDING"}`)); err == nil {
		t.Fatal("expected error for wrong type")
	}
	if _, err := h(context.Background(), []byte(`{"type":"ADD_USER_MATCH_INFO","matchInfo":{"native":"en-US","learnings":["vi"]}}`)); err == nil {
		t.Fatal("expected error without user id")
	}
}

func TestSuggestExcludesCaller(t *testing.T) {
	svc, _, idx := newTestService()
	idx.matches = []storage.Match{{UserID: "u-2", Score: 0.8}}

	req := gateway.Request{Body: profileBody, QueryStringParameters: map[string]string{"limit": "3"}}
	resp, err := svc.SuggestHandler()(context.Background(), req, caller)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if resp.StatusCode != http.StatusOK || !strings.Contains(resp.Body, `"userId":"u-2"`) {
		t.Fatalf("unexpected response: %d %s", resp.StatusCode, resp.Body)
	}
	if idx.exclude != "u-1" || idx.limit != 3 {
		t.Fatalf("unexpected query: exclude=%q limit=%d", idx.exclude, idx.limit)
	}

	req.QueryStringParameters["limit"] = "1000"
	resp, _ = svc.SuggestHandler()(context.Background(), req, caller)
	if resp.StatusCode != http.StatusBadRequest || resp.Body != "invalid limit" {
		t.Fatalf("unexpected response: %d %q", resp.StatusCode, resp.Body)
	}
}
