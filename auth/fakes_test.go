package auth

import (
	"context"
	"errors"

	"github.com/peakee-labs/blinders/transport"
)

type staticProvider map[string]Identity

func (p staticProvider) VerifyToken(_ context.Context, token string) (*Identity, error) {
	id, ok := p[token]
	if !ok {
		return nil, errors.New("unknown token")
	}
	return &id, nil
}

type fakeDirectory struct {
	records map[string]UserRecord
	err     error
	calls   int
}

func (d *fakeDirectory) FindBySubject(_ context.Context, subjectID string) (*UserRecord, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	rec, ok := d.records[subjectID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &rec, nil
}

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
