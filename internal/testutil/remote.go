package testutil

import (
	"context"
	"sync"

	"attrack/internal/attendance"
)

// FakeRemote is a scripted attendance.Remote. Tests set the response
// fields before use; every method records that it was called. Safe for
// concurrent use.
type FakeRemote struct {
	mu sync.Mutex

	TodayRec *attendance.Record
	TodayErr error

	ByID    map[string]*attendance.Record
	ByIDErr error

	HistoryRecs []*attendance.Record
	HistoryErr  error

	SubmitRec *attendance.Record
	SubmitErr error

	TodayCalls   int
	ByIDCalls    int
	HistoryCalls int
	SubmitCalls  int

	LastCoords attendance.Coordinates
	LastReason string
}

var _ attendance.Remote = (*FakeRemote)(nil)

func NewFakeRemote() *FakeRemote {
	return &FakeRemote{ByID: make(map[string]*attendance.Record)}
}

func (f *FakeRemote) FetchToday(_ context.Context) (*attendance.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TodayCalls++
	if f.TodayErr != nil {
		return nil, f.TodayErr
	}
	return f.TodayRec.Clone(), nil
}

func (f *FakeRemote) FetchByID(_ context.Context, id string) (*attendance.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ByIDCalls++
	if f.ByIDErr != nil {
		return nil, f.ByIDErr
	}
	rec, ok := f.ByID[id]
	if !ok {
		return nil, attendance.NotFoundError("record not found")
	}
	return rec.Clone(), nil
}

func (f *FakeRemote) FetchHistory(_ context.Context, _ attendance.HistoryRange) ([]*attendance.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.HistoryCalls++
	if f.HistoryErr != nil {
		return nil, f.HistoryErr
	}
	out := make([]*attendance.Record, len(f.HistoryRecs))
	for i, r := range f.HistoryRecs {
		out[i] = r.Clone()
	}
	return out, nil
}

func (f *FakeRemote) SubmitCheckIn(_ context.Context, coords attendance.Coordinates) (*attendance.Record, error) {
	return f.submit(coords, "")
}

func (f *FakeRemote) SubmitCheckOut(_ context.Context, coords attendance.Coordinates) (*attendance.Record, error) {
	return f.submit(coords, "")
}

func (f *FakeRemote) SubmitPermit(_ context.Context, reason string) (*attendance.Record, error) {
	return f.submit(attendance.Coordinates{}, reason)
}

func (f *FakeRemote) submit(coords attendance.Coordinates, reason string) (*attendance.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SubmitCalls++
	f.LastCoords = coords
	f.LastReason = reason
	if f.SubmitErr != nil {
		return nil, f.SubmitErr
	}
	return f.SubmitRec.Clone(), nil
}

// SetToday swaps the scripted today response under the lock.
func (f *FakeRemote) SetToday(rec *attendance.Record, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TodayRec = rec
	f.TodayErr = err
}
