package attendance

import "context"

// Remote is typed access to the remote attendance API. Every call can
// fail with a classified *Error: KindNetwork for connectivity or
// timeout, KindAuth for a missing or rejected session token, KindServer
// for a non-2xx response carrying a server message.
type Remote interface {
	// FetchToday returns the current day's record, or a KindNotFound
	// error when the remote has no record for today yet.
	FetchToday(ctx context.Context) (*Record, error)

	// FetchByID returns the record with the given id; KindNotFound if
	// the id does not exist remotely.
	FetchByID(ctx context.Context, id string) (*Record, error)

	// FetchHistory returns the records in the range, newest first.
	FetchHistory(ctx context.Context, r HistoryRange) ([]*Record, error)

	// SubmitCheckIn records a check-in at the given coordinates and
	// returns the confirmed record.
	SubmitCheckIn(ctx context.Context, coords Coordinates) (*Record, error)

	// SubmitCheckOut records a check-out at the given coordinates and
	// returns the confirmed record.
	SubmitCheckOut(ctx context.Context, coords Coordinates) (*Record, error)

	// SubmitPermit records an absence with the given reason and returns
	// the confirmed record.
	SubmitPermit(ctx context.Context, reason string) (*Record, error)
}
