package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"attrack/internal/archive"
	"attrack/internal/attendance"
	"attrack/internal/cache"
	"attrack/internal/config"
	"attrack/internal/prefs"
	"attrack/internal/remote"
)

// App wires the configured components together for one CLI invocation:
// prefs store, local cache, remote client and the synchronization
// engine. Commands call its methods and render the results.
type App struct {
	cfg    *config.Config
	prefs  *prefs.Store
	cache  attendance.Cache
	client *remote.Client
	engine *attendance.Engine

	logger  attendance.Logger
	logFile *os.File
}

// NewApp assembles an App from the given config. operation tags every
// log line written during this invocation.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	opID := fmt.Sprintf("%s-%s", operation, time.Now().UTC().Format("20060102T150405Z"))
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("setting up logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	sealer := prefs.NewSealer(cfg.IdentityPath)
	store := prefs.NewStore(cfg.PrefsPath(), sealer)

	account, err := store.Account()
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("reading prefs: %w", err)
	}

	client := remote.NewClient(
		cfg.ServerURL,
		time.Duration(cfg.Timeout())*time.Second,
		store.AuthToken,
		logger,
	)

	c, err := cache.NewCacheFromConfig(cfg.Database, sanitizeAccount(account))
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening cache: %w", err)
	}

	engine, err := attendance.NewEngine(c, client, account, logger, &attendance.RealClock{}, &attendance.UUIDGenerator{})
	if err != nil {
		c.Close()
		logFile.Close()
		return nil, fmt.Errorf("starting engine: %w", err)
	}

	logger.Info("app started", "operation", operation, "account", account)

	return &App{
		cfg:     cfg,
		prefs:   store,
		cache:   c,
		client:  client,
		engine:  engine,
		logger:  logger,
		logFile: logFile,
	}, nil
}

// Close releases the engine, the cache and the log file, in that order.
func (a *App) Close() {
	a.engine.Close()
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("closing cache", "err", err)
	}
	a.logFile.Close()
}

// Login exchanges credentials for a session token and stores the sealed
// token in the prefs file. The cache is cleared when the account
// changes; the engine of the next invocation re-establishes ownership.
func (a *App) Login(ctx context.Context, email, password string) error {
	token, err := a.client.Login(ctx, email, password)
	if err != nil {
		return err
	}

	previous, err := a.prefs.Account()
	if err != nil {
		return err
	}
	if previous != "" && previous != email {
		a.logger.Info("account changed, clearing cache", "previous", previous, "account", email)
		if err := a.cache.Clear(ctx); err != nil {
			return fmt.Errorf("clearing cache for account switch: %w", err)
		}
	}

	if err := a.prefs.SetSession(email, token); err != nil {
		return fmt.Errorf("storing session: %w", err)
	}
	a.logger.Info("logged in", "account", email)
	return nil
}

// Logout drops the session and wipes the local cache.
func (a *App) Logout(ctx context.Context) error {
	if err := a.prefs.ClearSession(); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	if err := a.cache.Clear(ctx); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	a.logger.Info("logged out")
	return nil
}

// Today resolves the current day's record.
func (a *App) Today(ctx context.Context) (attendance.Result[*attendance.Record], error) {
	return awaitTerminal(ctx, a.engine.ObserveToday())
}

// Detail resolves a single record by id.
func (a *App) Detail(ctx context.Context, id string) (attendance.Result[*attendance.Record], error) {
	return awaitTerminal(ctx, a.engine.ObserveDetail(id))
}

// History resolves the records in the given range, newest first.
func (a *App) History(ctx context.Context, r attendance.HistoryRange) (attendance.Result[[]*attendance.Record], error) {
	return awaitTerminal(ctx, a.engine.ObserveHistory(r))
}

// CheckIn submits a check-in and flips the duty flag on success.
func (a *App) CheckIn(ctx context.Context, coords attendance.Coordinates) (*attendance.Record, error) {
	rec, err := a.engine.CheckIn(ctx, coords)
	if err != nil {
		return nil, err
	}
	if perr := a.prefs.SetOnDuty(true); perr != nil {
		a.logger.Warn("updating duty flag", "err", perr)
	}
	return rec, nil
}

// CheckOut submits a check-out and clears the duty flag on success.
func (a *App) CheckOut(ctx context.Context, coords attendance.Coordinates) (*attendance.Record, error) {
	rec, err := a.engine.CheckOut(ctx, coords)
	if err != nil {
		return nil, err
	}
	if perr := a.prefs.SetOnDuty(false); perr != nil {
		a.logger.Warn("updating duty flag", "err", perr)
	}
	return rec, nil
}

// Permit submits an absence with the given reason.
func (a *App) Permit(ctx context.Context, reason string) (*attendance.Record, error) {
	rec, err := a.engine.SubmitPermit(ctx, reason)
	if err != nil {
		return nil, err
	}
	if perr := a.prefs.SetOnDuty(false); perr != nil {
		a.logger.Warn("updating duty flag", "err", perr)
	}
	return rec, nil
}

// OnDuty returns the duty flag from the prefs file.
func (a *App) OnDuty() (bool, error) {
	return a.prefs.OnDuty()
}

// DarkTheme returns the theme flag from the prefs file.
func (a *App) DarkTheme() (bool, error) {
	return a.prefs.DarkTheme()
}

// SetDarkTheme stores the theme flag.
func (a *App) SetDarkTheme(v bool) error {
	return a.prefs.SetDarkTheme(v)
}

// exportRecord is the JSON shape of one record in an export document.
type exportRecord struct {
	ID        string   `json:"id"`
	Status    string   `json:"status"`
	Day       string   `json:"day"`
	CreatedAt string   `json:"created_at"`
	Timestamp string   `json:"timestamp"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Reason    string   `json:"reason,omitempty"`
}

// Export resolves the given history range and uploads it as a JSON
// document to every configured archive. The export key is
// <account>/<range>-<timestamp>.json.
func (a *App) Export(ctx context.Context, r attendance.HistoryRange) (string, error) {
	if len(a.cfg.Archives) == 0 {
		return "", fmt.Errorf("no archives configured")
	}

	res, err := a.History(ctx, r)
	if err != nil {
		return "", err
	}
	if res.State == attendance.StateError {
		return "", res.Err
	}

	out := make([]exportRecord, len(res.Value))
	for i, rec := range res.Value {
		e := exportRecord{
			ID:        rec.ID,
			Status:    string(rec.Status),
			Day:       rec.Day(),
			CreatedAt: rec.CreatedAt.Format(time.RFC3339),
			Timestamp: rec.Timestamp.Format(time.RFC3339),
			Reason:    rec.Reason,
		}
		if rec.Location != nil {
			lat, lng := rec.Location.Latitude, rec.Location.Longitude
			e.Latitude, e.Longitude = &lat, &lng
		}
		out[i] = e
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding export: %w", err)
	}

	account, err := a.prefs.Account()
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s/%s-%s.json",
		sanitizeAccount(account), r.Key(), time.Now().UTC().Format("20060102T150405Z"))

	for _, acfg := range a.cfg.Archives {
		archiver, err := archive.NewArchiverFromConfig(ctx, acfg)
		if err != nil {
			return "", fmt.Errorf("archive %s: %w", acfg.Name, err)
		}
		if err := archiver.Put(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
			return "", fmt.Errorf("archive %s: %w", acfg.Name, err)
		}
		a.logger.Info("history exported", "archive", acfg.Name, "key", key, "records", len(out))
	}

	return key, nil
}

// awaitTerminal drains a stream subscription until the first non-loading
// state arrives. CLI invocations want exactly one resolved answer.
func awaitTerminal[T any](ctx context.Context, s *attendance.Stream[T]) (attendance.Result[T], error) {
	ch := s.Subscribe(ctx)
	for {
		select {
		case res, ok := <-ch:
			if !ok {
				return attendance.Result[T]{}, ctx.Err()
			}
			if res.State != attendance.StateLoading {
				return res, nil
			}
		case <-ctx.Done():
			return attendance.Result[T]{}, ctx.Err()
		}
	}
}

// sanitizeAccount turns an account email into a filesystem-safe token
// for cache filenames and export keys.
func sanitizeAccount(account string) string {
	if account == "" {
		return ""
	}
	repl := strings.NewReplacer("@", "_at_", "/", "_", "\\", "_", ":", "_")
	return repl.Replace(account)
}
