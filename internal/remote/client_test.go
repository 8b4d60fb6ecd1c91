package remote_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"attrack/internal/attendance"
	"attrack/internal/remote"
)

func staticToken(token string) remote.TokenProvider {
	return func() (string, error) { return token, nil }
}

func newTestClient(t *testing.T, handler http.Handler, token string) *remote.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return remote.NewClient(srv.URL, 5*time.Second, staticToken(token), attendance.NewNopLogger())
}

func writeData(t *testing.T, w http.ResponseWriter, data any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"status": "success",
		"data":   data,
	}); err != nil {
		t.Errorf("encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "error",
		"message": message,
	})
}

func recordJSON(id, status string) map[string]any {
	return map[string]any{
		"id":         id,
		"status":     status,
		"created_at": "2024-01-15T00:00:00Z",
		"timestamp":  "2024-01-15T08:05:00Z",
	}
}

func TestClientFetchToday(t *testing.T) {
	t.Parallel()

	var gotAuth string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/attendance/today" || r.Method != http.MethodGet {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		body := recordJSON("srv-1", "ON_DUTY")
		body["latitude"] = -6.2
		body["longitude"] = 106.8
		writeData(t, w, body)
	}), "tok-123")

	rec, err := c.FetchToday(context.Background())
	if err != nil {
		t.Fatalf("FetchToday: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q, want Bearer tok-123", gotAuth)
	}
	if rec.ID != "srv-1" || rec.Status != attendance.StatusOnDuty {
		t.Errorf("record = %+v", rec)
	}
	if rec.Location == nil || rec.Location.Longitude != 106.8 {
		t.Errorf("location = %+v, want lng 106.8", rec.Location)
	}
}

func TestClientNoToken(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request reached the server without a token")
	}), "")

	_, err := c.FetchToday(context.Background())
	if attendance.KindOf(err) != attendance.KindAuth {
		t.Fatalf("error kind = %v (%v), want KindAuth", attendance.KindOf(err), err)
	}
}

func TestClientStatusClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		code     int
		message  string
		wantKind attendance.ErrorKind
	}{
		{name: "unauthorized", code: http.StatusUnauthorized, message: "token expired", wantKind: attendance.KindAuth},
		{name: "forbidden", code: http.StatusForbidden, message: "not allowed", wantKind: attendance.KindAuth},
		{name: "not found", code: http.StatusNotFound, message: "no record", wantKind: attendance.KindNotFound},
		{name: "server error", code: http.StatusInternalServerError, message: "boom", wantKind: attendance.KindServer},
		{name: "bad request", code: http.StatusBadRequest, message: "outside geofence", wantKind: attendance.KindServer},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, tt.code, tt.message)
			}), "tok")

			_, err := c.FetchToday(context.Background())
			if attendance.KindOf(err) != tt.wantKind {
				t.Fatalf("error kind = %v (%v), want %v", attendance.KindOf(err), err, tt.wantKind)
			}

			var aerr *attendance.Error
			if !errors.As(err, &aerr) {
				t.Fatalf("error %T does not unwrap to *attendance.Error", err)
			}
			if aerr.Message != tt.message {
				t.Errorf("message = %q, want server message %q", aerr.Message, tt.message)
			}
		})
	}
}

func TestClientNetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close() // nothing listens anymore

	c := remote.NewClient(url, time.Second, staticToken("tok"), attendance.NewNopLogger())
	_, err := c.FetchToday(context.Background())
	if attendance.KindOf(err) != attendance.KindNetwork {
		t.Fatalf("error kind = %v (%v), want KindNetwork", attendance.KindOf(err), err)
	}
}

func TestClientRejectsLoneCoordinate(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := recordJSON("srv-1", "ON_DUTY")
		body["latitude"] = -6.2
		writeData(t, w, body)
	}), "tok")

	_, err := c.FetchToday(context.Background())
	if attendance.KindOf(err) != attendance.KindInvalid {
		t.Fatalf("error kind = %v (%v), want KindInvalid", attendance.KindOf(err), err)
	}
}

func TestClientRejectsUnknownStatus(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeData(t, w, recordJSON("srv-1", "LUNCH"))
	}), "tok")

	_, err := c.FetchToday(context.Background())
	if attendance.KindOf(err) != attendance.KindInvalid {
		t.Fatalf("error kind = %v (%v), want KindInvalid", attendance.KindOf(err), err)
	}
}

func TestClientSubmitCheckIn(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/attendance/check-in" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req.Latitude != -6.2 || req.Longitude != 106.8 {
			t.Errorf("coords = %v,%v", req.Latitude, req.Longitude)
		}

		body := recordJSON("srv-9", "ON_DUTY")
		body["latitude"] = req.Latitude
		body["longitude"] = req.Longitude
		writeData(t, w, body)
	}), "tok")

	rec, err := c.SubmitCheckIn(context.Background(), attendance.Coordinates{Latitude: -6.2, Longitude: 106.8})
	if err != nil {
		t.Fatalf("SubmitCheckIn: %v", err)
	}
	if rec.ID != "srv-9" || rec.Status != attendance.StatusOnDuty {
		t.Errorf("record = %+v", rec)
	}
}

func TestClientSubmitPermit(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/attendance/permit" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req struct {
			Reason string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req.Reason != "medical appointment" {
			t.Errorf("reason = %q", req.Reason)
		}

		body := recordJSON("srv-9", "PERMIT")
		body["reason"] = req.Reason
		writeData(t, w, body)
	}), "tok")

	rec, err := c.SubmitPermit(context.Background(), "medical appointment")
	if err != nil {
		t.Fatalf("SubmitPermit: %v", err)
	}
	if rec.Reason != "medical appointment" {
		t.Errorf("reason = %q", rec.Reason)
	}
}

func TestClientFetchHistory(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("start") != "2024-01-01" || q.Get("end") != "2024-02-01" {
			t.Errorf("range query = %v", q)
		}
		writeData(t, w, []any{
			recordJSON("srv-2", "OFF_DUTY"),
			recordJSON("srv-1", "NOT_FILLED"),
		})
	}), "tok")

	recs, err := c.FetchHistory(context.Background(), attendance.HistoryRange{Start: start, End: end})
	if err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len = %d, want 2", len(recs))
	}
	if recs[0].ID != "srv-2" {
		t.Errorf("first ID = %q, want srv-2", recs[0].ID)
	}
}

func TestClientLogin(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/auth/login" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "" {
			t.Errorf("login sent Authorization header %q", auth)
		}
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req.Email != "alice@example.com" || req.Password != "hunter2" {
			t.Errorf("credentials = %q / %q", req.Email, req.Password)
		}
		writeData(t, w, map[string]string{"token": "tok-999"})
	}), "")

	token, err := c.Login(context.Background(), "alice@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token != "tok-999" {
		t.Errorf("token = %q, want tok-999", token)
	}
}

func TestClientLoginBadCredentials(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	}), "")

	_, err := c.Login(context.Background(), "alice@example.com", "wrong")
	if attendance.KindOf(err) != attendance.KindAuth {
		t.Fatalf("error kind = %v (%v), want KindAuth", attendance.KindOf(err), err)
	}
}
