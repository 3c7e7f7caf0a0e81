package portal_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"clockline/internal/domain"
	"clockline/internal/portal"
)

func TestNewEndpointsDerivation(t *testing.T) {
	ep := portal.NewEndpoints("https://dooray.com/orgs", "acme")
	if ep.LoginURL != "https://dooray.com/orgs" {
		t.Fatalf("login url = %s", ep.LoginURL)
	}
	if ep.Origin != "https://acme.dooray.com" {
		t.Fatalf("origin = %s", ep.Origin)
	}
	if ep.WorkingTimesURL != "https://acme.dooray.com/wapi/work-schedule/v1/working-times" {
		t.Fatalf("working times url = %s", ep.WorkingTimesURL)
	}
}

func TestSessionLifecycle(t *testing.T) {
	start := time.Date(2026, 1, 7, 9, 0, 0, 0, time.UTC)
	s := &portal.Session{CreatedAt: start, LastActivity: start}
	if !s.Live() {
		t.Fatal("fresh session must be live")
	}
	s.Touch(start.Add(5 * time.Minute))
	if got := s.Age(start.Add(8 * time.Minute)); got != 3*time.Minute {
		t.Fatalf("age = %s, want 3m", got)
	}
	s.MarkDead()
	if s.Live() {
		t.Fatal("dead session must not be live")
	}
	var nilSession *portal.Session
	if nilSession.Live() {
		t.Fatal("nil session must not be live")
	}
}

func newBrowser(workingTimesURL string, submitTimeout time.Duration) *portal.Browser {
	b := portal.NewBrowser(portal.Endpoints{
		Origin:          "https://acme.dooray.com",
		WorkingTimesURL: workingTimesURL,
	}, time.Second, submitTimeout, zerolog.Nop())
	return b
}

func TestSubmitPassesPortalAnswerThrough(t *testing.T) {
	const envelope = `{"header":{"isSuccessful":true,"resultCode":0,"resultMessage":""}}`
	var seen struct {
		baseDate       string
		attendanceType string
		cookie         string
		origin         string
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		var payload struct {
			BaseDate       string `json:"baseDate"`
			AttendanceType string `json:"attendanceType"`
		}
		data, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(data, &payload); err != nil {
			t.Errorf("payload: %v", err)
		}
		seen.baseDate = payload.BaseDate
		seen.attendanceType = payload.AttendanceType
		if c, err := r.Cookie("SESSION"); err == nil {
			seen.cookie = c.Value
		}
		seen.origin = r.Header.Get("Origin")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, envelope)
	}))
	defer ts.Close()

	b := newBrowser(ts.URL, 5*time.Second)
	start := time.Date(2026, 1, 7, 9, 0, 0, 0, time.UTC)
	clock := start
	b.Now = func() time.Time { return clock }
	s := &portal.Session{
		Cookies:      []*http.Cookie{{Name: "SESSION", Value: "abc123"}},
		CreatedAt:    start,
		LastActivity: start,
	}

	clock = start.Add(time.Minute)
	pr, err := b.Submit(context.Background(), s, domain.ActionRequest{Kind: domain.KindEnter, BaseDate: "2026-01-07"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if pr.StatusCode != 200 || pr.Body != envelope {
		t.Fatalf("unexpected result: %+v", pr)
	}
	if pr.TimedOut {
		t.Fatal("result must not be marked timed out")
	}
	if seen.baseDate != "2026-01-07" || seen.attendanceType != "ENTER" {
		t.Fatalf("payload = %+v", seen)
	}
	if seen.cookie != "abc123" {
		t.Fatalf("session cookie not sent, got %q", seen.cookie)
	}
	if seen.origin != "https://acme.dooray.com" {
		t.Fatalf("origin header = %q", seen.origin)
	}
	if s.LastActivity != start.Add(time.Minute) {
		t.Fatalf("session not touched after submit: %s", s.LastActivity)
	}
}

func TestSubmitTimeoutIsAnAnswerNotAnError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer ts.Close()

	b := newBrowser(ts.URL, 50*time.Millisecond)
	s := &portal.Session{}
	pr, err := b.Submit(context.Background(), s, domain.ActionRequest{Kind: domain.KindLeave, BaseDate: "2026-01-07"})
	if err != nil {
		t.Fatalf("timeout must not surface as an error, got %v", err)
	}
	if !pr.TimedOut {
		t.Fatal("expected the timed-out marker")
	}
}

func TestSubmitUnreachableSurfaceIsNavigationError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	b := newBrowser(url, time.Second)
	_, err := b.Submit(context.Background(), &portal.Session{}, domain.ActionRequest{Kind: domain.KindEnter, BaseDate: "2026-01-07"})
	if err == nil {
		t.Fatal("expected an error against a closed server")
	}
	var navErr domain.NavigationError
	if !errors.As(err, &navErr) {
		t.Fatalf("error type = %T, want NavigationError", err)
	}
}
