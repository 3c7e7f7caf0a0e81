package engine_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"clockline/internal/config"
	"clockline/internal/db"
	"clockline/internal/domain"
	"clockline/internal/engine"
	"clockline/internal/migrate"
	"clockline/internal/portal"
)

const (
	successBody = `{"header":{"isSuccessful":true,"resultCode":0,"resultMessage":""}}`
	alreadyBody = `{"header":{"isSuccessful":false,"resultCode":-300,"resultMessage":"이미 출근 처리되었습니다."}}`
	policyBody  = `{"header":{"isSuccessful":false,"resultCode":-301,"resultMessage":"퇴근 가능 시간이 아닙니다."}}`
)

// fakePortal scripts the portal without a browser. When stateful is set it
// behaves like the real thing: the first action for a (kind, date) succeeds
// and repeats report already-recorded.
type fakePortal struct {
	logins   int
	submits  int
	loginErr error
	submit   func(call int, req domain.ActionRequest) (domain.PageResult, error)
	stateful bool
	recorded map[string]bool
	clock    func() time.Time
}

func (f *fakePortal) Login(ctx context.Context, creds domain.Credentials) (*portal.Session, error) {
	f.logins++
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	now := f.clock()
	return &portal.Session{CreatedAt: now, LastActivity: now}, nil
}

func (f *fakePortal) Submit(ctx context.Context, s *portal.Session, req domain.ActionRequest) (domain.PageResult, error) {
	f.submits++
	if f.stateful {
		key := string(req.Kind) + "|" + req.BaseDate
		if f.recorded[key] {
			return domain.PageResult{StatusCode: 200, Body: alreadyBody}, nil
		}
		if f.recorded == nil {
			f.recorded = map[string]bool{}
		}
		f.recorded[key] = true
		return domain.PageResult{StatusCode: 200, Body: successBody}, nil
	}
	return f.submit(f.submits, req)
}

func testConfig() *config.Config {
	cfg := &config.Config{
		Session:  config.Session{Staleness: 20 * time.Minute},
		Retry:    config.Retry{Attempts: 2, Backoff: time.Millisecond},
		Timezone: "Asia/Seoul",
		Catalog:  config.DefaultCatalog(),
	}
	cfg.Portal.Credentials = domain.Credentials{Username: "u", Password: "p", Subdomain: "acme"}
	return cfg
}

func newTestEngine(t *testing.T, fake *fakePortal) *engine.Engine {
	t.Helper()
	clock := time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)
	fake.clock = func() time.Time { return clock }
	eng := engine.New(fake, nil, testConfig(), zerolog.Nop())
	eng.Now = func() time.Time { return clock }
	eng.Sessions.Now = func() time.Time { return clock }
	eng.Sleep = func(time.Duration) {}
	return eng
}

func TestPerformSuccess(t *testing.T) {
	fake := &fakePortal{submit: func(int, domain.ActionRequest) (domain.PageResult, error) {
		return domain.PageResult{StatusCode: 200, Body: successBody}, nil
	}}
	eng := newTestEngine(t, fake)

	outcome := eng.Perform(context.Background(), domain.ActionRequest{Kind: domain.KindEnter, BaseDate: "2026-01-07"})
	if outcome.Status != domain.StatusSuccess {
		t.Fatalf("status = %s, want SUCCESS (%s)", outcome.Status, outcome.Detail)
	}
	if outcome.BaseDate != "2026-01-07" {
		t.Fatalf("recorded date = %s, want 2026-01-07", outcome.BaseDate)
	}
	if fake.logins != 1 || fake.submits != 1 {
		t.Fatalf("expected single login and submit, got %d/%d", fake.logins, fake.submits)
	}
}

func TestPerformIdempotent(t *testing.T) {
	fake := &fakePortal{stateful: true}
	eng := newTestEngine(t, fake)
	req := domain.ActionRequest{Kind: domain.KindEnter, BaseDate: "2026-01-07"}

	first := eng.Perform(context.Background(), req)
	second := eng.Perform(context.Background(), req)
	if first.Status != domain.StatusSuccess {
		t.Fatalf("first status = %s, want SUCCESS", first.Status)
	}
	if second.Status != domain.StatusAlreadyDone {
		t.Fatalf("second status = %s, want ALREADY_DONE", second.Status)
	}
}

func TestSessionReusedAcrossPerforms(t *testing.T) {
	fake := &fakePortal{stateful: true}
	eng := newTestEngine(t, fake)

	eng.Perform(context.Background(), domain.ActionRequest{Kind: domain.KindEnter, BaseDate: "2026-01-07"})
	eng.Perform(context.Background(), domain.ActionRequest{Kind: domain.KindLeave, BaseDate: "2026-01-07"})
	if fake.logins != 1 {
		t.Fatalf("expected the session to be reused, got %d logins", fake.logins)
	}
}

func TestRetryBudgetOnTransient(t *testing.T) {
	fake := &fakePortal{submit: func(int, domain.ActionRequest) (domain.PageResult, error) {
		return domain.PageResult{TimedOut: true}, nil
	}}
	eng := newTestEngine(t, fake)

	outcome := eng.Perform(context.Background(), domain.ActionRequest{Kind: domain.KindEnter, BaseDate: "2026-01-07"})
	if outcome.Status != domain.StatusTransientError {
		t.Fatalf("status = %s, want TRANSIENT_ERROR", outcome.Status)
	}
	if fake.submits != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", fake.submits)
	}
}

func TestExpiredSessionReacquiredMidFlow(t *testing.T) {
	fake := &fakePortal{submit: func(call int, _ domain.ActionRequest) (domain.PageResult, error) {
		if call == 1 {
			return domain.PageResult{StatusCode: 401, Body: "unauthorized"}, nil
		}
		return domain.PageResult{StatusCode: 200, Body: successBody}, nil
	}}
	eng := newTestEngine(t, fake)

	outcome := eng.Perform(context.Background(), domain.ActionRequest{Kind: domain.KindEnter, BaseDate: "2026-01-07"})
	if outcome.Status != domain.StatusSuccess {
		t.Fatalf("status = %s, want SUCCESS after re-login (%s)", outcome.Status, outcome.Detail)
	}
	if fake.logins != 2 {
		t.Fatalf("expected re-login after expired session, got %d logins", fake.logins)
	}
}

func TestAuthErrorWrappedAsFatal(t *testing.T) {
	fake := &fakePortal{loginErr: domain.AuthError{Reason: "wrong credentials"}}
	eng := newTestEngine(t, fake)

	outcome := eng.Perform(context.Background(), domain.ActionRequest{Kind: domain.KindEnter, BaseDate: "2026-01-07"})
	if outcome.Status != domain.StatusFatalError {
		t.Fatalf("status = %s, want FATAL_ERROR", outcome.Status)
	}
	if fake.logins != 2 {
		t.Fatalf("expected login to be retried up to the budget, got %d", fake.logins)
	}
}

func TestNavigationErrorWrappedAsFatal(t *testing.T) {
	fake := &fakePortal{submit: func(int, domain.ActionRequest) (domain.PageResult, error) {
		return domain.PageResult{}, domain.NavigationError{Reason: "dns failure"}
	}}
	eng := newTestEngine(t, fake)

	outcome := eng.Perform(context.Background(), domain.ActionRequest{Kind: domain.KindLeave, BaseDate: "2026-01-07"})
	if outcome.Status != domain.StatusFatalError {
		t.Fatalf("status = %s, want FATAL_ERROR", outcome.Status)
	}
}

func TestPolicyRejectionSurfacesPortalText(t *testing.T) {
	fake := &fakePortal{submit: func(int, domain.ActionRequest) (domain.PageResult, error) {
		return domain.PageResult{StatusCode: 200, Body: policyBody}, nil
	}}
	eng := newTestEngine(t, fake)

	outcome := eng.Perform(context.Background(), domain.ActionRequest{Kind: domain.KindLeave, BaseDate: "2026-01-07"})
	if outcome.Status != domain.StatusPolicyRejected {
		t.Fatalf("status = %s, want POLICY_REJECTED", outcome.Status)
	}
	if outcome.Detail != "퇴근 가능 시간이 아닙니다." {
		t.Fatalf("detail = %q, want the raw policy text", outcome.Detail)
	}
	if fake.submits != 1 {
		t.Fatalf("business rejection must not be retried, got %d submits", fake.submits)
	}
}

func TestEmptyDateDefaultsToTodayInConfiguredZone(t *testing.T) {
	fake := &fakePortal{stateful: true}
	eng := newTestEngine(t, fake)
	// 2026-01-07T23:30Z is already 2026-01-08 in Asia/Seoul.
	clock := time.Date(2026, 1, 7, 23, 30, 0, 0, time.UTC)
	eng.Now = func() time.Time { return clock }

	outcome := eng.Perform(context.Background(), domain.ActionRequest{Kind: domain.KindEnter})
	if outcome.BaseDate != "2026-01-08" {
		t.Fatalf("base date = %s, want 2026-01-08", outcome.BaseDate)
	}
}

func TestUnknownKindIsFatalNotPanic(t *testing.T) {
	fake := &fakePortal{stateful: true}
	eng := newTestEngine(t, fake)

	outcome := eng.Perform(context.Background(), domain.ActionRequest{Kind: "LUNCH", BaseDate: "2026-01-07"})
	if outcome.Status != domain.StatusFatalError {
		t.Fatalf("status = %s, want FATAL_ERROR", outcome.Status)
	}
	if fake.logins != 0 {
		t.Fatalf("invalid request must not touch the portal")
	}
}

func TestEveryOutcomeHasDefinedStatus(t *testing.T) {
	behaviors := []func(int, domain.ActionRequest) (domain.PageResult, error){
		func(int, domain.ActionRequest) (domain.PageResult, error) {
			return domain.PageResult{StatusCode: 200, Body: "garbage &&& response"}, nil
		},
		func(int, domain.ActionRequest) (domain.PageResult, error) {
			return domain.PageResult{TimedOut: true}, nil
		},
		func(int, domain.ActionRequest) (domain.PageResult, error) {
			return domain.PageResult{}, domain.NavigationError{Reason: "unreachable"}
		},
		func(int, domain.ActionRequest) (domain.PageResult, error) {
			return domain.PageResult{StatusCode: 503, Body: "Service Unavailable"}, nil
		},
	}
	for i, behavior := range behaviors {
		fake := &fakePortal{submit: behavior}
		eng := newTestEngine(t, fake)
		outcome := eng.Perform(context.Background(), domain.ActionRequest{Kind: domain.KindEnter, BaseDate: "2026-01-07"})
		if !outcome.Status.Valid() {
			t.Fatalf("behavior %d produced undefined status %q", i, outcome.Status)
		}
	}
}

func TestOutcomeAppendedToHistory(t *testing.T) {
	workspace := t.TempDir()
	conn, err := db.Open(workspace)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	fake := &fakePortal{stateful: true}
	clock := time.Date(2026, 1, 7, 9, 0, 0, 0, time.UTC)
	fake.clock = func() time.Time { return clock }
	eng := engine.New(fake, conn, testConfig(), zerolog.Nop())
	eng.Now = func() time.Time { return clock }
	eng.Sleep = func(time.Duration) {}

	eng.Perform(context.Background(), domain.ActionRequest{Kind: domain.KindEnter, BaseDate: "2026-01-07", Requester: "지민"})

	records, err := eng.Repo.ListRecentActions(context.Background(), 10)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(records))
	}
	rec := records[0]
	if rec.Status != domain.StatusSuccess || rec.Kind != domain.KindEnter || rec.BaseDate != "2026-01-07" || rec.Actor != "지민" {
		t.Fatalf("unexpected history row: %+v", rec)
	}
}

func TestArrivalOrderPreserved(t *testing.T) {
	fake := &fakePortal{stateful: true}
	eng := newTestEngine(t, fake)

	done := make(chan string, 4)
	for i := 0; i < 4; i++ {
		date := fmt.Sprintf("2026-01-0%d", i+1)
		go func(d string) {
			eng.Perform(context.Background(), domain.ActionRequest{Kind: domain.KindEnter, BaseDate: d})
			done <- d
		}(date)
	}
	for i := 0; i < 4; i++ {
		<-done
	}
	// Four distinct dates against a stateful portal must each succeed once;
	// overlap on the shared session would double-submit some of them.
	if fake.submits != 4 {
		t.Fatalf("expected 4 serialized submits, got %d", fake.submits)
	}
}
