package portal

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"clockline/internal/domain"
)

// Driver is the portal automation surface. The engine, session manager and
// server only see this interface; the chromedp implementation in browser.go
// is the single component touching a real browser.
type Driver interface {
	// Login runs the full login sequence and returns a fresh Session, or a
	// domain.AuthError when the sequence fails. The wait for the post-login
	// landmark is bounded; Login never blocks past its timeout.
	Login(ctx context.Context, creds domain.Credentials) (*Session, error)

	// Submit drives the attendance action for the request's date and kind,
	// then waits for a terminal portal answer or a bounded timeout. The
	// returned PageResult is raw captured state; meaning is assigned by the
	// interpreter. A domain.NavigationError signals the attendance surface
	// itself was unreachable.
	Submit(ctx context.Context, s *Session, req domain.ActionRequest) (domain.PageResult, error)
}

// Endpoints are the portal URLs for one tenant subdomain.
type Endpoints struct {
	LoginURL        string
	Origin          string
	WorkingTimesURL string
}

// NewEndpoints derives tenant endpoints the way the portal lays them out.
func NewEndpoints(loginURL, subdomain string) Endpoints {
	origin := fmt.Sprintf("https://%s.dooray.com", subdomain)
	return Endpoints{
		LoginURL:        loginURL,
		Origin:          origin,
		WorkingTimesURL: origin + "/wapi/work-schedule/v1/working-times",
	}
}

// Session is one authenticated, stateful connection to the portal: the cookie
// jar captured after login plus lifecycle bookkeeping. Owned exclusively by
// the session manager.
type Session struct {
	Cookies      []*http.Cookie
	CreatedAt    time.Time
	LastActivity time.Time
	dead         bool
}

// Live reports whether the session has not been invalidated.
func (s *Session) Live() bool { return s != nil && !s.dead }

// Touch records activity for staleness tracking.
func (s *Session) Touch(now time.Time) { s.LastActivity = now }

// MarkDead flips the liveness flag; the next acquire forces a re-login.
func (s *Session) MarkDead() { s.dead = true }

// Age returns the time since last activity.
func (s *Session) Age(now time.Time) time.Duration { return now.Sub(s.LastActivity) }
