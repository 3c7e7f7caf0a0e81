package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"clockline/internal/domain"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/110.0.0.0 Safari/537.36"
	maxBodyBytes = 64 << 10
)

// Browser drives the portal with a headless Chrome for login and submits the
// attendance action over HTTP with the captured cookies, mirroring what the
// portal UI itself does.
type Browser struct {
	Endpoints     Endpoints
	LoginTimeout  time.Duration
	SubmitTimeout time.Duration
	HTTPClient    *http.Client
	Log           zerolog.Logger
	Now           func() time.Time
}

// NewBrowser builds a Browser driver for one tenant.
func NewBrowser(endpoints Endpoints, loginTimeout, submitTimeout time.Duration, log zerolog.Logger) *Browser {
	return &Browser{
		Endpoints:     endpoints,
		LoginTimeout:  loginTimeout,
		SubmitTimeout: submitTimeout,
		HTTPClient:    &http.Client{},
		Log:           log,
		Now:           time.Now,
	}
}

func (b *Browser) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

// Login walks the org-selection and login forms, waits for the post-login
// landmark (authenticated cookies on the tenant origin) and captures the
// cookie jar. The browser is torn down before returning; the cookies are the
// session.
func (b *Browser) Login(ctx context.Context, creds domain.Credentials) (*Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(userAgent),
		chromedp.WindowSize(1280, 800),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancel := context.WithTimeout(browserCtx, b.LoginTimeout)
	defer cancel()

	var raw []*network.Cookie
	err := chromedp.Run(runCtx,
		chromedp.Navigate(b.Endpoints.LoginURL),
		chromedp.WaitVisible(`input#subdomain`, chromedp.ByQuery),
		chromedp.SendKeys(`input#subdomain`, creds.Subdomain, chromedp.ByQuery),
		chromedp.Click(`button[type=button]`, chromedp.ByQuery),
		chromedp.WaitVisible(`input[type=text]`, chromedp.ByQuery),
		chromedp.SendKeys(`input[type=text]`, creds.Username, chromedp.ByQuery),
		chromedp.SendKeys(`input[type=password]`, creds.Password, chromedp.ByQuery),
		chromedp.Click(`button[type=submit]`, chromedp.ByQuery),
		chromedp.Sleep(2*time.Second),
		chromedp.Navigate(b.Endpoints.Origin),
		chromedp.WaitReady(`body`, chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			raw, err = storage.GetCookies().Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, domain.AuthError{Reason: "login sequence failed", Err: err}
	}
	if len(raw) == 0 {
		return nil, domain.AuthError{Reason: "no cookies after login; landmark never appeared"}
	}

	cookies := make([]*http.Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Domain: c.Domain, Path: c.Path})
	}
	now := b.now()
	b.Log.Info().Int("cookies", len(cookies)).Msg("portal login complete")
	return &Session{Cookies: cookies, CreatedAt: now, LastActivity: now}, nil
}

type workingTimesRequest struct {
	BaseDate       string `json:"baseDate"`
	AttendanceType string `json:"attendanceType"`
}

// Submit posts the attendance action with the session cookies and captures
// whatever terminal state the portal answers with. A deterministic timeout is
// a normal PageResult, not an error; only an unreachable surface is a
// NavigationError.
func (b *Browser) Submit(ctx context.Context, s *Session, req domain.ActionRequest) (domain.PageResult, error) {
	payload, err := json.Marshal(workingTimesRequest{BaseDate: req.BaseDate, AttendanceType: string(req.Kind)})
	if err != nil {
		return domain.PageResult{}, fmt.Errorf("marshal working-times payload: %w", err)
	}

	submitCtx, cancel := context.WithTimeout(ctx, b.SubmitTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(submitCtx, http.MethodPost, b.Endpoints.WorkingTimesURL, bytes.NewReader(payload))
	if err != nil {
		return domain.PageResult{}, fmt.Errorf("build working-times request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Origin", b.Endpoints.Origin)
	httpReq.Header.Set("Referer", b.Endpoints.Origin+"/")
	httpReq.Header.Set("User-Agent", userAgent)
	for _, c := range s.Cookies {
		httpReq.AddCookie(c)
	}

	b.Log.Debug().Str("kind", string(req.Kind)).Str("base_date", req.BaseDate).Msg("submitting attendance action")
	res, err := b.HTTPClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.PageResult{TimedOut: true}, nil
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return domain.PageResult{TimedOut: true}, nil
		}
		return domain.PageResult{}, domain.NavigationError{Reason: "working-times endpoint", Err: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return domain.PageResult{}, domain.NavigationError{Reason: "read working-times response", Err: err}
	}
	s.Touch(b.now())
	return domain.PageResult{StatusCode: res.StatusCode, Body: string(body)}, nil
}
