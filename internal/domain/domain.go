package domain

// ActionKind is the attendance action requested against the portal.
type ActionKind string

const (
	KindEnter ActionKind = "ENTER"
	KindLeave ActionKind = "LEAVE"
)

// Valid reports whether the kind is one of the two portal actions.
func (k ActionKind) Valid() bool {
	return k == KindEnter || k == KindLeave
}

// Status classifies the terminal result of one attendance action.
type Status string

const (
	StatusSuccess        Status = "SUCCESS"
	StatusAlreadyDone    Status = "ALREADY_DONE"
	StatusPolicyRejected Status = "POLICY_REJECTED"
	StatusTransientError Status = "TRANSIENT_ERROR"
	StatusFatalError     Status = "FATAL_ERROR"
)

// Valid reports whether s is one of the five defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusSuccess, StatusAlreadyDone, StatusPolicyRejected, StatusTransientError, StatusFatalError:
		return true
	}
	return false
}

// Credentials authenticate one portal user. Loaded once at startup and
// read-only afterwards.
type Credentials struct {
	Username  string
	Password  string
	Subdomain string
}

// ActionRequest is one incoming attendance action. BaseDate is YYYY-MM-DD;
// empty means "today" in the configured timezone. Requester is only used for
// message formatting.
type ActionRequest struct {
	Kind      ActionKind `json:"kind" enum:"ENTER,LEAVE"`
	BaseDate  string     `json:"base_date,omitempty"`
	Requester string     `json:"requester,omitempty"`
}

// ActionOutcome is the structured result of one ActionRequest.
type ActionOutcome struct {
	ID       string     `json:"id"`
	Status   Status     `json:"status" enum:"SUCCESS,ALREADY_DONE,POLICY_REJECTED,TRANSIENT_ERROR,FATAL_ERROR"`
	Kind     ActionKind `json:"kind"`
	BaseDate string     `json:"base_date"`
	Detail   string     `json:"detail,omitempty"`
	At       string     `json:"at" format:"date-time"`
}

// PageResult is the raw terminal state captured after submitting an action:
// whatever the portal answered, or a timeout marker. It carries no meaning on
// its own; classification happens in the interpreter.
type PageResult struct {
	StatusCode int
	Body       string
	TimedOut   bool
}

// ActionRecord is one row of the operational history log. The portal remains
// the authoritative attendance record; these rows are diagnostics.
type ActionRecord struct {
	ID       string     `json:"id"`
	Kind     ActionKind `json:"kind"`
	BaseDate string     `json:"base_date"`
	Status   Status     `json:"status"`
	Detail   string     `json:"detail,omitempty"`
	Actor    string     `json:"actor,omitempty"`
	At       string     `json:"at" format:"date-time"`
}
