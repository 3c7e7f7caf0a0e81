package server

import (
	"regexp"
	"strings"

	"clockline/internal/domain"
)

// DoorayCommand is the slash-command payload the chat platform posts.
type DoorayCommand struct {
	TenantID     string `json:"tenantId,omitempty"`
	TenantDomain string `json:"tenantDomain,omitempty"`
	ChannelID    string `json:"channelId,omitempty"`
	ChannelName  string `json:"channelName,omitempty"`
	UserID       string `json:"userId,omitempty"`
	UserName     string `json:"userName,omitempty"`
	Command      string `json:"command,omitempty"`
	Text         string `json:"text,omitempty"`
	ResponseURL  string `json:"responseUrl,omitempty"`
	AppToken     string `json:"appToken,omitempty"`
	CmdToken     string `json:"cmdToken,omitempty"`
	TriggerID    string `json:"triggerId,omitempty"`
}

// DoorayResponse is the message shape the chat platform renders. Business
// failures still travel as a message body with HTTP 200; the platform does
// not understand HTTP error codes.
type DoorayResponse struct {
	ResponseType string `json:"responseType" enum:"ephemeral,inChannel"`
	Text         string `json:"text"`
}

// ActionResponse is the direct-call response for /enter and /leave.
type ActionResponse struct {
	Status  domain.Status `json:"status" enum:"SUCCESS,ALREADY_DONE,POLICY_REJECTED,TRANSIENT_ERROR,FATAL_ERROR"`
	Message string        `json:"message"`
}

var datePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// parseCommand maps a slash-command token to an action kind.
func parseCommand(command string) (domain.ActionKind, bool) {
	switch strings.TrimSpace(command) {
	case "/출근", "/enter":
		return domain.KindEnter, true
	case "/퇴근", "/leave":
		return domain.KindLeave, true
	}
	return "", false
}

// extractDate pulls a YYYY-MM-DD date out of free command text; empty means
// "today" downstream.
func extractDate(text string) string {
	return datePattern.FindString(strings.TrimSpace(text))
}
