// Package interpret classifies raw portal page results into outcome
// statuses. It is a pure mapping with no I/O; the brittle string matching
// against portal text lives entirely here, so pattern updates never touch
// session or navigation logic.
package interpret

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"clockline/internal/config"
	"clockline/internal/domain"
)

// Interpreter applies an ordered pattern catalog. First matching rule wins;
// unmatched terminal states are FATAL_ERROR, never guessed as success.
type Interpreter struct {
	rules []config.PatternRule
}

// New builds an Interpreter from a catalog. A nil catalog uses the built-in
// defaults.
func New(cat *config.Catalog) *Interpreter {
	if cat == nil {
		cat = config.DefaultCatalog()
	}
	return &Interpreter{rules: cat.Patterns}
}

// envelope is the portal's response wrapper around working-times answers.
type envelope struct {
	Header struct {
		IsSuccessful  bool   `json:"isSuccessful"`
		ResultCode    int    `json:"resultCode"`
		ResultMessage string `json:"resultMessage"`
	} `json:"header"`
}

// Classify maps a PageResult to an outcome status and a free-text detail for
// diagnostics.
func (i *Interpreter) Classify(pr domain.PageResult) (domain.Status, string) {
	if pr.TimedOut {
		return domain.StatusTransientError, "portal did not answer within the submit timeout"
	}
	if pr.StatusCode == http.StatusUnauthorized || pr.StatusCode == http.StatusForbidden {
		return domain.StatusTransientError, fmt.Sprintf("session expired (HTTP %d)", pr.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal([]byte(pr.Body), &env); err == nil && (env.Header.ResultMessage != "" || env.Header.IsSuccessful) {
		if env.Header.IsSuccessful && env.Header.ResultCode == 0 {
			return domain.StatusSuccess, env.Header.ResultMessage
		}
		if status, ok := i.match(env.Header.ResultMessage); ok {
			return status, env.Header.ResultMessage
		}
		if pr.StatusCode >= http.StatusInternalServerError {
			return domain.StatusTransientError, env.Header.ResultMessage
		}
		return domain.StatusFatalError, fmt.Sprintf("unrecognized portal answer (code %d): %s", env.Header.ResultCode, env.Header.ResultMessage)
	}

	if status, ok := i.match(pr.Body); ok {
		return status, snippet(pr.Body)
	}
	if pr.StatusCode == 0 || pr.StatusCode >= http.StatusInternalServerError {
		return domain.StatusTransientError, fmt.Sprintf("portal error (HTTP %d): %s", pr.StatusCode, snippet(pr.Body))
	}
	return domain.StatusFatalError, fmt.Sprintf("unrecognized terminal state (HTTP %d): %s", pr.StatusCode, snippet(pr.Body))
}

func (i *Interpreter) match(text string) (domain.Status, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	lowered := strings.ToLower(text)
	for _, rule := range i.rules {
		for _, marker := range rule.Contains {
			if strings.Contains(lowered, strings.ToLower(marker)) {
				return rule.Status, true
			}
		}
	}
	return "", false
}

const maxSnippetBytes = 500

// snippet trims and bounds body text for diagnostics, cutting on a rune
// boundary so multi-byte portal text never becomes invalid UTF-8.
func snippet(body string) string {
	body = strings.TrimSpace(body)
	if len(body) <= maxSnippetBytes {
		return body
	}
	cut := maxSnippetBytes
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut]
}
