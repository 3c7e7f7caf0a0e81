package interpret_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"clockline/internal/config"
	"clockline/internal/domain"
	"clockline/internal/interpret"
)

func TestClassifyEnvelope(t *testing.T) {
	in := interpret.New(nil)
	cases := []struct {
		name string
		pr   domain.PageResult
		want domain.Status
	}{
		{
			name: "success envelope",
			pr:   domain.PageResult{StatusCode: 200, Body: `{"header":{"isSuccessful":true,"resultCode":0,"resultMessage":""}}`},
			want: domain.StatusSuccess,
		},
		{
			name: "already recorded",
			pr:   domain.PageResult{StatusCode: 200, Body: `{"header":{"isSuccessful":false,"resultCode":-300,"resultMessage":"이미 출근 처리되었습니다."}}`},
			want: domain.StatusAlreadyDone,
		},
		{
			name: "outside clock-in window",
			pr:   domain.PageResult{StatusCode: 200, Body: `{"header":{"isSuccessful":false,"resultCode":-301,"resultMessage":"출근 가능 시간이 아닙니다."}}`},
			want: domain.StatusPolicyRejected,
		},
		{
			name: "unrecognized envelope answer",
			pr:   domain.PageResult{StatusCode: 200, Body: `{"header":{"isSuccessful":false,"resultCode":-999,"resultMessage":"완전히 새로운 오류"}}`},
			want: domain.StatusFatalError,
		},
		{
			name: "timeout marker",
			pr:   domain.PageResult{TimedOut: true},
			want: domain.StatusTransientError,
		},
		{
			name: "expired session 401",
			pr:   domain.PageResult{StatusCode: 401, Body: "unauthorized"},
			want: domain.StatusTransientError,
		},
		{
			name: "expired session 403",
			pr:   domain.PageResult{StatusCode: 403, Body: "forbidden"},
			want: domain.StatusTransientError,
		},
		{
			name: "gateway error html",
			pr:   domain.PageResult{StatusCode: 502, Body: "<html>bad gateway</html>"},
			want: domain.StatusTransientError,
		},
		{
			name: "unrecognized html is never success",
			pr:   domain.PageResult{StatusCode: 200, Body: "<html>welcome</html>"},
			want: domain.StatusFatalError,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := in.Classify(tc.pr)
			if got != tc.want {
				t.Fatalf("Classify = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestClassifyIsPure(t *testing.T) {
	in := interpret.New(nil)
	pr := domain.PageResult{StatusCode: 200, Body: `{"header":{"isSuccessful":false,"resultCode":-300,"resultMessage":"이미 퇴근 처리되었습니다."}}`}
	first, firstDetail := in.Classify(pr)
	for i := 0; i < 10; i++ {
		status, detail := in.Classify(pr)
		if status != first || detail != firstDetail {
			t.Fatalf("classification changed between calls: %s/%s vs %s/%s", first, firstDetail, status, detail)
		}
	}
}

func TestClassifyDetailCarriesPolicyText(t *testing.T) {
	in := interpret.New(nil)
	_, detail := in.Classify(domain.PageResult{
		StatusCode: 200,
		Body:       `{"header":{"isSuccessful":false,"resultCode":-301,"resultMessage":"퇴근 가능 시간이 아닙니다."}}`,
	})
	if detail != "퇴근 가능 시간이 아닙니다." {
		t.Fatalf("detail = %q, want the raw policy text", detail)
	}
}

func TestDetailStaysValidUTF8WhenTruncated(t *testing.T) {
	in := interpret.New(nil)
	// 300 three-byte runes (900 bytes) force truncation inside the text.
	body := strings.Repeat("몸", 300)
	status, detail := in.Classify(domain.PageResult{StatusCode: 200, Body: body})
	if status != domain.StatusFatalError {
		t.Fatalf("status = %s, want FATAL_ERROR", status)
	}
	if !utf8.ValidString(detail) {
		t.Fatalf("detail contains invalid UTF-8: %q", detail)
	}
	if !strings.Contains(detail, "몸") {
		t.Fatalf("detail lost the body text: %q", detail)
	}
}

func TestCustomCatalogExtendsWithoutCodeChanges(t *testing.T) {
	cat, err := config.CatalogFromYAML([]byte(`
patterns:
  - status: ALREADY_DONE
    contains: ["custom already marker"]
`))
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	in := interpret.New(cat)
	status, _ := in.Classify(domain.PageResult{StatusCode: 200, Body: "custom already marker"})
	if status != domain.StatusAlreadyDone {
		t.Fatalf("custom pattern not applied, got %s", status)
	}
}

func TestFirstMatchWins(t *testing.T) {
	cat := &config.Catalog{Patterns: []config.PatternRule{
		{Status: domain.StatusPolicyRejected, Contains: []string{"clash"}},
		{Status: domain.StatusAlreadyDone, Contains: []string{"clash"}},
	}}
	in := interpret.New(cat)
	status, _ := in.Classify(domain.PageResult{StatusCode: 200, Body: "clash"})
	if status != domain.StatusPolicyRejected {
		t.Fatalf("expected first rule to win, got %s", status)
	}
}
