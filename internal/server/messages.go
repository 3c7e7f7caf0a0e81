package server

import (
	"fmt"

	"clockline/internal/domain"
)

// kindName is the localized action name shown to users.
func kindName(kind domain.ActionKind) string {
	if kind == domain.KindLeave {
		return "퇴근"
	}
	return "출근"
}

// renderMessage turns an outcome into the localized natural-language message
// for chat and direct callers. Business rejections are legitimate outcomes,
// phrased as information rather than errors.
func renderMessage(outcome domain.ActionOutcome, requester string) string {
	if requester == "" {
		requester = "사용자"
	}
	name := kindName(outcome.Kind)
	switch outcome.Status {
	case domain.StatusSuccess:
		return fmt.Sprintf("%s님, %s %s 처리가 완료되었습니다.", requester, outcome.BaseDate, name)
	case domain.StatusAlreadyDone:
		return fmt.Sprintf("%s님, %s %s 기록이 이미 등록되어 있습니다.", requester, outcome.BaseDate, name)
	case domain.StatusPolicyRejected:
		return fmt.Sprintf("%s님, %s %s 처리가 거부되었습니다: %s", requester, outcome.BaseDate, name, outcome.Detail)
	case domain.StatusTransientError:
		return fmt.Sprintf("%s님, 일시적인 오류로 %s 처리에 실패했습니다. 잠시 후 다시 시도해주세요.", requester, name)
	default:
		return fmt.Sprintf("%s님, %s 처리 중 오류가 발생했습니다: %s", requester, name, outcome.Detail)
	}
}

// usageMessage is shown for unknown slash commands.
func usageMessage(command string) string {
	return fmt.Sprintf("알 수 없는 명령어입니다: %s\n사용 가능: /출근, /퇴근", command)
}
