// Package server exposes the attendance engine over HTTP: direct action
// endpoints, the Dooray slash-command endpoint, health and history.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"clockline/internal/domain"
	"clockline/internal/engine"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   *engine.Engine
	BasePath string
	Auth     AuthConfig
	Log      zerolog.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"bad_request"`
	Message string         `json:"message" example:"base_date must be YYYY-MM-DD"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope for non-business failures. Business
// outcomes never use it; they are HTTP 200 payloads.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Clockline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Clockline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerActions(group, cfg.Engine)
	registerDooray(group, cfg.Engine, cfg.Auth.CommandToken, cfg.Log)
	registerHistory(group, cfg.Engine)

	startWebhookDispatcher(cfg.Engine, cfg.Log)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

type actionInput struct {
	BaseDate string `query:"base_date" required:"false" doc:"Target calendar date (YYYY-MM-DD); defaults to today"`
	RawBody  []byte `contentType:"application/json"`
}

type actionOutput struct {
	Body ActionResponse `json:"body"`
}

func registerActions(api huma.API, e *engine.Engine) {
	register := func(opID, path, summary string, kind domain.ActionKind) {
		huma.Register(api, huma.Operation{
			OperationID: opID,
			Method:      http.MethodPost,
			Path:        path,
			Summary:     summary,
		}, func(ctx context.Context, input *actionInput) (*actionOutput, error) {
			req := domain.ActionRequest{Kind: kind, BaseDate: strings.TrimSpace(input.BaseDate)}
			// A Dooray-shaped body may carry the date and the requester name.
			if len(input.RawBody) > 0 {
				var cmd DoorayCommand
				if err := json.Unmarshal(input.RawBody, &cmd); err == nil {
					if req.BaseDate == "" {
						req.BaseDate = extractDate(cmd.Text)
					}
					req.Requester = cmd.UserName
				}
			}
			if req.BaseDate != "" && !validDate(req.BaseDate) {
				return nil, newAPIError(http.StatusBadRequest, "", "base_date must be YYYY-MM-DD", nil)
			}
			outcome := e.Perform(ctx, req)
			return &actionOutput{Body: ActionResponse{
				Status:  outcome.Status,
				Message: renderMessage(outcome, req.Requester),
			}}, nil
		})
	}
	register("enter", "/enter", "Record a check-in", domain.KindEnter)
	register("leave", "/leave", "Record a check-out", domain.KindLeave)
}

type doorayInput struct {
	RawBody []byte `contentType:"application/json"`
}

type doorayOutput struct {
	Body DoorayResponse `json:"body"`
}

func registerDooray(api huma.API, e *engine.Engine, commandToken string, log zerolog.Logger) {
	huma.Register(api, huma.Operation{
		OperationID: "dooray-command",
		Method:      http.MethodPost,
		Path:        "/dooray",
		Summary:     "Dooray slash command",
		Description: "Handles /출근 and /퇴근 from one registered command URL. Always answers HTTP 200 with a message body.",
	}, func(ctx context.Context, input *doorayInput) (*doorayOutput, error) {
		ephemeral := func(text string) *doorayOutput {
			return &doorayOutput{Body: DoorayResponse{ResponseType: "ephemeral", Text: text}}
		}

		var cmd DoorayCommand
		if err := json.Unmarshal(input.RawBody, &cmd); err != nil {
			log.Warn().Err(err).Msg("malformed dooray command payload")
			return ephemeral("요청 형식 오류: 명령어 페이로드를 해석할 수 없습니다."), nil
		}
		if commandToken != "" && cmd.CmdToken != commandToken && cmd.AppToken != commandToken {
			log.Warn().Str("channel", cmd.ChannelName).Msg("dooray command token mismatch")
			return ephemeral("명령어 토큰이 올바르지 않습니다."), nil
		}

		kind, ok := parseCommand(cmd.Command)
		if !ok {
			return ephemeral(usageMessage(cmd.Command)), nil
		}
		req := domain.ActionRequest{
			Kind:      kind,
			BaseDate:  extractDate(cmd.Text),
			Requester: cmd.UserName,
		}
		log.Info().Str("command", cmd.Command).Str("user", cmd.UserName).Str("base_date", req.BaseDate).Msg("dooray command received")
		outcome := e.Perform(ctx, req)
		return ephemeral(renderMessage(outcome, req.Requester)), nil
	})
}

type historyInput struct {
	Limit int `query:"limit" required:"false" minimum:"1" maximum:"500" doc:"Number of entries, newest first"`
}

type historyOutput struct {
	Body struct {
		Items []domain.ActionRecord `json:"items"`
	} `json:"body"`
}

func registerHistory(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "history",
		Method:      http.MethodGet,
		Path:        "/history",
		Summary:     "Recent action history",
	}, func(ctx context.Context, input *historyInput) (*historyOutput, error) {
		out := &historyOutput{}
		out.Body.Items = []domain.ActionRecord{}
		if e.DB == nil {
			return out, nil
		}
		items, err := e.Repo.ListRecentActions(ctx, input.Limit)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "", "history unavailable", map[string]any{"error": err.Error()})
		}
		if items != nil {
			out.Body.Items = items
		}
		return out, nil
	})
}

func validDate(s string) bool {
	return len(s) == 10 && datePattern.MatchString(s)
}
