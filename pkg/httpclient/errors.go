package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/Maharab24/Bottle-Collection/pkg/errors"
)

// StatusError is a non-2xx response that maps onto no error kind.
type StatusError struct {
	Service string
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s returned %d/%s: %s", e.Service, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.Status, e.Message)
}

// envelope is the {"error":{...}} body httputil.WriteError produces.
type envelope struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponseError reads and closes the body of a non-2xx response. 404,
// 400, 409 and 503 become the matching error kinds; other 4xx responses with
// an envelope keep its code; everything else is a *StatusError.
func ParseResponseError(resp *http.Response, service string) error {
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, MaxBody))
	if err != nil {
		return fmt.Errorf("%s returned status %d, body unreadable: %w", service, resp.StatusCode, err)
	}

	se := &StatusError{Service: service, Status: resp.StatusCode, Message: string(raw)}
	var env envelope
	structured := json.Unmarshal(raw, &env) == nil && env.Error != nil
	if structured {
		se.Code, se.Message = env.Error.Code, env.Error.Message
	}
	detail := service + ": " + se.Message

	switch resp.StatusCode {
	case http.StatusNotFound:
		if structured {
			return apperrors.NotFound(service, se.Message)
		}
		return apperrors.NotFound(service, requestPath(resp))
	case http.StatusBadRequest:
		if structured {
			return apperrors.InvalidInput(detail)
		}
	case http.StatusConflict:
		if structured {
			return apperrors.Conflict(detail)
		}
	case http.StatusServiceUnavailable:
		if structured {
			return apperrors.Unavailable(detail, se)
		}
	}
	if structured && IsClientError(resp.StatusCode) {
		return &apperrors.AppError{Code: se.Code, Message: detail, Status: resp.StatusCode, Err: se}
	}
	return se
}

func requestPath(resp *http.Response) string {
	if resp.Request == nil || resp.Request.URL == nil {
		return "resource"
	}
	return resp.Request.URL.Path
}

func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
