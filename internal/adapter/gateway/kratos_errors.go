package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	kratos "github.com/ory/kratos-client-go"

	"github.com/nw-com/nw-patrol/internal/domain"
)

// kratosErrorBody is the envelope the admin API uses for failures.
type kratosErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Status  string `json:"status"`
		Reason  string `json:"reason"`
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
	Reason  string `json:"reason"`
}

// classifyIdentityError converts a failed admin API call into a domain sentinel.
func classifyIdentityError(err error, resp *http.Response) error {
	if resp == nil {
		return fmt.Errorf("%w: %w", domain.ErrIdentityProviderUnavailable, err)
	}

	message := kratosErrorMessage(err)
	lower := strings.ToLower(message)

	switch resp.StatusCode {
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", domain.ErrEmailTaken, message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, message)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		switch {
		case containsAny(lower, "already exists", "exists already", "duplicate"):
			return fmt.Errorf("%w: %s", domain.ErrEmailTaken, message)
		case strings.Contains(lower, "password"):
			return fmt.Errorf("%w: %s", domain.ErrPasswordRejected, message)
		default:
			return fmt.Errorf("%w: %s", domain.ErrIdentityRejected, message)
		}
	default:
		return fmt.Errorf("%w: kratos returned status %d: %s", domain.ErrIdentityProviderUnavailable, resp.StatusCode, message)
	}
}

// kratosErrorMessage extracts the most specific message from a client error.
func kratosErrorMessage(err error) string {
	var apiErr *kratos.GenericOpenAPIError
	if !errors.As(err, &apiErr) {
		return err.Error()
	}

	var body kratosErrorBody
	if jsonErr := json.Unmarshal(apiErr.Body(), &body); jsonErr == nil {
		for _, candidate := range []string{body.Error.Reason, body.Error.Message, body.Reason, body.Message} {
			if candidate != "" {
				return candidate
			}
		}
	}
	if len(apiErr.Body()) > 0 {
		return truncate(string(apiErr.Body()), 200)
	}
	return apiErr.Error()
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
