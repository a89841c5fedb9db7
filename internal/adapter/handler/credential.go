package handler

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// CredentialExtractor pulls the caller's credential out of a request.
// An empty string means no credential was presented.
type CredentialExtractor func(c echo.Context) string

// BearerCredential reads "Authorization: Bearer <token>".
func BearerCredential(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// HeaderCredential reads the raw value of the named header.
func HeaderCredential(name string) CredentialExtractor {
	return func(c echo.Context) string {
		return strings.TrimSpace(c.Request().Header.Get(name))
	}
}

// FirstCredential tries each extractor in order.
func FirstCredential(extractors ...CredentialExtractor) CredentialExtractor {
	return func(c echo.Context) string {
		for _, extract := range extractors {
			if credential := extract(c); credential != "" {
				return credential
			}
		}
		return ""
	}
}
