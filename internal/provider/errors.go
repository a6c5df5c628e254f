package provider

import (
	goerrors "errors"
	"fmt"
	"net/http"

	"github.com/slotgrid/slotgrid/domain"
	"github.com/slotgrid/slotgrid/errors"
	"golang.org/x/oauth2"
)

// exchangeError maps an oauth2 token-endpoint failure. Provider rejections
// carry the upstream error description; anything else is transient.
func exchangeError(name domain.Provider, err error) error {
	var rerr *oauth2.RetrieveError
	if goerrors.As(err, &rerr) {
		code := rerr.ErrorCode
		if code == "" {
			code = fmt.Sprintf("http_%d", rerr.Response.StatusCode)
		}
		return errors.NewProviderError(name.String(), code, rerr.ErrorDescription)
	}
	return errors.NewTransientFetchError(name.String(), err)
}

// refreshError maps a refresh failure. A rejection of the refresh token is
// terminal for the credential: the user must re-authorize.
func refreshError(name domain.Provider, err error) error {
	var rerr *oauth2.RetrieveError
	if goerrors.As(err, &rerr) {
		return errors.NewAuthError(name.String(),
			errors.NewProviderError(name.String(), rerr.ErrorCode, rerr.ErrorDescription))
	}
	return errors.NewTransientFetchError(name.String(), err)
}

// errCalendarGone marks a provider 404 for a calendar that no longer exists.
// Event listing treats it as "zero events" rather than a failure.
var errCalendarGone = goerrors.New("calendar no longer exists at provider")

// apiError maps a non-2xx calendar API response.
func apiError(name domain.Provider, status int, body []byte) error {
	switch status {
	case http.StatusUnauthorized:
		return errors.NewAuthError(name.String(), fmt.Errorf("access token rejected (status %d)", status))
	case http.StatusNotFound:
		return errors.NewTransientFetchError(name.String(), errCalendarGone)
	}
	return errors.NewTransientFetchError(name.String(), fmt.Errorf("status %d: %s", status, string(body)))
}

func isNotFound(err error) bool {
	return goerrors.Is(err, errCalendarGone)
}
