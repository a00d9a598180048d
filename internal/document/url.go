// Package document retrieves web pages and turns their markup into the plain
// text the segmenter consumes.
package document

import (
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/worddensity/pkg/errors"
)

// ValidateURL parses raw and requires an absolute http or https URL with a
// host.
func ValidateURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, apperrors.New(apperrors.ErrInvalidURL, http.StatusBadRequest, "no URL")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidURL, http.StatusBadRequest, "cannot parse %q", raw)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, apperrors.Newf(apperrors.ErrInvalidURL, http.StatusBadRequest, "unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, apperrors.Newf(apperrors.ErrInvalidURL, http.StatusBadRequest, "missing host in %q", raw)
	}
	u.Fragment = ""
	return u, nil
}
