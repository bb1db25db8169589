package shortener

import (
	"net/url"
	"strings"
)

// ValidateURL trims the input and checks that it is an absolute http or https URL with a host.
// It returns the trimmed URL, which is the exact value that gets stored and hashed.
func ValidateURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidURL
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", ErrInvalidURL
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrInvalidURL
	}

	if u.Hostname() == "" {
		return "", ErrInvalidURL
	}

	return trimmed, nil
}
