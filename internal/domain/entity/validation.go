package entity

import (
	"fmt"
	"net/url"
	"strings"
)

// maxURLLength bounds configured URLs.
const maxURLLength = 2048

// maxArticleIDLength bounds article ids used in storage keys and request paths.
const maxArticleIDLength = 128

// ValidateBaseURL validates the Remote API base URL.
// It must be an absolute http or https URL with a host and no query or fragment.
func ValidateBaseURL(rawURL string) error {
	if rawURL == "" {
		return &ValidationError{Field: "base_url", Message: "URL is required"}
	}
	if len(rawURL) > maxURLLength {
		return &ValidationError{
			Field:   "base_url",
			Message: fmt.Sprintf("url must not exceed %d characters", maxURLLength),
		}
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return &ValidationError{Field: "base_url", Message: fmt.Sprintf("invalid URL format: %v", err)}
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return &ValidationError{Field: "base_url", Message: "URL must use http or https scheme"}
	}
	if parsedURL.Host == "" {
		return &ValidationError{Field: "base_url", Message: "URL must have a valid host"}
	}
	if parsedURL.RawQuery != "" || parsedURL.Fragment != "" {
		return &ValidationError{Field: "base_url", Message: "URL must not carry a query or fragment"}
	}
	return nil
}

// ValidateArticleID checks that id is usable as a storage key suffix and a path segment.
func ValidateArticleID(id string) error {
	if id == "" {
		return &ValidationError{Field: "article_id", Message: "article id is required"}
	}
	if len(id) > maxArticleIDLength {
		return &ValidationError{
			Field:   "article_id",
			Message: fmt.Sprintf("must not exceed %d characters", maxArticleIDLength),
		}
	}
	if strings.ContainsAny(id, "/?#% \t\n") {
		return &ValidationError{Field: "article_id", Message: "contains reserved characters"}
	}
	return nil
}
