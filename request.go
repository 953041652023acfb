package url2pdf

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Request field limits.
const (
	MaxURLLength  = 2048 // Browser limit
	MaxNameLength = 64

	// DefaultOutputName is used when the caller gives no name.
	DefaultOutputName = "document"
)

// namePattern restricts output names to a single safe path component.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// forbiddenURLChars never appear in a URL we hand to a renderer.
// Spaces and controls are checked separately.
const forbiddenURLChars = ";|`$<>\\\"'{}"

// Request is a validated conversion request. It is immutable once built.
type Request struct {
	ID         string
	SourceURL  *url.URL
	OutputName string
}

// NewRequest validates raw parameters and builds a Request with a fresh ID.
// Errors wrap ErrInvalidInput and either ErrInvalidURL or ErrInvalidName.
func NewRequest(rawURL, name string) (*Request, error) {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}

	outputName, err := ValidateName(name)
	if err != nil {
		return nil, err
	}

	return &Request{
		ID:         uuid.NewString(),
		SourceURL:  u,
		OutputName: outputName,
	}, nil
}

// Filename returns the download name advertised to the client.
func (r *Request) Filename() string {
	return r.OutputName + ".pdf"
}

// ValidateURL parses rawURL and accepts only absolute http(s) URLs
// with a host and no credentials.
func ValidateURL(rawURL string) (*url.URL, error) {
	if rawURL == "" {
		return nil, invalidURL("empty")
	}
	if len(rawURL) > MaxURLLength {
		return nil, invalidURL(fmt.Sprintf("longer than %d bytes", MaxURLLength))
	}
	for _, r := range rawURL {
		if r <= ' ' || r == 0x7f {
			return nil, invalidURL("contains whitespace or control characters")
		}
	}
	if strings.ContainsAny(rawURL, forbiddenURLChars) {
		return nil, invalidURL("contains forbidden characters")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, invalidURL("unparseable")
	}
	if !u.IsAbs() {
		return nil, invalidURL("not absolute")
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, invalidURL(fmt.Sprintf("scheme %q not allowed", u.Scheme))
	}

	if u.Opaque != "" || u.Hostname() == "" {
		return nil, invalidURL("missing host")
	}
	if u.User != nil {
		return nil, invalidURL("credentials not allowed")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	return u, nil
}

// ValidateName checks an output name. A trailing ".pdf" is accepted and
// stripped; an empty name falls back to DefaultOutputName.
func ValidateName(name string) (string, error) {
	name = strings.TrimSuffix(name, ".pdf")
	if name == "" {
		return DefaultOutputName, nil
	}
	if len(name) > MaxNameLength {
		return "", invalidName(fmt.Sprintf("longer than %d characters", MaxNameLength))
	}
	if !namePattern.MatchString(name) {
		return "", invalidName("only letters, digits, '-' and '_' are allowed")
	}
	return name, nil
}

func invalidURL(reason string) error {
	return fmt.Errorf("%w: %w: %s", ErrInvalidInput, ErrInvalidURL, reason)
}

func invalidName(reason string) error {
	return fmt.Errorf("%w: %w: %s", ErrInvalidInput, ErrInvalidName, reason)
}
