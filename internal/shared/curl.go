// Utilities for capturing browser request headers from a "Copy as cURL" command.
package shared

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

var (
	headerFlag = regexp.MustCompile(`(?:-H|--header)\s+'([^']+)'|(?:-H|--header)\s+"([^"]+)"`)
	cookieFlag = regexp.MustCompile(`(?:-b|--cookie)\s+'([^']+)'|(?:-b|--cookie)\s+"([^"]+)"`)
	agentFlag  = regexp.MustCompile(`(?:-A|--user-agent)\s+'([^']+)'|(?:-A|--user-agent)\s+"([^"]+)"`)
)

// hop-by-hop and request-specific headers that must not be replayed
var skippedHeaders = map[string]bool{
	"host":            true,
	"content-length":  true,
	"connection":      true,
	"accept-encoding": true,
}

// RequestHeaders are the headers replayed on every API request, as stored in the headers file.
type RequestHeaders struct {
	Headers map[string]string `toml:"headers"`
	Cookie  string            `toml:"cookie,omitempty"`
}

// ParseCurlFile reads a .sh file containing a cURL command and extracts headers.
func ParseCurlFile(path string) (*RequestHeaders, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read curl file: %w", err)
	}

	return ParseCurlCommand(content)
}

// ParseCurlCommand parses a cURL command string and extracts headers and cookies.
func ParseCurlCommand(data []byte) (*RequestHeaders, error) {
	curlCmd := strings.ReplaceAll(string(data), "\\\n", " ")
	curlCmd = strings.ReplaceAll(curlCmd, "^\r\n", " ")

	rh := &RequestHeaders{Headers: make(map[string]string)}

	for _, match := range headerFlag.FindAllStringSubmatch(curlCmd, -1) {
		key, value, ok := strings.Cut(firstGroup(match), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		lower := strings.ToLower(key)
		switch {
		case lower == "cookie":
			if rh.Cookie == "" {
				rh.Cookie = value
			}
		case skippedHeaders[lower]:
		default:
			rh.Headers[key] = value
		}
	}

	if m := cookieFlag.FindStringSubmatch(curlCmd); m != nil {
		rh.Cookie = firstGroup(m)
	}
	if m := agentFlag.FindStringSubmatch(curlCmd); m != nil {
		rh.Headers["User-Agent"] = firstGroup(m)
	}

	if len(rh.Headers) == 0 && rh.Cookie == "" {
		return nil, fmt.Errorf("%w: no headers found in curl command", ErrInvalidInput)
	}

	return rh, nil
}

func firstGroup(match []string) string {
	for _, g := range match[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}

// Keys returns header names in sorted order.
func (h *RequestHeaders) Keys() []string {
	keys := make([]string, 0, len(h.Headers))
	for k := range h.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Save writes the headers as TOML, readable only by the owner since it may hold cookies.
func (h *RequestHeaders) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open headers file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(h); err != nil {
		return fmt.Errorf("failed to encode headers: %w", err)
	}
	return nil
}

// LoadHeaders reads a headers file written by [RequestHeaders.Save].
func LoadHeaders(path string) (*RequestHeaders, error) {
	var rh RequestHeaders
	if _, err := toml.DecodeFile(path, &rh); err != nil {
		return nil, fmt.Errorf("failed to load headers file: %w", err)
	}
	if rh.Headers == nil {
		rh.Headers = make(map[string]string)
	}
	return &rh, nil
}
