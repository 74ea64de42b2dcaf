package breach

import (
	"bufio"
	"context"
	"crypto/sha1" //nolint:gosec // the range API is keyed by SHA-1
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/arklim/library-staff-auth/internal/core/port"
)

const (
	// DefaultEndpoint is the public k-anonymity range API.
	DefaultEndpoint = "https://api.pwnedpasswords.com/range/"
	// DefaultTimeout bounds a single lookup.
	DefaultTimeout = 5 * time.Second
	prefixLength   = 5
)

// Checker queries a k-anonymity range API. Only the first five hex characters
// of the password's SHA-1 leave the process.
type Checker struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
}

// Option customises a Checker.
type Option func(*Checker)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Checker) {
		if client != nil {
			c.client = client
		}
	}
}

// WithTimeout overrides the per-lookup timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Checker) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// NewChecker builds a checker against endpoint, which must end with the range path.
func NewChecker(endpoint string, opts ...Option) *Checker {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultEndpoint
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	c := &Checker{
		endpoint: endpoint,
		client:   &http.Client{},
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsBreached reports whether password appears in the corpus with a non-zero count.
func (c *Checker) IsBreached(ctx context.Context, password string) (bool, error) {
	sum := sha1.Sum([]byte(password)) //nolint:gosec
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := digest[:prefixLength], digest[prefixLength:]

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+prefix, nil)
	if err != nil {
		return false, fmt.Errorf("build breach request: %w", err)
	}
	req.Header.Set("Add-Padding", "true")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("query breach range: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("query breach range: unexpected status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		hashSuffix, countText, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(hashSuffix, suffix) {
			continue
		}
		count, err := strconv.Atoi(strings.TrimSpace(countText))
		if err != nil {
			return false, fmt.Errorf("parse breach count: %w", err)
		}
		return count > 0, nil
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("read breach range: %w", err)
	}
	return false, nil
}

var _ port.BreachChecker = (*Checker)(nil)
