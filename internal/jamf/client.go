package jamf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"

	"example.com/backstage/services/jamfops/internal/failure"
)

const (
	contentTypeXML  = "application/xml"
	contentTypeJSON = "application/json"

	// balanceCookie pins follow-up requests to the node that served a PUT.
	balanceCookie = "APBALANCEID"

	maxErrorBody = 512
)

// Credentials identify an API account on a Jamf Pro server.
type Credentials struct {
	URL      string
	Username string
	Password string
}

// Client talks to the Jamf Pro Classic API.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	log        logrus.FieldLogger
}

// NewClient creates a new Jamf Pro API client. A zero timeout leaves the
// http.Client default in place.
func NewClient(creds Credentials, timeout time.Duration, log logrus.FieldLogger) *Client {
	return &Client{
		baseURL:  strings.TrimRight(creds.URL, "/"),
		username: creds.Username,
		password: creds.Password,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: newrelic.NewRoundTripper(nil),
		},
		log: log,
	}
}

// BaseURL returns the server address the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Session carries the sticky-routing cookie returned by a PUT so the next GET
// lands on the node that applied the change.
type Session struct {
	cookies []*http.Cookie
}

// BalanceID returns the routing cookie value, or "" when none was issued.
func (s Session) BalanceID() string {
	for _, c := range s.cookies {
		if c.Name == balanceCookie {
			return c.Value
		}
	}
	return ""
}

func (c *Client) resource(format string, args ...any) string {
	return c.baseURL + "/JSSResource/" + fmt.Sprintf(format, args...)
}

func (c *Client) get(ctx context.Context, op, url, accept string, session Session) ([]byte, error) {
	c.log.WithField("url", url).Debug("URL generated")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, failure.Wrap(failure.ErrTransport, op, err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", accept)
	for _, cookie := range session.cookies {
		req.AddCookie(cookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, failure.Wrap(failure.ErrTransport, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, failure.Wrap(failure.ErrTransport, op, err)
	}
	if err := checkStatus(op, resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) put(ctx context.Context, op, url string, payload []byte) (Session, error) {
	c.log.WithField("url", url).Debug("URL generated")

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		return Session{}, failure.Wrap(failure.ErrTransport, op, err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", contentTypeXML)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Session{}, failure.Wrap(failure.ErrTransport, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Session{}, failure.Wrap(failure.ErrTransport, op, err)
	}
	c.log.WithField("response", string(body)).Debug("PUT response")

	if err := checkStatus(op, resp.StatusCode, body); err != nil {
		return Session{}, err
	}

	var session Session
	for _, cookie := range resp.Cookies() {
		if cookie.Name == balanceCookie {
			session.cookies = append(session.cookies, &http.Cookie{Name: cookie.Name, Value: cookie.Value})
		}
	}
	return session, nil
}

func checkStatus(op string, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return failure.Wrap(failure.ErrRejected, op,
		fmt.Errorf("status %d: %s", status, strings.TrimSpace(string(body))))
}
