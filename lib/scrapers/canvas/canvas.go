// Package canvas is a read-only client for a Canvas-style gradebook
// REST api: json array endpoints, Link-header pagination and
// query-string batching of multiple student ids per call.
package canvas

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"gradewatch-backend/lib/restyutil"
	"gradewatch-backend/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("scrapers/canvas")

var instrumentOutput restyutil.InstrumentOutput

// SetRestyInstrumentOutput dumps raw exchanges of clients created after
// this call, for debugging instances with odd response shapes.
func SetRestyInstrumentOutput(output restyutil.InstrumentOutput) {
	instrumentOutput = output
}

// the remote session has expired or lacks permission, callers should
// escalate instead of retrying
var ErrUnauthorized = fmt.Errorf("the gradebook session is no longer authorized")

const DefaultFetchTimeout = time.Second * 30

type Client struct {
	http         *resty.Client
	fetchTimeout time.Duration
}

type ClientOptions struct {
	Origin      string
	AccessToken string
	// deadline for one full pagination chain, DefaultFetchTimeout
	// when zero
	FetchTimeout time.Duration
}

func NewClient(opts ClientOptions) (*Client, error) {
	client := resty.New()
	client.SetBaseURL(opts.Origin)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.SetHeader("user-agent", "gradewatch/1.0")
	if opts.AccessToken != "" {
		client.SetAuthToken(opts.AccessToken)
	}

	telemetry.InstrumentResty(client, "scrapers/canvas/http")
	restyutil.InstrumentClient(client, instrumentOutput)

	timeout := opts.FetchTimeout
	if timeout == 0 {
		timeout = DefaultFetchTimeout
	}
	return &Client{http: client, fetchTimeout: timeout}, nil
}

// Submissions fetches every submission for the given students in one
// course, batched into a single paginated request chain.
func (c *Client) Submissions(ctx context.Context, courseId string, studentIds []string) ([]Submission, error) {
	ctx, span := tracer.Start(ctx, "Submissions")
	defer span.End()

	query := url.Values{
		"per_page":  {"100"},
		"include[]": {"assignment"},
	}
	for _, id := range studentIds {
		query.Add("student_ids[]", id)
	}
	return fetchPaginated[Submission](ctx, c, fmt.Sprintf(
		"/api/v1/courses/%s/students/submissions?%s",
		courseId, query.Encode(),
	))
}

// Users fetches the given students' user records for one course,
// including their enrollments (which carry the grade snapshot).
func (c *Client) Users(ctx context.Context, courseId string, studentIds []string) ([]User, error) {
	ctx, span := tracer.Start(ctx, "Users")
	defer span.End()

	query := url.Values{
		"per_page":  {"100"},
		"include[]": {"enrollments"},
	}
	for _, id := range studentIds {
		query.Add("user_ids[]", id)
	}
	return fetchPaginated[User](ctx, c, fmt.Sprintf(
		"/api/v1/courses/%s/users?%s",
		courseId, query.Encode(),
	))
}

// fetchPaginated follows rel="next" links until the collection is
// exhausted or the fetch deadline is hit. It holds no shared state,
// concurrency is bounded entirely by the caller.
//
// one slow or huge course shouldn't blight an entire cycle, so a
// deadline or a mid-chain error hands back the pages accumulated so
// far instead of failing the whole call.
func fetchPaginated[T any](ctx context.Context, c *Client, pageUrl string) ([]T, error) {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	var acc []T
	for {
		res, err := c.http.R().SetContext(ctx).Get(pageUrl)
		if err != nil {
			if ctx.Err() != nil || len(acc) > 0 {
				return acc, nil
			}
			return nil, err
		}

		status := res.StatusCode()
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			// some instances return 401 for unrelated reasons, only
			// escalate when the body confirms it
			if confirmsUnauthorized(res.Body()) {
				return nil, ErrUnauthorized
			}
		}
		if res.IsError() {
			if len(acc) > 0 {
				slog.WarnContext(ctx, "pagination aborted early", "url", pageUrl, "status", res.Status())
				return acc, nil
			}
			return nil, fmt.Errorf("GET %s: %s", pageUrl, res.Status())
		}

		var page []T
		err = json.Unmarshal(res.Body(), &page)
		if err != nil {
			if len(acc) > 0 {
				return acc, nil
			}
			return nil, err
		}
		acc = append(acc, page...)

		next := NextPageLink(res.Header().Get("Link"))
		if next == "" {
			return acc, nil
		}
		pageUrl = next
	}
}

// NextPageLink extracts the rel="next" url from a Link response
// header, returning "" when the last page has been reached.
func NextPageLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		segments := strings.Split(part, ";")
		if len(segments) < 2 {
			continue
		}
		urlPart := strings.TrimSpace(segments[0])
		if !strings.HasPrefix(urlPart, "<") || !strings.HasSuffix(urlPart, ">") {
			continue
		}
		for _, param := range segments[1:] {
			if strings.TrimSpace(param) == `rel="next"` {
				return strings.Trim(urlPart, "<>")
			}
		}
	}
	return ""
}

func confirmsUnauthorized(body []byte) bool {
	var payload struct {
		Status string `json:"status"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return false
	}
	if strings.Contains(strings.ToLower(payload.Status), "unauthorized") {
		return true
	}
	for _, e := range payload.Errors {
		msg := strings.ToLower(e.Message)
		if strings.Contains(msg, "not authorized") || strings.Contains(msg, "invalid access token") {
			return true
		}
	}
	return false
}
