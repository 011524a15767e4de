package canvas

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gradewatch-backend/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, server *httptest.Server, timeout time.Duration) *Client {
	client, err := NewClient(ClientOptions{
		Origin:       server.URL,
		FetchTimeout: timeout,
	})
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestPagination(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:canvas")
	defer cleanup()

	var mux http.ServeMux
	server := httptest.NewServer(&mux)
	defer server.Close()

	mux.HandleFunc("/api/v1/courses/101/students/submissions", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "100", r.URL.Query().Get("per_page"))
		require.Contains(t, r.URL.Query()["student_ids[]"], "5523")

		page := r.URL.Query().Get("page")
		switch page {
		case "", "1":
			w.Header().Set("Link", fmt.Sprintf(
				`<%s/api/v1/courses/101/students/submissions?page=2&per_page=100&student_ids%%5B%%5D=5523>; rel="next"`,
				server.URL,
			))
			fmt.Fprint(w, `[{"id":1,"user_id":5523},{"id":2,"user_id":5523}]`)
		case "2":
			w.Header().Set("Link", fmt.Sprintf(
				`<%s/api/v1/courses/101/students/submissions?page=1>; rel="prev", <%s/api/v1/courses/101/students/submissions?page=3&per_page=100&student_ids%%5B%%5D=5523>; rel="next"`,
				server.URL, server.URL,
			))
			fmt.Fprint(w, `[{"id":3,"user_id":5523}]`)
		case "3":
			fmt.Fprint(w, `[{"id":4,"user_id":5523},{"id":5,"user_id":5523}]`)
		default:
			t.Fatalf("unexpected page: %q", page)
		}
	})

	client := newTestClient(t, server, 0)
	subs, err := client.Submissions(context.Background(), "101", []string{"5523"})
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, subs, 5)
	require.Equal(t, int64(1), subs[0].Id)
	require.Equal(t, int64(5), subs[4].Id)
}

func TestUnauthorizedConfirmed(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:canvas")
	defer cleanup()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"status":"unauthorized","errors":[{"message":"user not authorized to perform that action"}]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server, 0)
	_, err := client.Submissions(context.Background(), "101", []string{"5523"})
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestUnauthorizedUnconfirmed(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:canvas")
	defer cleanup()

	// some instances return 401 with an html error page for reasons
	// unrelated to authorization, that must not escalate
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `<html>maintenance</html>`)
	}))
	defer server.Close()

	client := newTestClient(t, server, 0)
	_, err := client.Submissions(context.Background(), "101", []string{"5523"})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrUnauthorized)
}

func TestPartialOnServerError(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:canvas")
	defer cleanup()

	var mux http.ServeMux
	server := httptest.NewServer(&mux)
	defer server.Close()

	mux.HandleFunc("/api/v1/courses/101/users", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(
			`<%s/api/v1/courses/101/users?page=2>; rel="next"`,
			server.URL,
		))
		fmt.Fprint(w, `[{"id":5523,"name":"Alice"}]`)
	})

	client := newTestClient(t, server, 0)
	users, err := client.Users(context.Background(), "101", []string{"5523"})
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, users, 1)
	require.Equal(t, "Alice", users[0].Name)
}

func TestPartialOnTimeout(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:canvas")
	defer cleanup()

	var mux http.ServeMux
	server := httptest.NewServer(&mux)
	defer server.Close()

	mux.HandleFunc("/api/v1/courses/101/students/submissions", func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		if page == "3" {
			time.Sleep(time.Second)
			fmt.Fprint(w, `[{"id":9}]`)
			return
		}
		next := "2"
		if page == "2" {
			next = "3"
		}
		w.Header().Set("Link", fmt.Sprintf(
			`<%s/api/v1/courses/101/students/submissions?page=%s>; rel="next"`,
			server.URL, next,
		))
		fmt.Fprintf(w, `[{"id":%s}]`, map[string]string{"": "1", "2": "2"}[page])
	})

	client := newTestClient(t, server, time.Millisecond*250)
	subs, err := client.Submissions(context.Background(), "101", []string{"5523"})
	if err != nil {
		t.Fatal(err)
	}
	// 2 of 3 pages made it before the deadline, keep those
	require.Len(t, subs, 2)
}

func TestNextPageLink(t *testing.T) {
	testCases := []struct {
		header   string
		expected string
	}{
		{
			header:   `<https://x.test/api?page=2>; rel="next"`,
			expected: "https://x.test/api?page=2",
		},
		{
			header:   `<https://x.test/api?page=1>; rel="prev", <https://x.test/api?page=3>; rel="next", <https://x.test/api?page=9>; rel="last"`,
			expected: "https://x.test/api?page=3",
		},
		{header: `<https://x.test/api?page=1>; rel="first"`, expected: ""},
		{header: "", expected: ""},
	}

	for _, test := range testCases {
		require.Equal(t, test.expected, NextPageLink(test.header), "header: %q", test.header)
	}
}
