package gistcache

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	cachekey "github.com/always-cache/gist-cache/pkg/cache-key"
	"github.com/always-cache/gist-cache/pkg/upstream"
	"github.com/always-cache/gist-cache/pkg/upstream/mock_upstream"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name     string
		res      upstream.Response
		err      error
		expected Outcome
	}{
		{
			name:     "transport_failure",
			err:      errors.New("dial tcp: connection refused"),
			expected: Outcome{Kind: OutcomeUpstreamError, Message: "dial tcp: connection refused"},
		},
		{
			name:     "transport_failure_wins_over_response",
			res:      upstream.Response{StatusCode: http.StatusNotFound},
			err:      errors.New("timeout"),
			expected: Outcome{Kind: OutcomeUpstreamError, Message: "timeout"},
		},
		{
			name:     "not_found",
			res:      upstream.Response{StatusCode: http.StatusNotFound, Body: []byte(`{"message":"Not Found"}`)},
			expected: Outcome{Kind: OutcomeNotFound, Message: "user octocat not found"},
		},
		{
			name:     "not_found_wins_over_invalid_body",
			res:      upstream.Response{StatusCode: http.StatusNotFound, Body: []byte("nope")},
			expected: Outcome{Kind: OutcomeNotFound, Message: "user octocat not found"},
		},
		{
			name:     "invalid_json",
			res:      upstream.Response{StatusCode: http.StatusOK, Body: []byte("{")},
			expected: Outcome{Kind: OutcomeInvalidPayload, Message: "GitHub returned non-json"},
		},
		{
			name:     "success",
			res:      upstream.Response{StatusCode: http.StatusOK, Body: []byte(`[]`)},
			expected: Outcome{Kind: OutcomeSuccess, Payload: []byte(`[]`)},
		},
		{
			name:     "server_error_with_json_is_success",
			res:      upstream.Response{StatusCode: http.StatusInternalServerError, Body: []byte(`{"message":"boom"}`)},
			expected: Outcome{Kind: OutcomeSuccess, Payload: []byte(`{"message":"boom"}`)},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Classify("octocat", tc.res, tc.err))
		})
	}
}

func TestOutcomeResponses(t *testing.T) {
	testCases := []struct {
		outcome Outcome
		status  int
		body    string
	}{
		{Outcome{Kind: OutcomeSuccess, Payload: []byte(`[1]`)}, http.StatusOK, `[1]`},
		{Outcome{Kind: OutcomeNotFound, Message: "user <x> not found"}, http.StatusNotFound, `{"error":"not_found","message":"user <x> not found"}` + "\n"},
		{Outcome{Kind: OutcomeUpstreamError, Message: "timeout"}, http.StatusBadGateway, `{"error":"upstream_error","message":"timeout"}` + "\n"},
		{Outcome{Kind: OutcomeInvalidPayload, Message: "GitHub returned non-json"}, http.StatusBadGateway, `{"error":"invalid_response","message":"GitHub returned non-json"}` + "\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.outcome.Kind.String(), func(t *testing.T) {
			rr := httptest.NewRecorder()
			tc.outcome.Write(rr)
			assert.Equal(t, tc.status, rr.Code)
			assert.Equal(t, tc.body, rr.Body.String())
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		})
	}
}

func newMockedCache(t *testing.T, fetcher upstream.Fetcher, now func() time.Time) *GistCache {
	t.Helper()
	logger := zerolog.Nop()
	gc, err := CreateCache(Config{Fetcher: fetcher, Logger: &logger, Now: now})
	require.NoError(t, err)
	return gc
}

func TestFreshHitSkipsUpstream(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mock_upstream.NewMockFetcher(ctrl)
	clock := &testClock{now: time.Unix(1700000000, 0)}
	gc := newMockedCache(t, fetcher, clock.Now)

	fetcher.EXPECT().
		FetchGists(gomock.Any(), cachekey.New("octocat", 1, 30)).
		Return(upstream.Response{StatusCode: http.StatusOK, Body: []byte(gistsBody)}, nil).
		Times(1)

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		gc.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/octocat", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, gistsBody, rr.Body.String())
		clock.Advance(10 * time.Second)
	}
}

func TestFetchIsBoundedByTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mock_upstream.NewMockFetcher(ctrl)
	gc := newMockedCache(t, fetcher, nil)

	fetcher.EXPECT().
		FetchGists(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, key cachekey.Key) (upstream.Response, error) {
			deadline, ok := ctx.Deadline()
			assert.True(t, ok, "upstream call without deadline")
			assert.WithinDuration(t, time.Now().Add(DefaultFetchTimeout), deadline, time.Second)
			return upstream.Response{}, context.DeadlineExceeded
		})

	rr := httptest.NewRecorder()
	gc.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/octocat?page=4", nil))

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Equal(t, errorBody{Error: "upstream_error", Message: "context deadline exceeded"}, decodeError(t, rr))
}

func TestTransportFailureIsRetriedOnNextRequestOnly(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mock_upstream.NewMockFetcher(ctrl)
	gc := newMockedCache(t, fetcher, nil)

	key := cachekey.New("octocat", 1, 30)
	gomock.InOrder(
		fetcher.EXPECT().FetchGists(gomock.Any(), key).Return(upstream.Response{}, errors.New("connection reset")),
		fetcher.EXPECT().FetchGists(gomock.Any(), key).Return(upstream.Response{StatusCode: http.StatusOK, Body: []byte(`[]`)}, nil),
	)

	rr := httptest.NewRecorder()
	gc.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/octocat", nil))
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Equal(t, "connection reset", decodeError(t, rr).Message)

	rr = httptest.NewRecorder()
	gc.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/octocat", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `[]`, rr.Body.String())
}
