package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"compound-harmonizer/models"
)

type stubRetriever struct {
	name  string
	res   Result
	err   error
	calls int
}

func (s *stubRetriever) Name() string { return s.name }

func (s *stubRetriever) Retrieve(context.Context, string) (Result, error) {
	s.calls++
	return s.res, s.err
}

func TestChainFirstHitWins(t *testing.T) {
	failing := &stubRetriever{name: "A", res: NoResult(), err: errors.New("status 500")}
	empty := &stubRetriever{name: "B", res: NoResult()}
	hit := &stubRetriever{name: "C", res: Result{Source: "C", Text: "text"}}
	unused := &stubRetriever{name: "D", res: Result{Source: "D", Text: "other"}}

	chain := NewChain(zap.NewNop(), failing, empty, hit, unused)
	assert.Equal(t, "A,B,C,D", chain.Name())

	res, err := chain.Retrieve(context.Background(), "Valine")
	require.NoError(t, err)
	assert.Equal(t, "C", res.Source)
	assert.Zero(t, unused.calls)
}

func TestChainNoResult(t *testing.T) {
	chain := NewChain(zap.NewNop(), &stubRetriever{name: "A", res: NoResult()})
	res, err := chain.Retrieve(context.Background(), "Valine")
	require.NoError(t, err)
	assert.False(t, res.Found())
	assert.Equal(t, models.NoResults, res.Text)
}

func TestChainCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &stubRetriever{name: "A", res: Result{Source: "A", Text: "text"}}
	_, err := NewChain(zap.NewNop(), r).Retrieve(ctx, "Valine")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, r.calls)

	wrapped := &stubRetriever{name: "B", err: context.DeadlineExceeded}
	_, err = NewChain(zap.NewNop(), wrapped).Retrieve(context.Background(), "Valine")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResultFound(t *testing.T) {
	assert.False(t, Result{}.Found())
	assert.False(t, NoResult().Found())
	assert.True(t, Result{Text: "x"}.Found())
}

func TestHTTPClientSetsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	resp, err := NewHTTPClient(5 * time.Second).Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, UserAgent, got)
}
