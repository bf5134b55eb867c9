package europepmc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRetrieve(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("query")
		_, _ = w.Write([]byte(`{
			"hitCount": 3,
			"resultList": {"result": [
				{"id": "1", "title": "Unrelated", "abstractText": ""},
				{"id": "2", "title": "Other topic", "abstractText": "Nothing about it."},
				{"id": "3", "title": "Caffeine metabolism", "abstractText": "Levels of <i>CYP1A2</i> vary."}
			]}
		}`))
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL, zap.NewNop())
	res, err := f.Retrieve(context.Background(), "caffeine")
	require.NoError(t, err)
	assert.Equal(t, `ABSTRACT:"caffeine"`, query)
	assert.Equal(t, SourceName, res.Source)
	assert.Equal(t, "Levels of CYP1A2 vary.", res.Text)
}

func TestRetrieveNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hitCount": 0, "resultList": {"result": []}}`))
	}))
	defer srv.Close()

	res, err := NewFetcher(srv.URL, zap.NewNop()).Retrieve(context.Background(), "Unknownium")
	require.NoError(t, err)
	assert.False(t, res.Found())
}

func TestRetrieveStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewFetcher(srv.URL, zap.NewNop()).Retrieve(context.Background(), "x")
	assert.Error(t, err)
}
