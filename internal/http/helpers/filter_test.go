package helpers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	httperrors "github.com/wenex-org/platform-sub000/internal/http/errors"
)

func TestParseFilter_JSON(t *testing.T) {
	v := url.Values{}
	v.Set("filter", `{"query":{"status":{"$in":["open"]}},"sort":["-total"],"pagination":{"skip":5,"limit":10}}`)
	f, err := ParseFilter(v)
	require.NoError(t, err)
	require.Equal(t, []string{"-total"}, f.Sort)
	require.Equal(t, resource.Pagination{Skip: 5, Limit: 10}, f.Pagination)
	require.Contains(t, f.Query, "status")
}

func TestParseFilter_Shorthand(t *testing.T) {
	v, _ := url.ParseQuery(`q={"name":"x"}&skip=2&limit=3&sort=name,-created_at&fields=name`)
	f, err := ParseFilter(v)
	require.NoError(t, err)
	require.Equal(t, resource.Query{"name": "x"}, f.Query)
	require.Equal(t, []string{"name", "-created_at"}, f.Sort)
	require.Equal(t, []string{"name"}, f.Projection)
	require.Equal(t, int64(2), f.Pagination.Skip)
}

func TestParseFilter_Rejects(t *testing.T) {
	for _, raw := range []string{
		`filter={"query":{"a":{"$where":"1"}}}`,
		`filter={"unknown":1}`,
		`limit=abc`,
		`skip=-1`,
		`q=notjson`,
	} {
		v, _ := url.ParseQuery(raw)
		_, err := ParseFilter(v)
		require.Error(t, err, raw)
		app, ok := err.(*httperrors.AppError)
		require.True(t, ok, raw)
		require.Equal(t, "INVALID_FILTER", app.Code, raw)
	}
}

func TestWithPageDefaults(t *testing.T) {
	require.Equal(t, DefaultLimit, WithPageDefaults(resource.Filter{}).Pagination.Limit)
	f := WithPageDefaults(resource.Filter{Pagination: resource.Pagination{Limit: 5000}})
	require.Equal(t, MaxLimit, f.Pagination.Limit)
}

func TestReadBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":1}`))
	raw, err := ReadBody(httptest.NewRecorder(), r, 0)
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, string(raw))

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":1}`))
	r.Header.Set("Content-Type", "text/plain")
	_, err = ReadBody(httptest.NewRecorder(), r, 0)
	require.ErrorIs(t, err, httperrors.ErrUnsupportedMedia)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":"`+strings.Repeat("x", 100)+`"}`))
	_, err = ReadBody(httptest.NewRecorder(), r, 16)
	require.Equal(t, "PAYLOAD_TOO_LARGE", httperrors.FromError(err).Code)
}

func TestDecodeStrict(t *testing.T) {
	var v struct {
		A int `json:"a"`
	}
	require.NoError(t, DecodeStrict([]byte(`{"a":1}`), &v))
	require.Error(t, DecodeStrict([]byte(`{"a":1,"b":2}`), &v))
	require.Error(t, DecodeStrict([]byte(`{"a":1} {"a":2}`), &v))
}
