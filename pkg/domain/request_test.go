package domain_test

import (
	"errors"
	"testing"

	"github.com/aretw0/opbridge/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetworkRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     domain.NetworkRequest
		wantErr error
	}{
		{"valid", domain.NetworkRequest{Method: "GET", URL: "https://example.com/a?b=c"}, nil},
		{"not a url", domain.NetworkRequest{Method: "GET", URL: "not a url"}, domain.ErrInvalidURL},
		{"missing host", domain.NetworkRequest{Method: "GET", URL: "http://"}, domain.ErrInvalidURL},
		{"relative", domain.NetworkRequest{Method: "GET", URL: "/path/only"}, domain.ErrInvalidURL},
		{"empty method", domain.NetworkRequest{URL: "https://example.com"}, domain.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNetworkRequest_InvalidURLIsTaxonomyError(t *testing.T) {
	err := domain.NetworkRequest{Method: "POST", URL: "not a url"}.Validate()

	var netErr *domain.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, domain.NetworkErrInvalidURL, netErr.Code)
	assert.Equal(t, "not a url", netErr.URL)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest, "a bad url is a request-construction error")
}

func TestFileRequests_Validate(t *testing.T) {
	assert.NoError(t, domain.FileReadRequest{Path: "/tmp/a"}.Validate())
	assert.ErrorIs(t, domain.FileReadRequest{Path: "relative/a"}.Validate(), domain.ErrInvalidRequest)
	assert.ErrorIs(t, domain.FileReadRequest{}.Validate(), domain.ErrInvalidRequest)

	assert.NoError(t, domain.FileWriteRequest{Path: "/tmp/a", Strategy: domain.AppendOnExisting}.Validate())
	err := domain.FileWriteRequest{Path: "/tmp/a", Strategy: domain.ExistsStrategy(42)}.Validate()
	var reqErr *domain.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "strategy", reqErr.Field)
}

func TestHeaders_OrderAndLookup(t *testing.T) {
	var h domain.Headers
	h = h.Add("Accept", "application/json")
	h = h.Add("X-Trace", "1")
	h = h.Add("x-trace", "2")
	h = h.Set("X-TRACE", "3")

	require.Len(t, h, 2)
	assert.Equal(t, "Accept", h[0].Name)
	assert.Equal(t, domain.Header{Name: "X-Trace", Value: "3"}, h[1])

	v, ok := h.Get("accept")
	assert.True(t, ok)
	assert.Equal(t, "application/json", v)

	_, ok = h.Get("missing")
	assert.False(t, ok)
}

func TestKindSet(t *testing.T) {
	a := domain.NewKindSet(domain.KindFileWrite, domain.KindNetwork)
	b := domain.NewKindSet(domain.KindFileRead)

	assert.True(t, a.Has(domain.KindNetwork))
	assert.False(t, a.Has(domain.KindFileRead))
	assert.False(t, domain.KindSet(nil).Has(domain.KindNetwork))

	all := a.Union(b)
	assert.Equal(t, []domain.OperationKind{domain.KindNetwork, domain.KindFileRead, domain.KindFileWrite}, all.Slice())
	assert.Equal(t, "[network,file_read,file_write]", all.String())
}

func TestParseKind(t *testing.T) {
	k, err := domain.ParseKind("File-Write")
	require.NoError(t, err)
	assert.Equal(t, domain.KindFileWrite, k)

	_, err = domain.ParseKind("teleport")
	assert.Error(t, err)
}
