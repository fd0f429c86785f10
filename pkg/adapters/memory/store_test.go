package memory_test

import (
	"fmt"
	"testing"

	"github.com/aretw0/opbridge/pkg/adapters/memory"
	"github.com/aretw0/opbridge/pkg/domain"
	"github.com/aretw0/opbridge/pkg/ports"
	"github.com/aretw0/opbridge/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryExecutor_FileContract(t *testing.T) {
	tests.RunFileExecutorContract(t, memory.New(), func(name string) string {
		return "/mem/" + name
	})
}

func TestMemoryExecutor_Contract(t *testing.T) {
	exec := memory.New()
	exec.Route("GET", "https://example.com/a", domain.NetworkResponse{StatusCode: 200})
	tests.RunExecutorContract(t, exec, func(i int) domain.Request {
		switch i % 3 {
		case 0:
			return domain.NetworkRequest{Method: "GET", URL: "https://example.com/a"}
		case 1:
			return domain.FileReadRequest{Path: fmt.Sprintf("/mem/%d", i)}
		default:
			return domain.FileWriteRequest{Path: fmt.Sprintf("/mem/%d", i), Contents: []byte("x")}
		}
	})
}

func TestMemoryExecutor_Routes(t *testing.T) {
	exec := memory.New()
	exec.Route("get", "https://example.com/tx", domain.NetworkResponse{StatusCode: 200, Body: []byte(`{"id":1}`)})

	resp, err := tests.Await(t, exec, domain.NetworkRequest{Method: "GET", URL: "https://example.com/tx"}).Network()
	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, string(resp.Body))

	_, err = tests.Await(t, exec, domain.NetworkRequest{Method: "GET", URL: "https://example.com/missing"}).Network()
	assert.ErrorIs(t, err, domain.ErrHTTPStatus)
	assert.Equal(t, 2, exec.Calls(domain.KindNetwork))
}

func TestMemoryExecutor_RestrictedKinds(t *testing.T) {
	exec := memory.New(domain.KindFileRead)
	assert.False(t, exec.SupportedKinds().Has(domain.KindFileWrite))
	err := exec.Execute(domain.FileWriteRequest{Path: "/x"}, ports.ListenerFunc(func(domain.Outcome) {}))
	assert.Error(t, err)
}

func TestMemoryExecutor_CopiesOnPut(t *testing.T) {
	exec := memory.New()
	data := []byte("abc")
	exec.Put("/a", data)
	data[0] = 'z'
	got, ok := exec.Get("/a")
	require.True(t, ok)
	assert.Equal(t, "abc", string(got))
	assert.Equal(t, []string{"/a"}, exec.Paths())
}
