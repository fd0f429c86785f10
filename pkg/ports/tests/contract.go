// Package tests provides contract suites that every ports.Executor implementation runs.
package tests

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/opbridge/pkg/domain"
	"github.com/aretw0/opbridge/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// contractTimeout bounds how long the suites wait for a single outcome.
const contractTimeout = 5 * time.Second

// RunExecutorContract verifies that an Executor notifies every listener exactly once with an
// outcome of the request's kind, under concurrent load. newRequest builds the i-th request;
// it must only build kinds the executor advertises.
func RunExecutorContract(t *testing.T, exec ports.Executor, newRequest func(i int) domain.Request) {
	t.Run("Advertises Kinds", func(t *testing.T) {
		assert.NotEmpty(t, exec.SupportedKinds(), "an executor must support at least one kind")
	})

	t.Run("Exactly Once Under Concurrency", func(t *testing.T) {
		const n = 64
		counts := make([]atomic.Int32, n)
		var wg sync.WaitGroup
		wg.Add(n)

		for i := 0; i < n; i++ {
			req := newRequest(i)
			require.True(t, exec.SupportedKinds().Has(req.Kind()), "request %d has an unadvertised kind", i)

			go func(i int, req domain.Request) {
				err := exec.Execute(req, ports.ListenerFunc(func(o domain.Outcome) {
					assert.Equal(t, req.Kind(), o.Kind(), "outcome kind must match request kind")
					if counts[i].Add(1) == 1 {
						wg.Done()
					}
				}))
				if err != nil {
					t.Errorf("execute %d: %v", i, err)
					wg.Done()
				}
			}(i, req)
		}

		waitGroup(t, &wg)
		// Leave room for a buggy second notification to show up.
		time.Sleep(50 * time.Millisecond)
		for i := range counts {
			assert.Equal(t, int32(1), counts[i].Load(), "listener %d notified a wrong number of times", i)
		}
	})
}

// RunFileExecutorContract verifies the read and write semantics of an Executor supporting
// KindFileRead and KindFileWrite. pathFor maps a test-local name to a fresh absolute path.
func RunFileExecutorContract(t *testing.T, exec ports.Executor, pathFor func(name string) string) {
	require.True(t, exec.SupportedKinds().Has(domain.KindFileRead), "executor must support file reads")
	require.True(t, exec.SupportedKinds().Has(domain.KindFileWrite), "executor must support file writes")

	t.Run("Read Missing", func(t *testing.T) {
		path := pathFor("missing")
		resp, err := Await(t, exec, domain.FileReadRequest{Path: path}).FileRead()
		require.NoError(t, err)
		assert.False(t, resp.Exists)
		assert.Equal(t, path, resp.Path)
	})

	t.Run("Write Abort Is A No-Op On Existing", func(t *testing.T) {
		path := pathFor("abort")
		resp := mustWrite(t, exec, path, "X", domain.Abort)
		assert.Equal(t, domain.DidWrite(false), resp)

		resp = mustWrite(t, exec, path, "Y", domain.Abort)
		assert.True(t, resp.Aborted())
		assert.Equal(t, "X", mustRead(t, exec, path))
	})

	t.Run("Write Append", func(t *testing.T) {
		path := pathFor("append")
		assert.Equal(t, domain.DidWrite(false), mustWrite(t, exec, path, "A", domain.Overwrite))
		assert.Equal(t, domain.DidWrite(true), mustWrite(t, exec, path, "B", domain.AppendOnExisting))
		assert.Equal(t, "AB", mustRead(t, exec, path))
	})

	t.Run("Write Prepend", func(t *testing.T) {
		path := pathFor("prepend")
		mustWrite(t, exec, path, "X", domain.PrependOnExisting)
		assert.Equal(t, domain.DidWrite(true), mustWrite(t, exec, path, "Y", domain.PrependOnExisting))
		assert.Equal(t, "YX", mustRead(t, exec, path))
	})

	t.Run("Write Overwrite", func(t *testing.T) {
		path := pathFor("overwrite")
		mustWrite(t, exec, path, "old contents", domain.Overwrite)
		assert.Equal(t, domain.DidWrite(true), mustWrite(t, exec, path, "new", domain.Overwrite))
		assert.Equal(t, "new", mustRead(t, exec, path))
	})
}

// Await executes req directly on exec and waits for its outcome.
func Await(t *testing.T, exec ports.Executor, req domain.Request) domain.Outcome {
	t.Helper()
	ch := make(chan domain.Outcome, 1)
	require.NoError(t, exec.Execute(req, ports.ListenerFunc(func(o domain.Outcome) { ch <- o })))
	select {
	case o := <-ch:
		return o
	case <-time.After(contractTimeout):
		t.Fatalf("no outcome for %s %s within %v", req.Kind(), domain.Target(req), contractTimeout)
		return domain.Outcome{}
	}
}

func mustWrite(t *testing.T, exec ports.Executor, path, contents string, strategy domain.ExistsStrategy) domain.FileWriteResponse {
	t.Helper()
	resp, err := Await(t, exec, domain.FileWriteRequest{Path: path, Contents: []byte(contents), Strategy: strategy}).FileWrite()
	require.NoError(t, err)
	return resp
}

func mustRead(t *testing.T, exec ports.Executor, path string) string {
	t.Helper()
	resp, err := Await(t, exec, domain.FileReadRequest{Path: path}).FileRead()
	require.NoError(t, err)
	require.True(t, resp.Exists, "expected %s to exist", path)
	return string(resp.Contents)
}

func waitGroup(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(contractTimeout):
		t.Fatal("not every listener was notified")
	}
}
