package memory

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/opbridge/pkg/domain"
	"github.com/aretw0/opbridge/pkg/ports"
)

// Executor implements ports.Executor in memory.
// Files live in a map keyed by absolute path; network requests are answered from canned
// routes. Safe for concurrent use. Outcomes are delivered on a new goroutine, like a real
// host would.
type Executor struct {
	kinds domain.KindSet

	mu     sync.RWMutex
	files  map[string][]byte
	routes map[string]domain.Outcome
	calls  map[domain.OperationKind]int
}

// New creates an executor supporting all kinds, or only the given ones.
func New(kinds ...domain.OperationKind) *Executor {
	if len(kinds) == 0 {
		kinds = []domain.OperationKind{domain.KindNetwork, domain.KindFileRead, domain.KindFileWrite}
	}
	return &Executor{
		kinds:  domain.NewKindSet(kinds...),
		files:  make(map[string][]byte),
		routes: make(map[string]domain.Outcome),
		calls:  make(map[domain.OperationKind]int),
	}
}

func routeKey(method, url string) string {
	return strings.ToUpper(method) + " " + url
}

// Route answers method+url with resp.
func (e *Executor) Route(method, url string, resp domain.NetworkResponse) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.routes[routeKey(method, url)] = domain.NetworkSuccess(resp)
}

// RouteError answers method+url with a network failure.
func (e *Executor) RouteError(method, url string, err *domain.NetworkError) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.routes[routeKey(method, url)] = domain.NetworkFailure(err)
}

// Put stores a file. The slice is copied.
func (e *Executor) Put(path string, contents []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.files[path] = append([]byte(nil), contents...)
}

// Get returns a copy of a stored file.
func (e *Executor) Get(path string) ([]byte, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	data, ok := e.files[path]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Paths lists stored files in lexical order.
func (e *Executor) Paths() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	paths := make([]string, 0, len(e.files))
	for p := range e.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Calls returns how many requests of kind were executed.
func (e *Executor) Calls(kind domain.OperationKind) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.calls[kind]
}

func (e *Executor) SupportedKinds() domain.KindSet {
	return domain.NewKindSet().Union(e.kinds)
}

func (e *Executor) Execute(req domain.Request, listener ports.Listener) error {
	if !e.kinds.Has(req.Kind()) {
		return fmt.Errorf("memory executor does not support %s", req.Kind())
	}
	e.mu.Lock()
	e.calls[req.Kind()]++
	e.mu.Unlock()

	var outcome domain.Outcome
	switch r := req.(type) {
	case domain.NetworkRequest:
		outcome = e.fetch(r)
	case domain.FileReadRequest:
		outcome = e.read(r)
	case domain.FileWriteRequest:
		outcome = e.write(r)
	default:
		return fmt.Errorf("memory executor cannot run %T", req)
	}
	go listener.Notify(outcome)
	return nil
}

func (e *Executor) fetch(req domain.NetworkRequest) domain.Outcome {
	e.mu.RLock()
	outcome, ok := e.routes[routeKey(req.Method, req.URL)]
	e.mu.RUnlock()
	if ok {
		return outcome
	}
	return domain.NetworkFailure(&domain.NetworkError{
		Code:       domain.NetworkErrStatus,
		URL:        req.URL,
		StatusCode: 404,
		Underlying: "no route",
	})
}

func (e *Executor) read(req domain.FileReadRequest) domain.Outcome {
	data, ok := e.Get(req.Path)
	if !ok {
		return domain.FileReadSuccess(domain.FileDoesNotExist(req.Path))
	}
	return domain.FileReadSuccess(domain.FileExists(req.Path, data))
}

func (e *Executor) write(req domain.FileWriteRequest) domain.Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	existing, existed := e.files[req.Path]
	contents, abort := domain.ApplyStrategy(existing, existed, req)
	if abort {
		return domain.FileWriteSuccess(domain.OverwriteAborted())
	}
	e.files[req.Path] = append([]byte(nil), contents...)
	return domain.FileWriteSuccess(domain.DidWrite(existed))
}
