// Package composite combines several host executors into one, routing each request by kind.
package composite

import (
	"fmt"

	"github.com/aretw0/opbridge/pkg/domain"
	"github.com/aretw0/opbridge/pkg/ports"
)

// Executor routes requests to the first registered executor supporting their kind.
type Executor struct {
	routes map[domain.OperationKind]ports.Executor
	kinds  domain.KindSet
}

// New builds a composite. Earlier executors win when two advertise the same kind.
func New(executors ...ports.Executor) *Executor {
	e := &Executor{
		routes: make(map[domain.OperationKind]ports.Executor),
		kinds:  domain.NewKindSet(),
	}
	for _, exec := range executors {
		if exec == nil {
			continue
		}
		for _, kind := range exec.SupportedKinds().Slice() {
			if _, taken := e.routes[kind]; taken {
				continue
			}
			e.routes[kind] = exec
			e.kinds[kind] = struct{}{}
		}
	}
	return e
}

func (e *Executor) SupportedKinds() domain.KindSet {
	return domain.NewKindSet().Union(e.kinds)
}

// Route returns the executor serving kind.
func (e *Executor) Route(kind domain.OperationKind) (ports.Executor, bool) {
	exec, ok := e.routes[kind]
	return exec, ok
}

func (e *Executor) Execute(req domain.Request, listener ports.Listener) error {
	exec, ok := e.routes[req.Kind()]
	if !ok {
		return fmt.Errorf("no executor for %s", req.Kind())
	}
	return exec.Execute(req, listener)
}
