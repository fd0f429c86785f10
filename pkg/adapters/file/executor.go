// Package file provides a host executor for file reads and writes on the local filesystem.
package file

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aretw0/opbridge/internal/logging"
	"github.com/aretw0/opbridge/pkg/domain"
	"github.com/aretw0/opbridge/pkg/ports"
)

// Executor performs FileRead and FileWrite requests on the local filesystem.
// Each request runs on its own goroutine; writes are serialized so that the
// read-modify-write of prepend and append is not interleaved.
type Executor struct {
	root   string
	perm   fs.FileMode
	logger *slog.Logger

	writeMu sync.Mutex
}

// Option configures the Executor.
type Option func(*Executor)

// WithRoot confines every request to paths under root.
func WithRoot(root string) Option {
	return func(e *Executor) {
		e.root = filepath.Clean(root)
	}
}

// WithPermissions sets the mode of newly created files (default 0644, before umask).
// Existing files keep their mode.
func WithPermissions(perm fs.FileMode) Option {
	return func(e *Executor) {
		e.perm = perm
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

func New(opts ...Option) *Executor {
	e := &Executor{perm: 0644, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) SupportedKinds() domain.KindSet {
	return domain.NewKindSet(domain.KindFileRead, domain.KindFileWrite)
}

func (e *Executor) Execute(req domain.Request, listener ports.Listener) error {
	switch r := req.(type) {
	case domain.FileReadRequest:
		go func() { listener.Notify(e.Read(r)) }()
	case domain.FileWriteRequest:
		go func() { listener.Notify(e.Write(r)) }()
	default:
		return fmt.Errorf("file executor cannot run %s requests", req.Kind())
	}
	return nil
}

// Read runs a read synchronously.
func (e *Executor) Read(req domain.FileReadRequest) domain.Outcome {
	if err := e.confine(req.Path); err != nil {
		return domain.FileReadFailure(&domain.FileReadError{Path: req.Path, Underlying: err.Error()})
	}
	data, err := os.ReadFile(req.Path)
	switch {
	case err == nil:
		return domain.FileReadSuccess(domain.FileExists(req.Path, data))
	case errors.Is(err, fs.ErrNotExist):
		return domain.FileReadSuccess(domain.FileDoesNotExist(req.Path))
	default:
		e.logger.Debug("read failed", "path", req.Path, "err", err)
		return domain.FileReadFailure(&domain.FileReadError{Path: req.Path, Underlying: err.Error()})
	}
}

// Write runs a write synchronously.
func (e *Executor) Write(req domain.FileWriteRequest) domain.Outcome {
	if err := e.confine(req.Path); err != nil {
		return createFailure(req.Path, err)
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	existing, err := os.ReadFile(req.Path)
	existed := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return domain.FileWriteFailure(&domain.FileWriteError{
			Code:       domain.FileWriteErrHandle,
			Path:       req.Path,
			Underlying: err.Error(),
		})
	}

	contents, abort := domain.ApplyStrategy(existing, existed, req)
	if abort {
		return domain.FileWriteSuccess(domain.OverwriteAborted())
	}

	var werr *domain.FileWriteError
	if existed {
		werr = e.rewrite(req.Path, contents)
	} else {
		werr = e.create(req.Path, contents)
	}
	if werr != nil {
		e.logger.Debug("write failed", "path", req.Path, "err", werr)
		return domain.FileWriteFailure(werr)
	}
	return domain.FileWriteSuccess(domain.DidWrite(existed))
}

// rewrite truncates and rewrites an existing file in place. Symlinks are followed to the
// real target, and its mode and ownership are left alone.
func (e *Executor) rewrite(path string, contents []byte) *domain.FileWriteError {
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return handleFailure(path, "resolve", err)
	}
	if err := e.confineResolved(target); err != nil {
		return handleFailure(path, "resolve", err)
	}
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return handleFailure(path, "open", err)
	}
	return writeAndClose(f, path, contents)
}

// create makes a new file with the configured mode. It never replaces a file that appeared
// since the existence check.
func (e *Executor) create(path string, contents []byte) *domain.FileWriteError {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, e.perm)
	if err != nil {
		return &domain.FileWriteError{Code: domain.FileWriteErrCreate, Path: path, Underlying: err.Error()}
	}
	return writeAndClose(f, path, contents)
}

func writeAndClose(f *os.File, path string, contents []byte) *domain.FileWriteError {
	if _, err := f.Write(contents); err != nil {
		_ = f.Close()
		return handleFailure(path, "write", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return handleFailure(path, "fsync", err)
	}
	if err := f.Close(); err != nil {
		return handleFailure(path, "close", err)
	}
	return nil
}

func handleFailure(path, op string, err error) *domain.FileWriteError {
	return &domain.FileWriteError{Code: domain.FileWriteErrHandle, Path: path, Underlying: op + ": " + err.Error()}
}

func (e *Executor) confine(path string) error {
	if e.root == "" {
		return nil
	}
	return within(e.root, path)
}

// confineResolved checks a symlink-free path against the symlink-free root.
func (e *Executor) confineResolved(target string) error {
	if e.root == "" {
		return nil
	}
	root, err := filepath.EvalSymlinks(e.root)
	if err != nil {
		root = e.root
	}
	return within(root, target)
}

func within(root, path string) error {
	rel, err := filepath.Rel(root, filepath.Clean(path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path %s is outside %s", path, root)
	}
	return nil
}

func createFailure(path string, err error) domain.Outcome {
	return domain.FileWriteFailure(&domain.FileWriteError{
		Code:       domain.FileWriteErrCreate,
		Path:       path,
		Underlying: err.Error(),
	})
}
