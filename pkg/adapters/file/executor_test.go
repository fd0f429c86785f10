package file_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/opbridge/pkg/adapters/file"
	"github.com/aretw0/opbridge/pkg/domain"
	"github.com/aretw0/opbridge/pkg/ports"
	"github.com/aretw0/opbridge/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_FileContract(t *testing.T) {
	dir := t.TempDir()
	tests.RunFileExecutorContract(t, file.New(), func(name string) string {
		return filepath.Join(dir, name)
	})
}

func TestExecutor_Contract(t *testing.T) {
	dir := t.TempDir()
	tests.RunExecutorContract(t, file.New(), func(i int) domain.Request {
		if i%2 == 0 {
			return domain.FileReadRequest{Path: filepath.Join(dir, "shared")}
		}
		return domain.FileWriteRequest{
			Path:     filepath.Join(dir, "shared"),
			Contents: []byte("x"),
			Strategy: domain.AppendOnExisting,
		}
	})
}

func TestExecutor_AppendsAreSerialized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log")
	exec := file.New()

	done := make(chan domain.Outcome, 32)
	for i := 0; i < 32; i++ {
		require.NoError(t, exec.Execute(domain.FileWriteRequest{
			Path:     path,
			Contents: []byte("a"),
			Strategy: domain.AppendOnExisting,
		}, ports.ListenerFunc(func(o domain.Outcome) { done <- o })))
	}
	for i := 0; i < 32; i++ {
		o := <-done
		assert.False(t, o.Failed())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, 32)
}

func TestExecutor_MissingDirectoryIsCreateFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope", "file.txt")
	outcome := file.New().Write(domain.FileWriteRequest{Path: path, Contents: []byte("x"), Strategy: domain.Overwrite})

	_, err := outcome.FileWrite()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFileCreate)

	var writeErr *domain.FileWriteError
	require.ErrorAs(t, err, &writeErr)
	assert.Equal(t, domain.FileWriteErrCreate, writeErr.Code)
	assert.Equal(t, path, writeErr.Path)
}

func TestExecutor_ReadDirectoryFails(t *testing.T) {
	dir := t.TempDir()
	_, err := file.New().Read(domain.FileReadRequest{Path: dir}).FileRead()
	assert.ErrorIs(t, err, domain.ErrFileRead)
}

func TestExecutor_Root(t *testing.T) {
	root := t.TempDir()
	exec := file.New(file.WithRoot(root))

	resp, err := exec.Read(domain.FileReadRequest{Path: filepath.Join(root, "in.txt")}).FileRead()
	require.NoError(t, err)
	assert.False(t, resp.Exists)

	_, err = exec.Read(domain.FileReadRequest{Path: "/etc/hostname"}).FileRead()
	assert.ErrorIs(t, err, domain.ErrFileRead)

	_, err = exec.Write(domain.FileWriteRequest{Path: filepath.Join(root, "..", "escape"), Strategy: domain.Overwrite}).FileWrite()
	assert.ErrorIs(t, err, domain.ErrFileCreate)
}

func TestExecutor_RejectsNetwork(t *testing.T) {
	err := file.New().Execute(domain.NetworkRequest{Method: "GET", URL: "https://example.com"}, ports.ListenerFunc(func(domain.Outcome) {}))
	assert.Error(t, err)
}

func TestExecutor_WritesThroughSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.log")
	link := filepath.Join(dir, "link.log")
	require.NoError(t, os.WriteFile(target, []byte("A"), 0o600))
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	resp, err := file.New().Write(domain.FileWriteRequest{Path: link, Contents: []byte("B"), Strategy: domain.AppendOnExisting}).FileWrite()
	require.NoError(t, err)
	assert.Equal(t, domain.DidWrite(true), resp)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "AB", string(data))

	info, err := os.Lstat(link)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink, "the link must stay a link")
}

func TestExecutor_SymlinkOutsideRoot(t *testing.T) {
	root := t.TempDir()
	outside := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(outside, []byte("keep"), 0o600))
	link := filepath.Join(root, "escape")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	_, err := file.New(file.WithRoot(root)).Write(domain.FileWriteRequest{Path: link, Contents: []byte("x"), Strategy: domain.Overwrite}).FileWrite()
	assert.ErrorIs(t, err, domain.ErrFileWrite)

	data, err := os.ReadFile(outside)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))
}

func TestExecutor_OverwriteKeepsMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "private")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o600))
	require.NoError(t, os.Chmod(path, 0o600))

	_, err := file.New(file.WithPermissions(0o644)).Write(domain.FileWriteRequest{Path: path, Contents: []byte("new"), Strategy: domain.Overwrite}).FileWrite()
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestExecutor_ReadOnlyDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}
	dir := t.TempDir()
	existing := filepath.Join(dir, "existing")
	require.NoError(t, os.WriteFile(existing, []byte("A"), 0o644))
	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	exec := file.New()

	resp, err := exec.Write(domain.FileWriteRequest{Path: existing, Contents: []byte("B"), Strategy: domain.AppendOnExisting}).FileWrite()
	require.NoError(t, err, "an existing writable file can be appended to in a read-only directory")
	assert.True(t, resp.AlreadyExisted)

	_, err = exec.Write(domain.FileWriteRequest{Path: filepath.Join(dir, "new"), Contents: []byte("x"), Strategy: domain.Overwrite}).FileWrite()
	var writeErr *domain.FileWriteError
	require.ErrorAs(t, err, &writeErr)
	assert.Equal(t, domain.FileWriteErrCreate, writeErr.Code)
}

func TestExecutor_ReadOnlyFileIsHandleFailure(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}
	path := filepath.Join(t.TempDir(), "locked")
	require.NoError(t, os.WriteFile(path, []byte("A"), 0o444))

	_, err := file.New().Write(domain.FileWriteRequest{Path: path, Contents: []byte("B"), Strategy: domain.Overwrite}).FileWrite()
	var writeErr *domain.FileWriteError
	require.ErrorAs(t, err, &writeErr)
	assert.Equal(t, domain.FileWriteErrHandle, writeErr.Code)
}
