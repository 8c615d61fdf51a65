package console_test

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wetware/wasmterm/event"
	"github.com/wetware/wasmterm/host"
	"github.com/wetware/wasmterm/host/console"
)

func TestFileSystem(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	fsys := console.FileSystem{}

	uri := func(name string) string {
		u, err := console.URI(filepath.Join(dir, name))
		require.NoError(t, err)
		return u
	}

	require.NoError(t, fsys.CreateDirectory(ctx, uri("sub")))
	err := fsys.CreateDirectory(ctx, uri("sub"))
	assert.Equal(t, host.FileExists, host.CodeOf(err), "should report existing directory")

	require.NoError(t, fsys.WriteFile(ctx, uri("sub/a.txt"), []byte("alpha")))

	st, err := fsys.Stat(ctx, uri("sub/a.txt"))
	require.NoError(t, err)
	assert.Equal(t, host.FileTypeFile, st.Type)
	assert.Equal(t, int64(5), st.Size)

	data, err := fsys.ReadFile(ctx, uri("sub/a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(data))

	_, err = fsys.ReadFile(ctx, uri("sub"))
	assert.Equal(t, host.FileIsADirectory, host.CodeOf(err))

	es, err := fsys.ReadDirectory(ctx, uri("sub"))
	require.NoError(t, err)
	assert.Equal(t, []host.DirEntry{{Name: "a.txt", Type: host.FileTypeFile}}, es)

	require.NoError(t, fsys.Rename(ctx, uri("sub/a.txt"), uri("sub/b.txt")))
	_, err = fsys.Stat(ctx, uri("sub/a.txt"))
	assert.ErrorIs(t, err, fs.ErrNotExist, "should map to io/fs sentinel")

	require.NoError(t, fsys.Delete(ctx, uri("sub/b.txt")))
	_, err = os.Stat(filepath.Join(dir, "sub", "b.txt"))
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = fsys.Stat(ctx, "mem:///foo")
	assert.Equal(t, host.Unavailable, host.CodeOf(err), "should reject non-file URIs")
}

func TestWorkspace(t *testing.T) {
	t.Parallel()

	ws := console.New().LocalWorkspace()

	var events []host.WorkspaceFoldersChangeEvent
	ws.OnDidChangeWorkspaceFolders(func(ev host.WorkspaceFoldersChangeEvent) {
		events = append(events, ev)
	})

	a, err := ws.AddFolder(t.TempDir(), "a")
	require.NoError(t, err)
	b, err := ws.AddFolder(t.TempDir(), "")
	require.NoError(t, err)

	assert.Equal(t, 0, a.Index)
	assert.Equal(t, 1, b.Index)
	assert.True(t, strings.HasPrefix(a.URI, "file://"))
	require.Len(t, events, 2)
	assert.Equal(t, []host.Folder{a}, events[0].Added)

	assert.True(t, ws.RemoveFolder(a.URI))
	assert.False(t, ws.RemoveFolder(a.URI), "should not remove twice")

	require.Len(t, events, 3)
	assert.Equal(t, []host.Folder{a}, events[2].Removed)

	folders := ws.Folders()
	require.Len(t, folders, 1)
	assert.Equal(t, b.URI, folders[0].URI)
	assert.Zero(t, folders[0].Index, "should reindex remaining folders")
}

func TestCommands(t *testing.T) {
	t.Parallel()

	cmds := console.New().Commands()

	var calls int
	d := cmds.RegisterCommand("test.run", func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, cmds.ExecuteCommand(context.Background(), "test.run"))
	assert.Equal(t, 1, calls)

	d.Dispose()
	err := cmds.ExecuteCommand(context.Background(), "test.run")
	require.ErrorIs(t, err, host.ErrUnknownCommand)
}

// fakePty records the calls made by a console terminal.
type fakePty struct {
	mu     sync.Mutex
	opened bool
	input  []string
	closed int

	write event.Emitter[string]
	exit  event.Emitter[int]
}

func (p *fakePty) OnDidWrite(fn func(string)) host.Disposable { return p.write.Event(fn) }
func (p *fakePty) OnDidClose(fn func(int)) host.Disposable    { return p.exit.Event(fn) }
func (p *fakePty) SetDimensions(host.Dimensions)              {}

func (p *fakePty) Open(*host.Dimensions) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opened = true
}

func (p *fakePty) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
}

func (p *fakePty) HandleInput(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.input = append(p.input, s)
}

func (p *fakePty) inputs() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.Join(p.input, "")
}

func TestTerminal(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	m := console.New(console.WithIO(strings.NewReader("ls\r"), &out))

	p := new(fakePty)
	term, err := m.Window().CreateTerminal(host.TerminalOptions{Name: "wasm", Pty: p})
	require.NoError(t, err)
	assert.Equal(t, "wasm", term.Name())

	term.Show()
	assert.True(t, p.opened, "should open pseudoterminal")

	p.write.Fire("hello\r\n")
	assert.Equal(t, "hello\r\n", out.String(), "should copy output")

	assert.Eventually(t, func() bool {
		return p.inputs() == "ls\r"
	}, time.Second, 10*time.Millisecond, "should forward input")

	p.exit.Fire(3)
	code, err := term.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, code)

	term.Dispose()
	term.Dispose()
	assert.Equal(t, 1, p.closed, "should close pseudoterminal once")

	_, err = m.Window().CreateTerminal(host.TerminalOptions{Name: "empty"})
	assert.Error(t, err, "should require a pseudoterminal")
}
