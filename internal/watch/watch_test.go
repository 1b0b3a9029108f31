package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMatcher(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "prog.c")
	project := filepath.Join(t.TempDir(), "catobuild.yaml")

	m, err := newMatcher(Options{Files: []string{input, project}, Extensions: DefaultExtensions})
	require.NoError(t, err)

	require.True(t, m.matches(input))
	require.True(t, m.matches(project))
	require.True(t, m.matches(filepath.Join(dir, "util.h")))
	require.True(t, m.matches(filepath.Join(dir, "other.C")))

	require.False(t, m.matches(filepath.Join(dir, "translated.ll")))
	require.False(t, m.matches(filepath.Join(dir, "translated.o")))
	require.False(t, m.matches(filepath.Join(dir, "translated")))
	require.False(t, m.matches(filepath.Join(dir, ".prog.c.swp")))
	require.False(t, m.matches(filepath.Join(dir, "prog.c~")))
	require.False(t, m.matches(filepath.Join(dir, "sub", "x.h")))
	require.Len(t, m.dirs(), 2)
}

func TestDebouncerCoalesces(t *testing.T) {
	req, trigger, stop := setupRebuildDebouncer(20 * time.Millisecond)
	defer stop()

	for range 5 {
		trigger()
	}
	select {
	case <-req:
	case <-time.After(2 * time.Second):
		t.Fatal("debounced trigger never fired")
	}
	select {
	case <-req:
		t.Fatal("burst produced more than one request")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRunRebuildsOnChange(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "prog.c")
	require.NoError(t, os.WriteFile(input, []byte("int main(void){return 0;}\n"), 0o600))

	var builds atomic.Int32
	rebuilt := make(chan struct{}, 4)
	build := func(context.Context) error {
		n := builds.Add(1)
		if n > 1 {
			rebuilt <- struct{}{}
		}
		return errors.New("fatal stages keep watching")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Options{Files: []string{input}, Debounce: 20 * time.Millisecond}, build)
	}()

	// wait for the initial build before editing
	require.Eventually(t, func() bool { return builds.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	// the watch is registered before the initial build, give the loop a moment
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(input, []byte("int main(void){return 1;}\n"), 0o600))

	select {
	case <-rebuilt:
	case <-time.After(5 * time.Second):
		t.Fatal("no rebuild after change")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestRunRequiresFiles(t *testing.T) {
	err := Run(context.Background(), Options{}, func(context.Context) error { return nil })
	require.Error(t, err)
}
