package main

import (
	"bytes"
	"os"
	"testing"

	"github.com/pagekit/undo/history"
	"github.com/pagekit/undo/pagepool"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func readyEditor(t *testing.T, lines ...string) (*Editor, *history.History[*Document]) {
	logger := slog.New(slog.NewTextHandler(os.Stdout))

	source, err := pagepool.NewHeapPageSource(1024)
	require.NoError(t, err)

	pool, err := pagepool.New(logger, source, pagepool.CreateOptions{PageSizeMinBits: 6})
	require.NoError(t, err)

	h := history.New(logger, pool, &Document{}, history.CreateOptions{Name: "test"})
	t.Cleanup(func() {
		h.Destroy()
		require.NoError(t, pool.Destroy())
	})

	editor, err := NewEditor(h)
	require.NoError(t, err)

	for _, line := range lines {
		require.NoError(t, editor.Add(line))
	}

	return editor, h
}

func TestEditorAddUndoRedo(t *testing.T) {
	editor, h := readyEditor(t, "alpha", "beta")
	require.Equal(t, []string{"alpha", "beta"}, h.Target().Lines)

	require.NoError(t, h.Undo())
	require.Equal(t, []string{"alpha"}, h.Target().Lines)

	require.NoError(t, editor.Add("gamma"))
	require.Equal(t, []string{"alpha", "gamma"}, h.Target().Lines)
	require.False(t, h.CanRedo())

	require.NoError(t, h.Undo())
	require.NoError(t, h.Undo())
	require.Empty(t, h.Target().Lines)

	require.NoError(t, h.Redo())
	require.NoError(t, h.Redo())
	require.Equal(t, []string{"alpha", "gamma"}, h.Target().Lines)
}

func TestEditorPop(t *testing.T) {
	editor, h := readyEditor(t, "alpha", "beta")

	popped, err := editor.Pop()
	require.NoError(t, err)
	require.True(t, popped)
	require.Equal(t, []string{"alpha"}, h.Target().Lines)

	require.NoError(t, h.Undo())
	require.Equal(t, []string{"alpha", "beta"}, h.Target().Lines)
}

func TestEditorPopEmptyIsDeclined(t *testing.T) {
	editor, h := readyEditor(t, "alpha")
	require.NoError(t, h.Undo())
	require.True(t, h.CanRedo())

	popped, err := editor.Pop()
	require.NoError(t, err)
	require.False(t, popped)
	require.True(t, h.CanRedo())
	require.Equal(t, 0, h.UndoCount())
}

func TestEditorUpperIsOneStep(t *testing.T) {
	editor, h := readyEditor(t, "alpha", "BETA", "gamma")

	changed, err := editor.Upper()
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, []string{"ALPHA", "BETA", "GAMMA"}, h.Target().Lines)
	require.Equal(t, 4, h.UndoCount())

	require.NoError(t, h.Undo())
	require.Equal(t, []string{"alpha", "BETA", "gamma"}, h.Target().Lines)

	require.NoError(t, h.Redo())
	require.Equal(t, []string{"ALPHA", "BETA", "GAMMA"}, h.Target().Lines)

	changed, err = editor.Upper()
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, 4, h.UndoCount())
}

func TestEditorSwapUndoesAsOneStep(t *testing.T) {
	editor, h := readyEditor(t, "one", "two", "three")

	require.NoError(t, editor.Swap(0, 2))
	require.Equal(t, []string{"three", "two", "one"}, h.Target().Lines)

	require.NoError(t, h.Undo())
	require.Equal(t, []string{"one", "two", "three"}, h.Target().Lines)

	require.NoError(t, h.Undo())
	require.Equal(t, []string{"one", "two"}, h.Target().Lines)

	require.NoError(t, h.Redo())
	require.NoError(t, h.Redo())
	require.Equal(t, []string{"three", "two", "one"}, h.Target().Lines)
}

func TestEditorSwapOutOfRange(t *testing.T) {
	editor, h := readyEditor(t, "one")

	require.Error(t, editor.Swap(0, 1))
	require.Equal(t, 1, h.UndoCount())
}

func TestExecute(t *testing.T) {
	editor, h := readyEditor(t)
	var out bytes.Buffer

	run := func(line string) bool {
		quit, err := execute(&out, editor, nil, h, line)
		require.NoError(t, err)
		return quit
	}

	run("add first line")
	run("add second")
	run("swap 1 2")
	run("save")
	require.False(t, h.Dirty())

	out.Reset()
	run("show")
	require.Equal(t, "  1  second\n  2  first line\n", out.String())

	run("undo")
	require.True(t, h.Dirty())
	run("redo")
	require.False(t, h.Dirty())

	out.Reset()
	run("redo")
	require.Equal(t, "nothing to redo\n", out.String())

	run("clear")
	require.False(t, h.CanUndo())

	require.True(t, run("quit"))

	_, err := execute(&out, editor, nil, h, "frobnicate")
	require.Error(t, err)

	_, err = execute(&out, editor, nil, h, "swap 1")
	require.Error(t, err)
}
