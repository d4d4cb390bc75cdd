package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/cockroachdb/errors"
	"github.com/pagekit/undo/history"
	"github.com/pagekit/undo/metrics"
	"github.com/pagekit/undo/pagepool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/exp/slog"
)

var (
	pageSize    = flag.Int("page-size", pagepool.DefaultPageSize, "Leaf page size in bytes, must be a power of two")
	minBits     = flag.Uint("min-bits", 8, "Base two logarithm of the smallest page size")
	useMmap     = flag.Bool("mmap", false, "Draw leaf pages from anonymous memory mappings instead of the Go heap")
	pageFile    = flag.String("page-file", "", "Back leaf pages with a memory-mapped file at this path")
	metricsAddr = flag.String("metrics-addr", "", "Serve prometheus metrics on this address, e.g. 127.0.0.1:9090")
	debug       = flag.Bool("debug", false, "Log debug output")
)

const helpText = `commands:
  add <text>     append a line
  pop            remove the last line (no-op on an empty document)
  upper          upper-case every line as a single step
  swap <a> <b>   exchange two lines, 1-based
  undo, redo     step through the history
  save           mark the current state as saved
  clear          forget the whole history
  show           print the document
  stats          print pool and history statistics
  quit           leave the shell`

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.HandlerOptions{Level: level}.NewTextHandler(os.Stderr))

	err := run(logger)
	if err != nil {
		logger.Error("undoshell failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func openPageSource() (pagepool.PageSource, func() error, error) {
	noop := func() error { return nil }

	switch {
	case *pageFile != "":
		file, err := os.Create(*pageFile)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "failed to create page file %s", *pageFile)
		}

		source, err := pagepool.NewFileMmapPageSource(file, *pageSize)
		if err != nil {
			return nil, nil, errors.CombineErrors(err, file.Close())
		}
		return source, file.Close, nil
	case *useMmap:
		source, err := pagepool.NewMmapPageSource(*pageSize)
		return source, noop, err
	default:
		source, err := pagepool.NewHeapPageSource(*pageSize)
		return source, noop, err
	}
}

func run(logger *slog.Logger) (err error) {
	source, closeSource, err := openPageSource()
	if err != nil {
		return err
	}
	defer func() {
		err = errors.CombineErrors(err, closeSource())
	}()

	pool, err := pagepool.New(logger, source, pagepool.CreateOptions{PageSizeMinBits: uint8(*minBits)})
	if err != nil {
		return err
	}
	defer func() {
		err = errors.CombineErrors(err, pool.Destroy())
	}()

	document := &Document{}
	h := history.New(logger, pool, document, history.CreateOptions{Name: "document"})
	defer h.Destroy()

	editor, err := NewEditor(h)
	if err != nil {
		return err
	}

	// Guards the pool and history against metric scrapes
	var lock sync.Mutex
	if *metricsAddr != "" {
		serveMetrics(logger, pool, h, &lock)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "undo> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("add"),
			readline.PcItem("pop"),
			readline.PcItem("upper"),
			readline.PcItem("swap"),
			readline.PcItem("undo"),
			readline.PcItem("redo"),
			readline.PcItem("save"),
			readline.PcItem("clear"),
			readline.PcItem("show"),
			readline.PcItem("stats"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return errors.Wrap(err, "failed to start line editor")
	}
	defer rl.Close()

	h.OnDirtyChanged(func(dirty bool) {
		if dirty {
			rl.SetPrompt("undo*> ")
		} else {
			rl.SetPrompt("undo> ")
		}
	})

	out := rl.Stdout()
	fmt.Fprintln(out, helpText)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to read command")
		}

		lock.Lock()
		quit, err := execute(out, editor, pool, h, strings.TrimSpace(line))
		lock.Unlock()

		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

func serveMetrics(logger *slog.Logger, pool *pagepool.Pool, h *history.History[*Document], lock sync.Locker) {
	registry := prometheus.NewRegistry()
	options := metrics.CollectorOptions{Lock: lock}

	historyCollector := metrics.NewHistoryCollector(options)
	historyCollector.Add(h)
	registry.MustRegister(metrics.NewPoolCollector("main", pool, options), historyCollector)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	go func() {
		err := http.ListenAndServe(*metricsAddr, mux)
		if err != nil {
			logger.Error("metrics server failed", slog.String("error", err.Error()))
		}
	}()
}

func execute(out io.Writer, editor *Editor, pool *pagepool.Pool, h *history.History[*Document], line string) (bool, error) {
	command, argument, _ := strings.Cut(line, " ")

	switch command {
	case "":
		return false, nil
	case "add":
		return false, editor.Add(argument)
	case "pop":
		popped, err := editor.Pop()
		if err == nil && !popped {
			fmt.Fprintln(out, "nothing to remove")
		}
		return false, err
	case "upper":
		changed, err := editor.Upper()
		if err == nil && !changed {
			fmt.Fprintln(out, "nothing to change")
		}
		return false, err
	case "swap":
		first, second, err := parseLinePair(argument)
		if err != nil {
			return false, err
		}
		return false, editor.Swap(first, second)
	case "undo":
		if !h.CanUndo() {
			fmt.Fprintln(out, "nothing to undo")
			return false, nil
		}
		return false, h.Undo()
	case "redo":
		if !h.CanRedo() {
			fmt.Fprintln(out, "nothing to redo")
			return false, nil
		}
		return false, h.Redo()
	case "save":
		h.SetCleanAtCurrentPosition()
		return false, nil
	case "clear":
		h.Clear()
		return false, nil
	case "show":
		for index, text := range h.Target().Lines {
			fmt.Fprintf(out, "%3d  %s\n", index+1, text)
		}
		return false, nil
	case "stats":
		fmt.Fprintln(out, pool.BuildStatsString(true))
		fmt.Fprintln(out, h.BuildStatsString())
		return false, nil
	case "quit", "exit":
		return true, nil
	case "help":
		fmt.Fprintln(out, helpText)
		return false, nil
	default:
		return false, errors.Errorf("unknown command %q, type help for a list", command)
	}
}

func parseLinePair(argument string) (int, int, error) {
	fields := strings.Fields(argument)
	if len(fields) != 2 {
		return 0, 0, errors.New("swap needs two line numbers")
	}

	first, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, errors.Wrapf(err, "invalid line number %q", fields[0])
	}

	second, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, errors.Wrapf(err, "invalid line number %q", fields[1])
	}

	return first - 1, second - 1, nil
}
