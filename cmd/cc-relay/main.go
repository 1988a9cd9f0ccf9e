// cc-relay follows one Claude Code session's structured event stream on
// stdin and writes display-ready records to stdout. Tool invocations are
// paired with their outcomes; interruptions and timeouts are surfaced as
// their own records.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nixlim/cc-relay/internal/config"
	"github.com/nixlim/cc-relay/internal/feed"
	"github.com/nixlim/cc-relay/internal/pairing"
	"github.com/nixlim/cc-relay/internal/reduce"
)

func main() {
	configFlag := flag.String("config", "", "Path to config file (default ~/.config/cc-relay/config.toml)")
	debugFlag := flag.String("debug", "", "Write ingestion debug log (JSONL) to the specified file path")
	flag.Parse()

	var loadResult *config.LoadResult
	var err error
	if *configFlag != "" {
		loadResult, err = config.LoadFrom(*configFlag)
	} else {
		loadResult, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "cc-relay: config error: %v\n", err)
		os.Exit(1)
	}
	cfg := loadResult.Config

	for _, w := range loadResult.Warnings {
		fmt.Fprintf(os.Stderr, "cc-relay: config warning: %s\n", w)
	}

	var decoderOpts []feed.DecoderOption
	if *debugFlag != "" {
		debugFile, err := os.OpenFile(*debugFlag, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cc-relay: failed to open debug log %q: %v\n", *debugFlag, err)
			os.Exit(1)
		}
		defer debugFile.Close()
		decoderOpts = append(decoderOpts, feed.WithLogger(feed.NewFileLogger(debugFile)))
	}

	writer := newRecordWriter(os.Stdout)
	reducer := reduce.NewReducer(cfg.Display.MaxResultLines)

	engine := pairing.NewEngine(
		time.Duration(cfg.Engine.TickMS)*time.Millisecond,
		time.Duration(cfg.Engine.OrphanTimeoutSeconds)*time.Second,
		func(groups []pairing.Group) {
			writer.Write(reducer.Reduce(groups))
		},
		pairing.WithImmediateFlush(cfg.Engine.ImmediateFlush),
	)
	engine.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		engine.Stop()
		writer.Flush()
		os.Exit(0)
	}()

	decoder := feed.NewDecoder(os.Stdin, decoderOpts...)
	if err := decoder.Run(engine.Enqueue); err != nil {
		fmt.Fprintf(os.Stderr, "cc-relay: input error: %v\n", err)
	}

	engine.Stop()
	writer.Flush()

	if n := decoder.Skipped(); n > 0 {
		fmt.Fprintf(os.Stderr, "cc-relay: skipped %d undecodable input lines\n", n)
	}
}

// recordWriter prints records as kind-tagged opaque text blocks separated
// by blank lines. It serializes writes so the engine's drain goroutine and
// the shutdown path never interleave output.
type recordWriter struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func newRecordWriter(f *os.File) *recordWriter {
	return &recordWriter{w: bufio.NewWriter(f)}
}

func (rw *recordWriter) Write(records []reduce.DisplayRecord) {
	if len(records) == 0 {
		return
	}

	rw.mu.Lock()
	defer rw.mu.Unlock()
	for _, rec := range records {
		fmt.Fprintf(rw.w, "[%s] %s\n\n", rec.Kind, rec.Content)
	}
	rw.w.Flush()
}

func (rw *recordWriter) Flush() {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	rw.w.Flush()
}
