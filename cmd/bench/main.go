package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/aretw0/mindful"
	"github.com/aretw0/mindful/pkg/core"
)

func main() {
	count := flag.Int("count", 1000, "Number of slots to write")
	adapter := flag.String("adapter", "fs", "Storage adapter: fs, sqlite or memory")
	keep := flag.Bool("keep", false, "Keep the benchmark directory after running")
	flag.Parse()

	benchDir, err := os.MkdirTemp("", "mindful_bench_")
	if err != nil {
		panic(err)
	}
	defer func() {
		if !*keep {
			os.RemoveAll(benchDir)
		} else {
			fmt.Printf("Keeping bench dir: %s\n", benchDir)
		}
	}()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ctx := context.TODO()

	// Run 1: Cold (empty storage, index built from scratch)
	startOpen := time.Now()
	storage, err := mindful.Init(benchDir, mindful.WithAdapter(*adapter), mindful.WithLogger(logger))
	if err != nil {
		panic(err)
	}
	coldOpen := time.Since(startOpen)

	fmt.Printf("Writing %d slots with the %s adapter in %s...\n", *count, *adapter, benchDir)
	startWrite := time.Now()
	for i := 0; i < *count; i++ {
		value := fmt.Sprintf(`[{"id":"%d","title":"Benchmark task %d","done":false,"createdAt":%q}]`, i, i, time.Now().UTC().Format(time.RFC3339))
		if err := storage.Set(ctx, core.SlotKey("tasks", fmt.Sprintf("user%d", i)), []byte(value)); err != nil {
			panic(err)
		}
	}
	write := time.Since(startWrite)

	startRead := time.Now()
	for i := 0; i < *count; i++ {
		if _, _, err := storage.Get(ctx, core.SlotKey("tasks", fmt.Sprintf("user%d", i))); err != nil {
			panic(err)
		}
	}
	read := time.Since(startRead)

	startList := time.Now()
	keys, err := listKeys(ctx, storage)
	if err != nil {
		panic(err)
	}
	list := time.Since(startList)
	closeStorage(storage)

	// Run 2: Warm (re-open, simulating a new CLI command run)
	var warmOpen time.Duration
	if *adapter != "memory" {
		startReopen := time.Now()
		storage2, err := mindful.Init(benchDir, mindful.WithAdapter(*adapter), mindful.WithLogger(logger))
		if err != nil {
			panic(err)
		}
		warmOpen = time.Since(startReopen)
		closeStorage(storage2)
	}

	fmt.Printf("--------------------------------------------------\n")
	fmt.Printf("Benchmark Result (%d slots, %s):\n", *count, *adapter)
	fmt.Printf("  Open (cold): %v\n", coldOpen)
	fmt.Printf("  Write:       %v (%v/op)\n", write, write/time.Duration(*count))
	fmt.Printf("  Read:        %v (%v/op)\n", read, read/time.Duration(*count))
	fmt.Printf("  Keys:        %v (Items: %d)\n", list, len(keys))
	if warmOpen > 0 {
		fmt.Printf("  Open (warm): %v\n", warmOpen)
	}
	fmt.Printf("--------------------------------------------------\n")
}

func listKeys(ctx context.Context, storage core.Storage) ([]string, error) {
	e, ok := storage.(core.Enumerable)
	if !ok {
		return nil, core.ErrNotEnumerable
	}
	return e.Keys(ctx, "tasks_*")
}

func closeStorage(storage core.Storage) {
	if c, ok := storage.(io.Closer); ok {
		_ = c.Close()
	}
}
