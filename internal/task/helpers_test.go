package task

import (
	"fmt"
	"log/slog"
	"os"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type testItem string

func (i testItem) Key() string { return string(i) }

func makeItems(n int) []testItem {
	items := make([]testItem, n)
	for i := range items {
		items[i] = testItem(fmt.Sprintf("item-%02d", i))
	}
	return items
}

// verdict stands in for a classification result.
type verdict struct {
	Important bool
	Note      string
}
