// Package tmpfiles tracks in-progress download and output files so an
// interrupted run does not leave partial artifacts behind. The registry
// is process-wide; entries are released on success and removed on
// interrupt or explicit cleanup.
package tmpfiles

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

var (
	mu      sync.Mutex
	paths   = make(map[int]string)
	nextKey int
	hooked  bool
)

// Register records a path for cleanup and returns its handle.
func Register(path string) int {
	mu.Lock()
	defer mu.Unlock()
	key := nextKey
	nextKey++
	paths[key] = path
	return key
}

// Release forgets a path without removing it; called once the file is
// complete and should survive.
func Release(key int) {
	mu.Lock()
	defer mu.Unlock()
	delete(paths, key)
}

// Remove deletes the file and forgets it; called when the work that
// produced it failed.
func Remove(key int) {
	mu.Lock()
	path, ok := paths[key]
	delete(paths, key)
	mu.Unlock()
	if ok {
		_ = os.Remove(path)
	}
}

// CleanupAll removes every registered file. Used on abnormal exit.
func CleanupAll() {
	mu.Lock()
	pending := paths
	paths = make(map[int]string)
	mu.Unlock()
	for _, path := range pending {
		_ = os.Remove(path)
	}
}

// HandleInterrupt installs a SIGINT/SIGTERM handler that removes pending
// files before exiting. Installing twice is a no-op.
func HandleInterrupt() {
	mu.Lock()
	if hooked {
		mu.Unlock()
		return
	}
	hooked = true
	mu.Unlock()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ch
		CleanupAll()
		os.Exit(130)
	}()
}
