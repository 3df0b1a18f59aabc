package util

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"syscall"
)

// SetupInterruptHandler returns a context cancelled on SIGINT/SIGTERM. On
// the first signal, the temp files still being written are removed; a second
// signal exits immediately.
func SetupInterruptHandler(parent context.Context, log interface{ Infof(string, ...any) }) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sig := make(chan os.Signal, 2)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sig)

		select {
		case <-ctx.Done():
			return
		case <-sig:
		}

		log.Infof("Interrupt received. Cleaning up...")
		cancel()

		for _, p := range CleanupTempFiles() {
			log.Infof("Removed %s", p)
		}

		<-sig
		os.Exit(1)
	}()

	return ctx, cancel
}

// CleanupTempFiles removes the temp files of writes still in flight and
// returns the removed paths. Files this process did not create are never
// touched.
func CleanupTempFiles() []string {
	pending.Lock()
	defer pending.Unlock()

	var removed []string
	for path := range pending.paths {
		if os.Remove(path) == nil {
			removed = append(removed, path)
		}
		delete(pending.paths, path)
	}
	sort.Strings(removed)

	return removed
}
