package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/platinummonkey/envlink/pkg/workspace"
)

// lockstep watches a workspace file and re-resolves affected projects
// whenever it changes, printing fresh values as they land.
func main() {
	dir := flag.String("dir", ".", "Directory containing the workspace file")
	delaySeconds := flag.Int("delay", 2, "Debounce delay in seconds before re-resolving changes")
	flag.Parse()

	watcher, err := workspace.NewWatcher(*dir, time.Duration(*delaySeconds)*time.Second, printEvent)
	if err != nil {
		log.Fatalf("Failed to create watcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		cancel()
	}()

	log.Printf("Watching for workspace changes in %s", *dir)
	if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("Watcher failed: %v", err)
	}
}

func printEvent(event workspace.ChangeEvent) {
	if len(event.Projects) == 0 {
		return
	}
	log.Printf("Resolved %d project(s): %v", len(event.Projects), event.Projects)

	affected := make(map[string]bool, len(event.Projects))
	for _, p := range event.Projects {
		affected[p] = true
	}

	lines := make([]string, 0, len(event.Result.Resolved))
	for id, value := range event.Result.Resolved {
		if affected[id.Project] {
			lines = append(lines, fmt.Sprintf("%s=%s", id, value))
		}
	}
	sort.Strings(lines)
	for _, line := range lines {
		fmt.Println(line)
	}

	for id, resErr := range event.Result.Errors {
		if affected[id.Project] {
			log.Printf("Error resolving %s: %s", id, resErr.Message)
		}
	}
}
