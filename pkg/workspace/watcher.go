package workspace

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/envlink/pkg/observability"
	"github.com/platinummonkey/envlink/pkg/resolver"
)

// ChangeEvent describes one batch of workspace changes after debouncing.
// Projects lists every project whose resolution may have changed: the
// projects holding edited variables plus, through the dependency graph,
// every project that links into them. Result carries the fresh
// resolution of those projects.
type ChangeEvent struct {
	Workspace *Workspace
	Projects  []string
	Result    *resolver.Result
}

// Handler receives debounced change events
type Handler func(event ChangeEvent)

// Watcher watches a workspace directory and re-resolves affected
// projects when the workspace file changes.
type Watcher struct {
	dir      string
	debounce time.Duration
	handler  Handler
	watcher  *fsnotify.Watcher
	log      *logrus.Entry

	prev map[resolver.VariableID]storedForm
}

type storedForm struct {
	value  *string
	link   string
	concat string
}

// NewWatcher creates a watcher over a workspace directory
func NewWatcher(dir string, debounce time.Duration, handler Handler) (*Watcher, error) {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	return &Watcher{
		dir:      dir,
		debounce: debounce,
		handler:  handler,
		watcher:  fsWatcher,
		log:      logrus.WithField("component", "lockstep"),
	}, nil
}

// Run watches until the context is canceled. The initial workspace state
// is resolved and delivered as a full event before any file changes.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	ws, err := LoadFromDir(w.dir)
	if err != nil {
		return fmt.Errorf("initial workspace load: %w", err)
	}
	w.prev = formIndex(ws)
	w.emit(ws, ws.ProjectNames())

	// The timer starts drained; file events arm it.
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.isWorkspaceFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.log.WithFields(logrus.Fields{
				"file": filepath.Base(event.Name),
				"op":   event.Op.String(),
			}).Debug("workspace file changed")
			timer.Reset(w.debounce)

		case <-timer.C:
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("watcher error")

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *Watcher) isWorkspaceFile(path string) bool {
	base := filepath.Base(path)
	for _, name := range candidateFileNames {
		if base == name {
			return true
		}
	}
	return false
}

// reload reloads the workspace, diffs it against the previous state, and
// emits an event for the affected projects.
func (w *Watcher) reload() {
	ws, err := LoadFromDir(w.dir)
	if err != nil {
		// Keep the previous baseline; the next save retriggers.
		w.log.WithError(err).Error("workspace reload failed")
		return
	}

	current := formIndex(ws)
	changed := diffForms(w.prev, current)
	w.prev = current

	if len(changed) == 0 {
		w.log.Debug("workspace unchanged after reload")
		return
	}

	affected := affectedProjects(ws, changed)
	w.log.WithFields(logrus.Fields{
		"changed_vars": len(changed),
		"projects":     affected,
	}).Info("workspace changed")
	w.emit(ws, affected)
}

// emit resolves the given projects and delivers one event
func (w *Watcher) emit(ws *Workspace, projects []string) {
	if len(projects) == 0 {
		return
	}

	snap := ws.ToSnapshot()
	merged := &resolver.Result{
		Resolved: make(map[resolver.VariableID]string),
		Errors:   make(map[resolver.VariableID]*resolver.ResolutionError),
	}
	for _, project := range projects {
		result := resolver.Resolve(snap, resolver.ScopeProject(project))
		for id, value := range result.Resolved {
			merged.Resolved[id] = value
		}
		for id, resErr := range result.Errors {
			merged.Errors[id] = resErr
		}
	}

	// A panicking handler must not kill the watch loop.
	defer func() {
		if err := observability.MustRecover(recover()); err != nil {
			w.log.WithError(err).Error("change handler panicked")
		}
	}()
	w.handler(ChangeEvent{
		Workspace: ws,
		Projects:  projects,
		Result:    merged,
	})
}

// formIndex flattens a workspace into stored forms keyed by variable
func formIndex(ws *Workspace) map[resolver.VariableID]storedForm {
	index := make(map[resolver.VariableID]storedForm)
	for _, p := range ws.Projects {
		for _, v := range p.Variables {
			index[resolver.VariableID{Project: p.Name, Name: v.Name}] = storedForm{
				value:  v.Value,
				link:   v.Link,
				concat: v.Concat,
			}
		}
	}
	return index
}

// diffForms returns the variables added, removed, or modified between
// two workspace states.
func diffForms(prev, current map[resolver.VariableID]storedForm) []resolver.VariableID {
	var changed []resolver.VariableID
	for id, form := range current {
		old, existed := prev[id]
		if !existed || !formsEqual(old, form) {
			changed = append(changed, id)
		}
	}
	for id := range prev {
		if _, exists := current[id]; !exists {
			changed = append(changed, id)
		}
	}
	return changed
}

func formsEqual(a, b storedForm) bool {
	if (a.value == nil) != (b.value == nil) {
		return false
	}
	if a.value != nil && *a.value != *b.value {
		return false
	}
	return a.link == b.link && a.concat == b.concat
}

// affectedProjects maps changed variables to the projects that need
// re-resolution: their own projects plus every project with a variable
// that transitively depends on one of them.
func affectedProjects(ws *Workspace, changed []resolver.VariableID) []string {
	snap := ws.ToSnapshot()
	graph := resolver.BuildGraph(snap)

	projects := make(map[string]bool)
	for _, id := range changed {
		projects[id.Project] = true
		for _, dependent := range graph.TransitiveDependents(id) {
			projects[dependent.Project] = true
		}
	}

	// Removed variables no longer appear in the graph; their former
	// dependents still show up as dangling references on resolution, so
	// re-resolving the declaring project is enough here.

	names := make([]string, 0, len(projects))
	for name := range projects {
		// Dependents may reference projects the file no longer declares.
		if containsProject(ws, name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func containsProject(ws *Workspace, name string) bool {
	for _, p := range ws.Projects {
		if p.Name == name {
			return true
		}
	}
	return false
}
