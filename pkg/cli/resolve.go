package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/platinummonkey/envlink/pkg/resolver"
	"github.com/platinummonkey/envlink/pkg/workspace"
)

func newResolveCommand() *Command {
	cmd := &Command{
		Name:        "resolve",
		Description: "Resolve variables against a server or a workspace file",
		Flags:       flag.NewFlagSet("resolve", flag.ExitOnError),
		Run:         runResolve,
	}

	cmd.Flags.String("server", defaultServerURL(), "Server URL")
	cmd.Flags.String("f", "", "Workspace file (resolve locally instead of via server)")
	cmd.Flags.String("project", "", "Limit resolution to one project")
	cmd.Flags.String("variable", "", "Limit resolution to one variable (requires -project)")
	cmd.Flags.Bool("json", false, "Emit JSON instead of KEY=value lines")

	return cmd
}

func runResolve(args []string) error {
	flags := flag.NewFlagSet("resolve", flag.ExitOnError)
	server := flags.String("server", defaultServerURL(), "Server URL")
	file := flags.String("f", "", "Workspace file")
	project := flags.String("project", "", "Limit resolution to one project")
	variable := flags.String("variable", "", "Limit resolution to one variable")
	asJSON := flags.Bool("json", false, "Emit JSON")

	if err := flags.Parse(args); err != nil {
		return err
	}
	if *variable != "" && *project == "" {
		return fmt.Errorf("-variable requires -project")
	}

	var result *ResolveResult
	var err error
	if *file != "" {
		result, err = resolveWorkspaceFile(*file, *project, *variable)
	} else {
		result, err = NewClient(*server).Resolve(*project, *variable)
	}
	if err != nil {
		return err
	}

	if *asJSON {
		return json.NewEncoder(os.Stdout).Encode(result)
	}

	keys := make([]string, 0, len(result.Resolved))
	for key := range result.Resolved {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("%s=%s\n", key, result.Resolved[key])
	}

	if len(result.Errors) > 0 {
		errKeys := make([]string, 0, len(result.Errors))
		for key := range result.Errors {
			errKeys = append(errKeys, key)
		}
		sort.Strings(errKeys)
		fmt.Printf("\n%d variable(s) failed to resolve:\n", len(errKeys))
		for _, key := range errKeys {
			fmt.Printf("  %s: %s\n", key, result.Errors[key].Error())
		}
	}
	return nil
}

// resolveWorkspaceFile resolves a scope locally from a workspace file
func resolveWorkspaceFile(path, project, variable string) (*ResolveResult, error) {
	ws, err := workspace.Load(path)
	if err != nil {
		return nil, err
	}

	var scope resolver.Scope
	switch {
	case variable != "":
		scope = resolver.ScopeVariable(resolver.VariableID{Project: project, Name: variable})
	case project != "":
		scope = resolver.ScopeProject(project)
	default:
		scope = resolver.ScopeAll()
	}

	result := resolver.Resolve(ws.ToSnapshot(), scope)
	out := &ResolveResult{
		Scope:    scope.String(),
		Resolved: make(map[string]string, len(result.Resolved)),
		Errors:   make(map[string]*resolver.ResolutionError, len(result.Errors)),
	}
	for id, value := range result.Resolved {
		out.Resolved[id.String()] = value
	}
	for id, resErr := range result.Errors {
		out.Errors[id.String()] = resErr
	}
	return out, nil
}
