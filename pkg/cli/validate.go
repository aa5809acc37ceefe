package cli

import (
	"flag"
	"fmt"
	"sort"

	"github.com/platinummonkey/envlink/pkg/resolver"
	"github.com/platinummonkey/envlink/pkg/workspace"
)

func newValidateCommand() *Command {
	cmd := &Command{
		Name:        "validate",
		Description: "Validate a workspace file",
		Flags:       flag.NewFlagSet("validate", flag.ExitOnError),
		Run:         runValidate,
	}

	cmd.Flags.String("f", workspace.DefaultFileName, "Workspace file")

	return cmd
}

func runValidate(args []string) error {
	flags := flag.NewFlagSet("validate", flag.ExitOnError)
	file := flags.String("f", workspace.DefaultFileName, "Workspace file")

	if err := flags.Parse(args); err != nil {
		return err
	}

	// Load already rejects duplicates and variables without exactly one
	// stored form.
	ws, err := workspace.Load(*file)
	if err != nil {
		return err
	}

	// A full resolution pass surfaces every remaining problem: malformed
	// references, dangling links, cycles.
	result := resolver.Resolve(ws.ToSnapshot(), resolver.ScopeAll())
	if len(result.Errors) == 0 {
		fmt.Printf("%s: %d project(s), %d variable(s), all valid\n",
			*file, len(ws.Projects), len(ws.EnvVars()))
		return nil
	}

	ids := make([]resolver.VariableID, 0, len(result.Errors))
	for id := range result.Errors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	for _, id := range ids {
		fmt.Printf("%s: %s\n", id, result.Errors[id].Error())
	}
	return fmt.Errorf("%d variable(s) failed validation", len(ids))
}
