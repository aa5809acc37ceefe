package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
)

func newImpactCommand() *Command {
	cmd := &Command{
		Name:        "impact",
		Description: "Show what changes if a variable's value changes",
		Flags:       flag.NewFlagSet("impact", flag.ExitOnError),
		Run:         runImpact,
	}

	cmd.Flags.String("server", defaultServerURL(), "Server URL")
	cmd.Flags.String("project", "", "Project name")
	cmd.Flags.String("name", "", "Variable name")
	cmd.Flags.Bool("json", false, "Emit the full report as JSON")

	return cmd
}

func runImpact(args []string) error {
	flags := flag.NewFlagSet("impact", flag.ExitOnError)
	server := flags.String("server", defaultServerURL(), "Server URL")
	project := flags.String("project", "", "Project name")
	name := flags.String("name", "", "Variable name")
	asJSON := flags.Bool("json", false, "Emit JSON")

	if err := flags.Parse(args); err != nil {
		return err
	}
	if *project == "" || *name == "" {
		return fmt.Errorf("-project and -name are required")
	}

	report, err := NewClient(*server).Impact(*project, *name)
	if err != nil {
		return err
	}

	if *asJSON {
		return json.NewEncoder(os.Stdout).Encode(report)
	}

	fmt.Printf("Impact of changing %s:\n\n", report.Target)
	if len(report.AffectedProjects) == 0 {
		fmt.Println("No dependent variables.")
	} else {
		fmt.Printf("Affected variables (%d):\n", report.AffectedVariableCount())
		for _, p := range report.AffectedProjects {
			fmt.Printf("  %s: %s\n", p.Project, strings.Join(p.Variables, ", "))
		}
	}

	if len(report.AffectedExports) > 0 {
		fmt.Printf("\nExports that would go stale (%d):\n", len(report.AffectedExports))
		for _, e := range report.AffectedExports {
			fmt.Printf("  %s  %s (%s, captured %s)\n",
				e.ExportID, e.Path, e.AffectedVariable, e.ExportedAt.Format("2006-01-02 15:04"))
		}
	}

	if len(report.Recommendations) > 0 {
		fmt.Println()
		for _, rec := range report.Recommendations {
			fmt.Printf("note: %s\n", rec)
		}
	}
	return nil
}
