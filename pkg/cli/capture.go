package cli

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

func newCaptureCommand() *Command {
	cmd := &Command{
		Name:        "capture",
		Description: "Capture an export of a project's resolved values",
		Flags:       flag.NewFlagSet("capture", flag.ExitOnError),
		Run:         runCapture,
	}

	cmd.Flags.String("server", defaultServerURL(), "Server URL")
	cmd.Flags.String("project", "", "Project name")
	cmd.Flags.String("path", "", "Destination path the values were (or will be) written to")
	cmd.Flags.String("git-dir", "", "Git checkout to read metadata from (defaults to the path's directory)")

	return cmd
}

func runCapture(args []string) error {
	flags := flag.NewFlagSet("capture", flag.ExitOnError)
	server := flags.String("server", defaultServerURL(), "Server URL")
	project := flags.String("project", "", "Project name")
	path := flags.String("path", "", "Destination path")
	gitDir := flags.String("git-dir", "", "Git checkout to read metadata from")

	if err := flags.Parse(args); err != nil {
		return err
	}
	if *project == "" || *path == "" {
		return fmt.Errorf("-project and -path are required")
	}

	dir := *gitDir
	if dir == "" {
		dir = filepath.Dir(*path)
	}

	req := ExportRequest{ExportPath: *path}
	if info, ok := gitInfo(dir); ok {
		req.IsGitRepo = true
		req.GitRepoPath = dir
		req.GitBranch = info.branch
		req.GitCommitHash = info.commit
		req.GitRemoteURL = info.remote
	}

	export, err := NewClient(*server).CreateExport(*project, req)
	if err != nil {
		return err
	}

	fmt.Printf("Captured export %s for %s (%d variables, hash %s)\n",
		export.ID, export.Project, len(export.ResolvedValues), shortHash(export.ExportHash))
	return nil
}

type repoInfo struct {
	branch string
	commit string
	remote string
}

// gitInfo reads git metadata from a checkout. The server never runs git;
// the capture caller supplies what it can discover.
func gitInfo(dir string) (repoInfo, bool) {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		return repoInfo{}, false
	}

	var info repoInfo
	if out, err := gitOutput(dir, "rev-parse", "--abbrev-ref", "HEAD"); err == nil {
		info.branch = out
	}
	if out, err := gitOutput(dir, "rev-parse", "HEAD"); err == nil {
		info.commit = out
	}
	if out, err := gitOutput(dir, "config", "--get", "remote.origin.url"); err == nil {
		info.remote = normalizeRemote(out)
	}
	return info, true
}

func gitOutput(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// normalizeRemote converts git@host:user/repo.git to https form
func normalizeRemote(remote string) string {
	if strings.HasPrefix(remote, "git@") {
		remote = strings.TrimPrefix(remote, "git@")
		remote = strings.Replace(remote, ":", "/", 1)
		remote = "https://" + remote
	}
	return strings.TrimSuffix(remote, ".git")
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
