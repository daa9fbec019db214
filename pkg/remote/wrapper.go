package remote

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Wrapper file names written into the scratch directory.
const (
	wrapperScriptFile   = ".command.sh"
	wrapperLauncherFile = ".command.run"
	wrapperStdinFile    = ".command.in"
)

// WrapperBuilder produces the launcher script for a script task. The returned
// path is appended to the task's shell argv as its final argument.
// Container-aware builders substitute a containerized command line here; the
// default builder runs the script directly on the worker.
type WrapperBuilder interface {
	Build(scratch string, t *ScriptTask) (string, error)
}

// BashWrapper is the default wrapper builder. The launcher it emits runs the
// task script under the task shell, redirects stdout and stderr to the
// well-known command files, and records the exit status in the exit file.
type BashWrapper struct{}

// Build writes the task script and its launcher into scratch and returns the
// launcher path.
func (BashWrapper) Build(scratch string, t *ScriptTask) (string, error) {
	if err := os.WriteFile(filepath.Join(scratch, wrapperScriptFile), []byte(t.Script), 0o644); err != nil {
		return "", fmt.Errorf("failed to write task script: %w", err)
	}

	redirect := ""
	if len(t.Stdin) > 0 {
		if err := os.WriteFile(filepath.Join(scratch, wrapperStdinFile), t.Stdin, 0o644); err != nil {
			return "", fmt.Errorf("failed to write stdin file: %w", err)
		}
		redirect = " < " + wrapperStdinFile
	}

	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	b.WriteString("set +e\n")
	fmt.Fprintf(&b, "%s %s > %s 2> %s%s\n",
		strings.Join(t.Shell, " "), wrapperScriptFile, ".command.out", ".command.err", redirect)
	b.WriteString("status=$?\n")
	b.WriteString("echo $status > .command.exit\n")
	b.WriteString("exit $status\n")

	launcher := filepath.Join(scratch, wrapperLauncherFile)
	if err := os.WriteFile(launcher, []byte(b.String()), 0o744); err != nil {
		return "", fmt.Errorf("failed to write launcher script: %w", err)
	}
	return launcher, nil
}
