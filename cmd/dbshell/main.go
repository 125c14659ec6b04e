// Command dbshell opens a psql session inside the compose database container.
// With no arguments it attaches an interactive shell; with a single SQL
// argument it runs the statement non-interactively and exits.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

var (
	containerFlag string
	userFlag      string
	dbFlag        string
)

// buildArgs assembles the docker exec argument vector. sql is empty for an
// interactive session.
func buildArgs(container, user, db, sql string, interactive bool) []string {
	args := []string{"exec"}
	if interactive {
		args = append(args, "-it")
	}
	args = append(args, container, "psql", "-U", user, "-d", db)
	if sql != "" {
		args = append(args, "-c", sql)
	}
	return args
}

func run(cmd *cobra.Command, args []string) error {
	sql := ""
	if len(args) == 1 {
		sql = args[0]
	}
	dockerArgs := buildArgs(containerFlag, userFlag, dbFlag, sql, sql == "")

	c := exec.Command("docker", dockerArgs...)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	return c.Run()
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "dbshell [sql]",
		Short: "psql shell into the automation database container",
		Args:  cobra.MaximumNArgs(1),
		RunE:  run,
		// docker/psql already print their own diagnostics
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.Flags().StringVar(&containerFlag, "container", "automation-db", "database container name")
	rootCmd.Flags().StringVar(&userFlag, "user", "postgres", "database user")
	rootCmd.Flags().StringVar(&dbFlag, "db", "automation_db", "database name")

	if err := rootCmd.Execute(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// Forward psql's exit status untouched.
			os.Exit(exitErr.ExitCode())
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
