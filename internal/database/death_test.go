package database

import (
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const deathTestEnv = "RACEDB_DEATH_TEST"

// inDeathTest reports whether the test runs as the child of runDeathTest.
func inDeathTest() bool {
	return os.Getenv(deathTestEnv) == "1"
}

// runDeathTest re-runs the named test in a child process and returns its
// output. The child is expected to terminate with a non-zero status.
func runDeathTest(t *testing.T, name string) string {
	t.Helper()

	cmd := exec.Command(os.Args[0], "-test.run=^"+name+"$", "-test.count=1")
	cmd.Env = append(os.Environ(), deathTestEnv+"=1")
	out, err := cmd.CombinedOutput()

	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr, "child process should have aborted:\n%s", out)
	assert.NotEqual(t, 0, exitErr.ExitCode())
	return string(out)
}
