package viewer

import (
	"bytes"
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	testCases := []struct {
		name string
		env  string
		want []string
	}{
		{
			name: "unset falls back to lnav",
			env:  "",
			want: []string{"lnav"},
		},
		{
			name: "blank falls back to lnav",
			env:  "   ",
			want: []string{"lnav"},
		},
		{
			name: "bare command",
			env:  "less",
			want: []string{"less"},
		},
		{
			name: "command with arguments",
			env:  "less -R  +F",
			want: []string{"less", "-R", "+F"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Resolve(tc.env))
		})
	}
}

func TestNewReadsViewerFromEnvironment(t *testing.T) {
	t.Setenv(CommandEnvVar, "less -R")

	v := New()
	require.Equal(t, []string{"less", "-R"}, v.argv)
	require.Equal(t, "less -R", v.String())
}

func TestLaunchAppendsDirAsFinalArgument(t *testing.T) {
	dir := t.TempDir()

	var out bytes.Buffer
	v := New()
	v.argv = []string{"sh", "-c", `printf '%s' "$0"`}
	v.stdout = &out

	proc, err := v.Launch(context.Background(), dir)
	require.NoError(t, err)
	require.NoError(t, proc.Wait())
	require.Equal(t, dir, out.String())
}

func TestLaunchReportsMissingBinary(t *testing.T) {
	t.Setenv(CommandEnvVar, "k8s-tail-no-such-viewer")

	_, err := New().Launch(context.Background(), t.TempDir())
	require.Error(t, err)
	require.ErrorIs(t, err, exec.ErrNotFound)
}

func TestLaunchKilledByContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	v := New()
	v.argv = []string{"sleep", "60"}
	v.stdout = &bytes.Buffer{}
	v.stderr = &bytes.Buffer{}

	proc, err := v.Launch(ctx, t.TempDir())
	require.NoError(t, err)

	cancel()
	require.Error(t, proc.Wait())
}
