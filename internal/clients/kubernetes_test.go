package clients

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveKubeconfig(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	testCases := []struct {
		name     string
		flagPath string
		envPath  string
		want     string
	}{
		{
			name:     "flag wins over env",
			flagPath: "/from/flag/config",
			envPath:  "/from/env/config",
			want:     "/from/flag/config",
		},
		{
			name:    "env fallback",
			envPath: "/from/env/config",
			want:    "/from/env/config",
		},
		{
			name: "default home path",
			want: filepath.Join(home, ".kube", "config"),
		},
		{
			name:     "tilde expansion",
			flagPath: "~/.kube/staging",
			want:     filepath.Join(home, ".kube", "staging"),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ResolveKubeconfig(tc.flagPath, tc.envPath))
		})
	}
}
