package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildOptions(t *testing.T) {
	tests := []struct {
		name        string
		flags       Flags
		settings    Settings
		wantErr     bool
		errContains string
		check       func(t *testing.T, opts *Options)
	}{
		{
			name:  "flag logdir",
			flags: Flags{LogDir: "/var/tmp/logs", Tail: TailUnset},
			check: func(t *testing.T, opts *Options) {
				require.Equal(t, "/var/tmp/logs", opts.Session.LogDir)
				require.False(t, opts.Session.View)
			},
		},
		{
			name:     "logdir falls back to environment",
			flags:    Flags{Tail: TailUnset},
			settings: Settings{LogDirectory: "/from/env"},
			check: func(t *testing.T, opts *Options) {
				require.Equal(t, "/from/env", opts.Session.LogDir)
			},
		},
		{
			name:        "missing logdir",
			flags:       Flags{Tail: TailUnset},
			wantErr:     true,
			errContains: "no log directory",
		},
		{
			name:  "ephemeral logdir forces view",
			flags: Flags{LogDir: "-", Tail: TailUnset},
			check: func(t *testing.T, opts *Options) {
				require.True(t, opts.Session.View)
			},
		},
		{
			name:  "since parsed into seconds",
			flags: Flags{LogDir: "/tmp/x", Since: "5m", Tail: TailUnset},
			check: func(t *testing.T, opts *Options) {
				require.NotNil(t, opts.Session.Stream.SinceSeconds)
				require.Equal(t, int64(300), *opts.Session.Stream.SinceSeconds)
				require.Equal(t, "5m", opts.Session.Manifest.Policies.Since)
			},
		},
		{
			name:        "invalid since",
			flags:       Flags{LogDir: "/tmp/x", Since: "soon", Tail: TailUnset},
			wantErr:     true,
			errContains: "invalid --since",
		},
		{
			name:        "negative since",
			flags:       Flags{LogDir: "/tmp/x", Since: "-5m", Tail: TailUnset},
			wantErr:     true,
			errContains: "--since must be positive",
		},
		{
			name:  "tail lines",
			flags: Flags{LogDir: "/tmp/x", Tail: 40},
			check: func(t *testing.T, opts *Options) {
				require.NotNil(t, opts.Session.Stream.TailLines)
				require.Equal(t, int64(40), *opts.Session.Stream.TailLines)
			},
		},
		{
			name:        "tail must be positive",
			flags:       Flags{LogDir: "/tmp/x", Tail: 0},
			wantErr:     true,
			errContains: "--tail must be >= 1",
		},
		{
			name:        "invalid pod regex",
			flags:       Flags{LogDir: "/tmp/x", Pods: []string{"("}, Tail: TailUnset},
			wantErr:     true,
			errContains: "invalid pod regex",
		},
		{
			name:  "kubeconfig recorded in the manifest",
			flags: Flags{LogDir: "/tmp/x", Kubeconfig: "/kc/admin", Tail: TailUnset},
			check: func(t *testing.T, opts *Options) {
				require.Equal(t, "/kc/admin", opts.Kubeconfig)
				require.Equal(t, "/kc/admin", opts.Session.Manifest.Kubeconfig)
			},
		},
		{
			name: "filters recorded in the manifest",
			flags: Flags{
				LogDir:     "/tmp/x",
				Namespaces: []string{"^payments$"},
				Pods:       []string{"^api"},
				Tail:       TailUnset,
				Watch:      true,
				Reconnect:  true,
			},
			check: func(t *testing.T, opts *Options) {
				require.Equal(t, []string{"^payments$"}, opts.Session.Manifest.Filters.Namespaces)
				require.Equal(t, []string{"^api"}, opts.Session.Manifest.Filters.Pods)
				require.True(t, opts.Session.Manifest.Policies.Watch)
				require.True(t, opts.Session.Manifest.Policies.Reconnect)
				require.True(t, opts.Session.Watch)
				require.True(t, opts.Session.Stream.Reconnect)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildOptions(tt.flags, tt.settings)

			if tt.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), tt.errContains)
				return
			}

			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, got)
			}
		})
	}
}
