package runtime

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/JNickson/k8s-tail/internal/utils"
)

// NewCommand builds the k8s-tail root command.
func NewCommand() *cobra.Command {
	var flags Flags

	cmd := &cobra.Command{
		Use:   "k8s-tail",
		Short: "Tail Kubernetes container logs into per-container files",
		Long: `k8s-tail follows the logs of every container whose namespace, pod and
container names match the given regular expressions. Each stream is written
to its own file inside a timestamped run directory, ready for lnav or any
other log viewer.`,
		Example: `  # Tail every container in namespaces matching "payments"
  k8s-tail -n payments

  # Tail the api containers of the checkout pods and open lnav on the result
  k8s-tail -p checkout -c api --view

  # One-off inspection: tail into a temp directory that is removed afterwards
  k8s-tail -n payments --logdir -`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			slog.SetDefault(utils.NewLogger(flags.Debug))

			settings, err := LoadSettings()
			if err != nil {
				return err
			}

			opts, err := BuildOptions(flags, settings)
			if err != nil {
				return err
			}

			app, err := New(opts)
			if err != nil {
				return err
			}

			return app.Run(cmd.Context())
		},
	}

	// StringArray keeps commas intact, which matters for regexes like a{1,3}.
	cmd.Flags().StringArrayVarP(&flags.Namespaces, "namespace", "n", nil, "namespace regex, repeatable; all namespaces when absent")
	cmd.Flags().StringArrayVarP(&flags.Pods, "pod", "p", nil, "pod name regex, repeatable; all pods when absent")
	cmd.Flags().StringArrayVarP(&flags.Containers, "container", "c", nil, "container name regex, repeatable; all containers when absent")
	cmd.Flags().StringVarP(&flags.LogDir, "logdir", "l", "", `base directory for run directories, "-" tails into a temp directory and implies --view (default $LOG_DIRECTORY)`)
	cmd.Flags().StringVarP(&flags.Kubeconfig, "kubeconfig", "k", "", "path to the kubeconfig file (default $KUBECONFIG, then ~/.kube/config)")
	cmd.Flags().BoolVarP(&flags.View, "view", "v", false, "open the run directory in the log viewer and stop when it exits")
	cmd.Flags().StringVarP(&flags.Since, "since", "S", "", `only return logs newer than a relative duration like "30s", "5m" or "2h"`)
	cmd.Flags().Int64VarP(&flags.Tail, "tail", "T", TailUnset, "number of recent lines to fetch per container before following")
	cmd.Flags().BoolVarP(&flags.Debug, "debug", "d", false, "enable debug logging")
	cmd.Flags().BoolVarP(&flags.Watch, "watch", "w", false, "keep discovering pods that start matching while the session runs")
	cmd.Flags().BoolVarP(&flags.Reconnect, "reconnect", "r", false, "reopen dropped log streams, resuming from the last line seen")

	return cmd
}
