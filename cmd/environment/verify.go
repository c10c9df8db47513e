package environment

import (
	"os"
	"time"

	"github.com/stolostron/automation-capi/cmd/log"
	"github.com/stolostron/automation-capi/support/poll"

	"github.com/spf13/cobra"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
)

// NewCommand groups the environment subcommands.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "environment",
		Short:        "Inspects the management cluster environment",
		SilenceUsage: true,
	}
	cmd.AddCommand(newVerifyCommand())
	return cmd
}

type verifyOptions struct {
	Kubeconfig   string
	Strict       bool
	PollAttempts int
	PollInterval time.Duration
}

func newVerifyCommand() *cobra.Command {
	opts := verifyOptions{
		PollAttempts: poll.DefaultAttempts,
		PollInterval: poll.DefaultInterval,
	}

	cmd := &cobra.Command{
		Use:          "verify",
		Short:        "Classifies the environment's readiness for provisioning",
		Long:         "Classifies the environment into one of Ready, NotConfigured, Broken, NotAuthenticated and exits with the matching code (0, 1, 2, 3).",
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&opts.Kubeconfig, "kubeconfig", opts.Kubeconfig, "Path to the management cluster kubeconfig (defaults to the standard loading rules)")
	cmd.Flags().BoolVar(&opts.Strict, "strict", opts.Strict, "Additionally require all controller pods to be running, not just deployment replica counts")
	cmd.Flags().IntVar(&opts.PollAttempts, "poll-attempts", opts.PollAttempts, "Number of controller readiness evaluations before declaring the environment broken")
	cmd.Flags().DurationVar(&opts.PollInterval, "poll-interval", opts.PollInterval, "Interval between controller readiness evaluations")

	cmd.Run = func(cmd *cobra.Command, args []string) {
		logger := log.Logger()

		client, err := NewKubeClient(opts.Kubeconfig)
		if err != nil {
			// No usable client means no authenticated session.
			logger.Error(err, "Failed to build a management cluster client")
			os.Exit(ExitNotAuthenticated)
		}

		classifier := NewClassifier(client, logger)
		classifier.Strict = opts.Strict
		classifier.PollAttempts = opts.PollAttempts
		classifier.PollInterval = opts.PollInterval

		result := classifier.Classify(cmd.Context())
		logger.Info("Environment classified", "state", result.State)
		for _, hint := range result.Hints {
			logger.Info("Remediation hint", "hint", hint)
		}
		os.Exit(ExitCode(result.State))
	}

	return cmd
}

// NewKubeClient builds a clientset from an explicit kubeconfig path or the
// standard loading rules when the path is empty.
func NewKubeClient(kubeconfig string) (kubernetes.Interface, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		loadingRules.ExplicitPath = kubeconfig
	}
	cfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, &clientcmd.ConfigOverrides{}).ClientConfig()
	if err != nil {
		return nil, err
	}
	return kubernetes.NewForConfig(cfg)
}
