// Package cluster orchestrates provisioning requests: it gates delegation on
// environment readiness and drives the reclamation flow on teardown.
package cluster

import (
	"context"
	"fmt"
	"os"

	"github.com/stolostron/automation-capi/cmd/environment"
	"github.com/stolostron/automation-capi/cmd/log"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
)

// classifier is the slice of the environment package the orchestrator needs.
type classifier interface {
	Classify(ctx context.Context) environment.Classification
}

// Provisioner submits the actual provisioning request once the environment
// is verified Ready. The implementation is opaque to the orchestrator.
type Provisioner interface {
	Provision(ctx context.Context, spec *ClusterSpec) error
}

// Configurator runs the configuration procedure that remediates a
// NotConfigured environment.
type Configurator interface {
	Configure(ctx context.Context) error
}

// ProvisionOptions wires the orchestrator's collaborators.
type ProvisionOptions struct {
	SpecFile string

	Classifier   classifier
	Provisioner  Provisioner
	Configurator Configurator

	Log logr.Logger
}

func newProvisionCommand() *cobra.Command {
	opts := ProvisionOptions{}
	var (
		kubeconfig   string
		strict       bool
		provisionCmd []string
		configureCmd []string
	)

	cmd := &cobra.Command{
		Use:          "provision",
		Short:        "Verifies the environment and delegates cluster provisioning",
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&opts.SpecFile, "spec", opts.SpecFile, "Path to the cluster spec manifest (YAML)")
	cmd.Flags().StringVar(&kubeconfig, "kubeconfig", kubeconfig, "Path to the management cluster kubeconfig")
	cmd.Flags().BoolVar(&strict, "strict", strict, "Also require every controller pod to be running")
	cmd.Flags().StringSliceVar(&provisionCmd, "provision-cmd", provisionCmd, "Command to run for the actual provisioning")
	cmd.Flags().StringSliceVar(&configureCmd, "configure-cmd", configureCmd, "Command that runs the configuration procedure")
	_ = cmd.MarkFlagRequired("spec")
	_ = cmd.MarkFlagRequired("provision-cmd")

	cmd.Run = func(cmd *cobra.Command, args []string) {
		opts.Log = log.Logger()

		spec, err := LoadClusterSpec(opts.SpecFile)
		if err != nil {
			opts.Log.Error(err, "Invalid cluster spec")
			os.Exit(1)
		}

		client, err := environment.NewKubeClient(kubeconfig)
		if err != nil {
			opts.Log.Error(err, "Failed to build management cluster client")
			os.Exit(environment.ExitNotAuthenticated)
		}
		envClassifier := environment.NewClassifier(client, opts.Log)
		envClassifier.Strict = strict
		opts.Classifier = envClassifier
		opts.Provisioner = &ExecProvisioner{Command: provisionCmd}
		if len(configureCmd) > 0 {
			opts.Configurator = &ExecConfigurator{Command: configureCmd}
		}

		result, err := opts.Run(cmd.Context(), spec)
		if err != nil {
			opts.Log.Error(err, "Provisioning aborted", "cluster", spec.Name)
			if result.State != environment.Ready {
				os.Exit(environment.ExitCode(result.State))
			}
			os.Exit(1)
		}
	}

	return cmd
}

// Run gates provisioning on the environment state. NotConfigured gets exactly
// one remediation attempt before re-classification; every other non-Ready
// state aborts immediately. Returns the final classification so callers can
// map it to the exit-code contract.
func (o *ProvisionOptions) Run(ctx context.Context, spec *ClusterSpec) (environment.Classification, error) {
	remediated := false
	for {
		result := o.Classifier.Classify(ctx)
		o.Log.Info("Classified environment", "state", result.State)

		switch result.State {
		case environment.Ready:
			if err := o.Provisioner.Provision(ctx, spec); err != nil {
				return result, fmt.Errorf("provisioning %s failed: %w", spec.Name, err)
			}
			o.Log.Info("Delegated provisioning", "cluster", spec.Name, "region", spec.Region, "replicas", spec.Replicas)
			return result, nil

		case environment.NotConfigured:
			for _, hint := range result.Hints {
				o.Log.Info("Hint", "hint", hint)
			}
			if o.Configurator == nil {
				return result, fmt.Errorf("environment is %s and no configuration procedure is wired", result.State)
			}
			if remediated {
				// One remediation hop only. A second NotConfigured means the
				// configuration procedure is broken; looping would mask it.
				return result, fmt.Errorf("environment still not configured after the configuration procedure ran")
			}
			remediated = true
			o.Log.Info("Running configuration procedure")
			if err := o.Configurator.Configure(ctx); err != nil {
				return result, fmt.Errorf("configuration procedure failed: %w", err)
			}

		default:
			for _, hint := range result.Hints {
				o.Log.Info("Hint", "hint", hint)
			}
			return result, fmt.Errorf("environment is %s, refusing to provision", result.State)
		}
	}
}
