// Package environment classifies whether a ROSA HCP management cluster is
// ready to accept a new provisioning request.
package environment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stolostron/automation-capi/support/poll"

	"github.com/go-logr/logr"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// State is the derived readiness of the target environment. Exactly one
// state holds per classification pass; states are never stored.
type State string

const (
	// Ready means provisioning can be delegated.
	Ready State = "Ready"
	// NotConfigured means provider credentials or namespaces are missing;
	// the configuration procedure can remediate this.
	NotConfigured State = "NotConfigured"
	// Broken means the environment is configured but its controllers are
	// unhealthy. Never auto-remediated; the defect is external.
	Broken State = "Broken"
	// NotAuthenticated means the management cluster API rejected us.
	// Terminal: credentials are a human action.
	NotAuthenticated State = "NotAuthenticated"
)

// Process exit codes, a stable contract consumed by the wrapper scripts and
// CI pipelines that drive this CLI.
const (
	ExitReady            = 0
	ExitNotConfigured    = 1
	ExitBroken           = 2
	ExitNotAuthenticated = 3
	// ExitUnknown is a defensive fallback. Reaching it means a classifier bug.
	ExitUnknown = 99
)

// ExitCode maps a state to the process exit-code contract.
func ExitCode(s State) int {
	switch s {
	case Ready:
		return ExitReady
	case NotConfigured:
		return ExitNotConfigured
	case Broken:
		return ExitBroken
	case NotAuthenticated:
		return ExitNotAuthenticated
	default:
		return ExitUnknown
	}
}

// Controller names a deployment that must be ready before provisioning.
type Controller struct {
	Namespace string
	Name      string
}

func (c Controller) String() string {
	return c.Namespace + "/" + c.Name
}

// SecretRef names a credential object the configuration procedure creates.
type SecretRef struct {
	Namespace string
	Name      string
}

func (s SecretRef) String() string {
	return s.Namespace + "/" + s.Name
}

// DefaultControllers is the stock controller set of a ROSA HCP management
// cluster: cluster-api, its AWS provider, and the cert-manager trio they
// depend on.
func DefaultControllers() []Controller {
	return []Controller{
		{Namespace: "capi-system", Name: "capi-controller-manager"},
		{Namespace: "capa-system", Name: "capa-controller-manager"},
		{Namespace: "cert-manager", Name: "cert-manager"},
		{Namespace: "cert-manager", Name: "cert-manager-webhook"},
		{Namespace: "cert-manager", Name: "cert-manager-cainjector"},
	}
}

// DefaultCredentialSecrets lists the objects the configuration procedure
// provisions. Their absence classifies the environment NotConfigured.
func DefaultCredentialSecrets() []SecretRef {
	return []SecretRef{
		{Namespace: "ns-rosa-hcp", Name: "rosa-creds-secret"},
		{Namespace: "capa-system", Name: "capa-manager-bootstrap-credentials"},
	}
}

// Classification pairs the derived state with remediation hints. Hints are
// advisory text for the operator, never machine-actionable.
type Classification struct {
	State State
	Hints []string
}

// Classifier derives the environment state from live cluster queries. All
// dependencies are explicit so the classifier is testable with a fake
// clientset.
type Classifier struct {
	Client      kubernetes.Interface
	Controllers []Controller
	Credentials []SecretRef

	// Poll budget for the controller health check.
	PollAttempts int
	PollInterval time.Duration

	// Strict additionally requires every pod in each controller namespace to
	// be running, not just the deployment replica counts to line up.
	Strict bool

	Log logr.Logger
}

// NewClassifier returns a classifier with the stock controller and
// credential sets and the default poll budget.
func NewClassifier(client kubernetes.Interface, log logr.Logger) *Classifier {
	return &Classifier{
		Client:       client,
		Controllers:  DefaultControllers(),
		Credentials:  DefaultCredentialSecrets(),
		PollAttempts: poll.DefaultAttempts,
		PollInterval: poll.DefaultInterval,
		Log:          log,
	}
}

// Classify runs the fixed-order decision procedure: authentication, then
// configuration, then controller health; first match wins. Query failures
// are evidence for the corresponding negative state, never hard errors, so
// callers always get exactly one state and a deterministic exit code.
func (c *Classifier) Classify(ctx context.Context) Classification {
	if err := c.authenticated(ctx); err != nil {
		c.Log.Error(err, "Not authenticated to the management cluster API")
		return Classification{
			State: NotAuthenticated,
			Hints: []string{
				"log in to the management cluster (oc login) and re-run verification",
			},
		}
	}

	if missing := c.missingConfiguration(ctx); len(missing) > 0 {
		return Classification{
			State: NotConfigured,
			Hints: []string{
				fmt.Sprintf("missing configuration objects: %s", strings.Join(missing, ", ")),
				"run the configuration procedure, then re-run verification",
			},
		}
	}

	if unhealthy := c.unhealthyControllers(ctx); len(unhealthy) > 0 {
		return Classification{
			State: Broken,
			Hints: []string{
				fmt.Sprintf("controllers not ready: %s", strings.Join(unhealthy, ", ")),
				"check the multicluster engine cluster-api preview feature gates",
				"known workaround: delete the stuck controller pod and let the deployment reschedule it",
			},
		}
	}

	return Classification{State: Ready}
}

// authenticated issues a single cheap read against the cluster API. Any
// failure, authorization or transport, means we cannot drive this cluster.
func (c *Classifier) authenticated(ctx context.Context) error {
	_, err := c.Client.CoreV1().Namespaces().List(ctx, metav1.ListOptions{Limit: 1})
	return err
}

// missingConfiguration returns the credential objects that are absent.
func (c *Classifier) missingConfiguration(ctx context.Context) []string {
	var missing []string
	for _, ref := range c.Credentials {
		if _, err := c.Client.CoreV1().Secrets(ref.Namespace).Get(ctx, ref.Name, metav1.GetOptions{}); err != nil {
			c.Log.V(1).Info("Credential secret not found", "secret", ref.String(), "reason", err.Error())
			missing = append(missing, ref.String())
		}
	}
	return missing
}

// unhealthyControllers polls the controller deployments until they are all
// ready or the budget runs out, returning the controllers still unready.
func (c *Classifier) unhealthyControllers(ctx context.Context) []string {
	res := poll.WaitUntil(ctx, c.PollAttempts, c.PollInterval, func(ctx context.Context) (bool, []string, error) {
		unready := c.unreadyOnce(ctx)
		return len(unready) == 0, unready, nil
	})
	if res.Succeeded {
		return nil
	}
	return res.Last
}

func (c *Classifier) unreadyOnce(ctx context.Context) []string {
	var unready []string
	for _, ctrl := range c.Controllers {
		deployment, err := c.Client.AppsV1().Deployments(ctrl.Namespace).Get(ctx, ctrl.Name, metav1.GetOptions{})
		if err != nil {
			unready = append(unready, ctrl.String())
			continue
		}
		status := deployment.Status
		ready := status.Replicas > 0 &&
			status.AvailableReplicas == status.Replicas &&
			status.ReadyReplicas == status.Replicas
		if !ready {
			unready = append(unready, fmt.Sprintf("%s (%d/%d ready)", ctrl.String(), status.ReadyReplicas, status.Replicas))
			continue
		}
		if c.Strict {
			unready = append(unready, c.stuckPods(ctx, ctrl.Namespace)...)
		}
	}
	return unready
}

// stuckPods reports pods in the controller namespace that are neither
// running nor completed. Only consulted in strict mode.
func (c *Classifier) stuckPods(ctx context.Context, namespace string) []string {
	pods, err := c.Client.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return []string{fmt.Sprintf("%s (pods unlistable: %v)", namespace, err)}
	}
	var stuck []string
	for _, pod := range pods.Items {
		switch pod.Status.Phase {
		case corev1.PodRunning, corev1.PodSucceeded:
		default:
			stuck = append(stuck, fmt.Sprintf("%s/%s (pod %s)", namespace, pod.Name, pod.Status.Phase))
		}
	}
	return stuck
}
