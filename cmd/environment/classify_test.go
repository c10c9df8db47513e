package environment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-logr/logr"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	clienttesting "k8s.io/client-go/testing"
)

func readyDeployment(namespace, name string) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Namespace: namespace, Name: name},
		Status: appsv1.DeploymentStatus{
			Replicas:          1,
			ReadyReplicas:     1,
			AvailableReplicas: 1,
		},
	}
}

func unreadyDeployment(namespace, name string) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Namespace: namespace, Name: name},
		Status: appsv1.DeploymentStatus{
			Replicas:          2,
			ReadyReplicas:     1,
			AvailableReplicas: 1,
		},
	}
}

func credentialSecret(namespace, name string) *corev1.Secret {
	return &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Namespace: namespace, Name: name},
	}
}

// healthyObjects is a fully configured, fully healthy environment.
func healthyObjects() []runtime.Object {
	objects := []runtime.Object{}
	for _, ref := range DefaultCredentialSecrets() {
		objects = append(objects, credentialSecret(ref.Namespace, ref.Name))
	}
	for _, ctrl := range DefaultControllers() {
		objects = append(objects, readyDeployment(ctrl.Namespace, ctrl.Name))
	}
	return objects
}

func newTestClassifier(client *fake.Clientset) *Classifier {
	c := NewClassifier(client, logr.Discard())
	c.PollAttempts = 2
	c.PollInterval = time.Millisecond
	return c
}

func TestClassifyReady(t *testing.T) {
	client := fake.NewSimpleClientset(healthyObjects()...)
	c := newTestClassifier(client)

	result := c.Classify(context.Background())
	if result.State != Ready {
		t.Fatalf("expected Ready, got %s (hints: %v)", result.State, result.Hints)
	}
	if len(result.Hints) != 0 {
		t.Errorf("Ready must carry no remediation hints, got %v", result.Hints)
	}
}

func TestClassifyNotAuthenticatedShortCircuits(t *testing.T) {
	// Everything else is healthy; only authentication fails. The auth check
	// has highest priority and must issue no further queries.
	client := fake.NewSimpleClientset(healthyObjects()...)
	client.PrependReactor("list", "namespaces", func(clienttesting.Action) (bool, runtime.Object, error) {
		return true, nil, errors.New("Unauthorized")
	})
	c := newTestClassifier(client)

	result := c.Classify(context.Background())
	if result.State != NotAuthenticated {
		t.Fatalf("expected NotAuthenticated, got %s", result.State)
	}
	if actions := client.Actions(); len(actions) != 1 {
		t.Errorf("expected exactly 1 API call (the auth probe), got %d: %v", len(actions), actions)
	}
}

func TestClassifyNotConfigured(t *testing.T) {
	objects := []runtime.Object{}
	for _, ctrl := range DefaultControllers() {
		objects = append(objects, readyDeployment(ctrl.Namespace, ctrl.Name))
	}
	// Credential secrets deliberately absent.
	client := fake.NewSimpleClientset(objects...)
	c := newTestClassifier(client)

	result := c.Classify(context.Background())
	if result.State != NotConfigured {
		t.Fatalf("expected NotConfigured, got %s", result.State)
	}
	if len(result.Hints) == 0 {
		t.Error("NotConfigured must carry remediation hints")
	}
}

func TestClassifyBrokenWhenControllerAbsent(t *testing.T) {
	objects := []runtime.Object{}
	for _, ref := range DefaultCredentialSecrets() {
		objects = append(objects, credentialSecret(ref.Namespace, ref.Name))
	}
	controllers := DefaultControllers()
	// All controllers but the last exist and are ready.
	for _, ctrl := range controllers[:len(controllers)-1] {
		objects = append(objects, readyDeployment(ctrl.Namespace, ctrl.Name))
	}
	client := fake.NewSimpleClientset(objects...)
	c := newTestClassifier(client)

	result := c.Classify(context.Background())
	if result.State != Broken {
		t.Fatalf("expected Broken, got %s", result.State)
	}
}

func TestClassifyBrokenWhenReplicasUnready(t *testing.T) {
	objects := []runtime.Object{}
	for _, ref := range DefaultCredentialSecrets() {
		objects = append(objects, credentialSecret(ref.Namespace, ref.Name))
	}
	controllers := DefaultControllers()
	objects = append(objects, unreadyDeployment(controllers[0].Namespace, controllers[0].Name))
	for _, ctrl := range controllers[1:] {
		objects = append(objects, readyDeployment(ctrl.Namespace, ctrl.Name))
	}
	client := fake.NewSimpleClientset(objects...)
	c := newTestClassifier(client)

	result := c.Classify(context.Background())
	if result.State != Broken {
		t.Fatalf("expected Broken, got %s", result.State)
	}
}

func TestClassifyBrokenResolvesWithinPollBudget(t *testing.T) {
	objects := healthyObjects()
	client := fake.NewSimpleClientset(objects...)

	// First deployment read reports an unready controller; subsequent reads
	// see the healthy object. The poll budget must absorb the transient.
	first := true
	client.PrependReactor("get", "deployments", func(action clienttesting.Action) (bool, runtime.Object, error) {
		if first {
			first = false
			return true, unreadyDeployment("capi-system", "capi-controller-manager"), nil
		}
		return false, nil, nil
	})
	c := newTestClassifier(client)
	c.PollAttempts = 3

	result := c.Classify(context.Background())
	if result.State != Ready {
		t.Fatalf("expected Ready after the transient cleared, got %s (hints: %v)", result.State, result.Hints)
	}
}

func TestClassifyStrictModeGatesOnPods(t *testing.T) {
	objects := healthyObjects()
	objects = append(objects, &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Namespace: "capa-system", Name: "capa-controller-manager-0"},
		Status:     corev1.PodStatus{Phase: corev1.PodPending},
	})
	client := fake.NewSimpleClientset(objects...)

	c := newTestClassifier(client)
	result := c.Classify(context.Background())
	if result.State != Ready {
		t.Fatalf("non-strict mode must ignore pod phase, got %s", result.State)
	}

	strict := newTestClassifier(client)
	strict.Strict = true
	result = strict.Classify(context.Background())
	if result.State != Broken {
		t.Fatalf("strict mode must gate on pod phase, got %s", result.State)
	}
}

func TestClassifyAuthenticationOutranksEverything(t *testing.T) {
	// Empty cluster: unconfigured AND broken, but authentication fails too.
	client := fake.NewSimpleClientset()
	client.PrependReactor("list", "namespaces", func(clienttesting.Action) (bool, runtime.Object, error) {
		return true, nil, errors.New("connection refused")
	})
	c := newTestClassifier(client)

	result := c.Classify(context.Background())
	if result.State != NotAuthenticated {
		t.Fatalf("authentication must have highest priority, got %s", result.State)
	}
}

func TestExitCodes(t *testing.T) {
	cases := map[State]int{
		Ready:            0,
		NotConfigured:    1,
		Broken:           2,
		NotAuthenticated: 3,
		State("bogus"):   99,
	}
	for state, want := range cases {
		if got := ExitCode(state); got != want {
			t.Errorf("ExitCode(%s) = %d, want %d", state, got, want)
		}
	}
}
