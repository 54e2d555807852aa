package cluster

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
	"k8s.io/metrics/pkg/apis/metrics/v1beta1"
	metricsfake "k8s.io/metrics/pkg/client/clientset/versioned/fake"

	"github.com/iljarotar/threshold-scaler/internal/engine"
	"github.com/iljarotar/threshold-scaler/internal/scaling"
)

func testDeployment(name string, replicas int32, annotations map[string]string) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:        name,
			Namespace:   "default",
			Annotations: annotations,
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{
				MatchLabels: map[string]string{"app": name},
			},
		},
	}
}

func testPod(name, deployment, node string, cpuLimit, memoryLimit string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: "default",
			Labels:    map[string]string{"app": deployment},
		},
		Spec: corev1.PodSpec{
			NodeName: node,
			Containers: []corev1.Container{
				{
					Name: "main",
					Resources: corev1.ResourceRequirements{
						Limits: corev1.ResourceList{
							corev1.ResourceCPU:    resource.MustParse(cpuLimit),
							corev1.ResourceMemory: resource.MustParse(memoryLimit),
						},
					},
				},
			},
		},
	}
}

func testPodMetrics(name, deployment string, cpuUsage, memoryUsage string) *v1beta1.PodMetrics {
	return &v1beta1.PodMetrics{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: "default",
			Labels:    map[string]string{"app": deployment},
		},
		Containers: []v1beta1.ContainerMetrics{
			{
				Name: "main",
				Usage: corev1.ResourceList{
					corev1.ResourceCPU:    resource.MustParse(cpuUsage),
					corev1.ResourceMemory: resource.MustParse(memoryUsage),
				},
			},
		},
	}
}

// newMetricsClientset seeds the fake metrics clientset through its tracker
// under the "pods" resource, which is what the generated fake lists. Passing
// objects to metricsfake.NewSimpleClientset stores them under the guessed
// "podmetricses" resource instead, so lists would always come back empty.
func newMetricsClientset(t *testing.T, objects ...*v1beta1.PodMetrics) *metricsfake.Clientset {
	t.Helper()

	clientset := metricsfake.NewSimpleClientset()
	for _, object := range objects {
		err := clientset.Tracker().Create(v1beta1.SchemeGroupVersion.WithResource("pods"), object, object.Namespace)
		if err != nil {
			t.Fatalf("seeding pod metrics: %v", err)
		}
	}

	return clientset
}

func TestListDeployments(t *testing.T) {
	clientset := fake.NewSimpleClientset(
		testDeployment("web-app", 3, nil),
		testDeployment("cache-service", 2, nil),
	)
	client := NewClient(clientset, metricsfake.NewSimpleClientset())

	got, err := client.ListDeployments(context.Background(), "default")
	if err != nil {
		t.Fatalf("ListDeployments() error = %v", err)
	}

	if len(got) != 2 {
		t.Errorf("ListDeployments() returned %d names, want 2", len(got))
	}
}

func TestDeploymentState(t *testing.T) {
	tests := []struct {
		name        string
		annotations map[string]string
		want        engine.DeploymentState
	}{
		{
			name: "without annotations",
			want: engine.DeploymentState{Name: "web-app", Namespace: "default", Replicas: 3},
		},
		{
			name: "with declared bounds",
			annotations: map[string]string{
				minReplicasAnnotation: "2",
				maxReplicasAnnotation: "6",
			},
			want: engine.DeploymentState{
				Name: "web-app", Namespace: "default", Replicas: 3,
				MinReplicas: 2, MaxReplicas: 6,
			},
		},
		{
			name: "malformed annotations are ignored",
			annotations: map[string]string{
				minReplicasAnnotation: "many",
				maxReplicasAnnotation: "-3",
			},
			want: engine.DeploymentState{Name: "web-app", Namespace: "default", Replicas: 3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clientset := fake.NewSimpleClientset(testDeployment("web-app", 3, tt.annotations))
			client := NewClient(clientset, metricsfake.NewSimpleClientset())

			got, err := client.DeploymentState(context.Background(), "web-app", "default")
			if err != nil {
				t.Fatalf("DeploymentState() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("DeploymentState() %v", diff)
			}
		})
	}
}

func TestDeploymentStateNotFound(t *testing.T) {
	client := NewClient(fake.NewSimpleClientset(), metricsfake.NewSimpleClientset())

	_, err := client.DeploymentState(context.Background(), "gone-service", "default")
	if !apierrors.IsNotFound(err) {
		t.Errorf("DeploymentState() error = %v, want NotFound", err)
	}
}

func TestPodMetrics(t *testing.T) {
	clientset := fake.NewSimpleClientset(
		testDeployment("web-app", 2, nil),
		testPod("web-app-1", "web-app", "node-a", "1", "512Mi"),
		testPod("web-app-2", "web-app", "node-b", "500m", "256Mi"),
		testPod("cache-service-1", "cache-service", "node-a", "1", "512Mi"),
	)
	metricsClientset := newMetricsClientset(t,
		testPodMetrics("web-app-1", "web-app", "750m", "256Mi"),
		testPodMetrics("web-app-2", "web-app", "100m", "64Mi"),
		testPodMetrics("cache-service-1", "cache-service", "900m", "500Mi"),
	)
	client := NewClient(clientset, metricsClientset)

	got, err := client.PodMetrics(context.Background(), "default", "web-app")
	if err != nil {
		t.Fatalf("PodMetrics() error = %v", err)
	}

	want := []scaling.PodMetric{
		{
			Name:       "web-app-1",
			Node:       "node-a",
			Deployment: "web-app",
			CPUUsage:   750, CPULimit: 1000,
			MemoryUsage: 256, MemoryLimit: 512,
		},
		{
			Name:       "web-app-2",
			Node:       "node-b",
			Deployment: "web-app",
			CPUUsage:   100, CPULimit: 500,
			MemoryUsage: 64, MemoryLimit: 256,
		},
	}

	byName := cmpopts.SortSlices(func(a, b scaling.PodMetric) bool { return a.Name < b.Name })
	if diff := cmp.Diff(want, got, byName); diff != "" {
		t.Errorf("PodMetrics() %v", diff)
	}
}

func TestPodMetricsSkipsPodsWithoutMetrics(t *testing.T) {
	clientset := fake.NewSimpleClientset(
		testDeployment("web-app", 2, nil),
		testPod("web-app-1", "web-app", "node-a", "1", "512Mi"),
		testPod("web-app-2", "web-app", "node-b", "1", "512Mi"),
	)
	metricsClientset := newMetricsClientset(t,
		testPodMetrics("web-app-1", "web-app", "750m", "256Mi"),
	)
	client := NewClient(clientset, metricsClientset)

	got, err := client.PodMetrics(context.Background(), "default", "web-app")
	if err != nil {
		t.Fatalf("PodMetrics() error = %v", err)
	}

	if len(got) != 1 || got[0].Name != "web-app-1" {
		t.Errorf("PodMetrics() = %+v, want only web-app-1", got)
	}
}

func TestSetReplicas(t *testing.T) {
	clientset := fake.NewSimpleClientset(testDeployment("web-app", 3, nil))
	client := NewClient(clientset, metricsfake.NewSimpleClientset())

	if err := client.SetReplicas(context.Background(), "web-app", "default", 4); err != nil {
		t.Fatalf("SetReplicas() error = %v", err)
	}

	deployment, err := clientset.AppsV1().Deployments("default").Get(context.Background(), "web-app", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if deployment.Spec.Replicas == nil || *deployment.Spec.Replicas != 4 {
		t.Errorf("SetReplicas left replicas = %v, want 4", deployment.Spec.Replicas)
	}
}

func TestSetReplicasRejectsNegativeCount(t *testing.T) {
	clientset := fake.NewSimpleClientset(testDeployment("web-app", 3, nil))
	client := NewClient(clientset, metricsfake.NewSimpleClientset())

	if err := client.SetReplicas(context.Background(), "web-app", "default", -1); err == nil {
		t.Error("SetReplicas() accepted a negative replica count")
	}
}

func TestSetReplicasMissingDeployment(t *testing.T) {
	client := NewClient(fake.NewSimpleClientset(), metricsfake.NewSimpleClientset())

	err := client.SetReplicas(context.Background(), "gone-service", "default", 2)
	if !apierrors.IsNotFound(err) {
		t.Errorf("SetReplicas() error = %v, want NotFound", err)
	}
}
