package cluster

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/metrics/pkg/apis/metrics/v1beta1"
	metrics "k8s.io/metrics/pkg/client/clientset/versioned"

	"github.com/iljarotar/threshold-scaler/internal/engine"
	"github.com/iljarotar/threshold-scaler/internal/scaling"
)

const (
	// replica bounds a deployment may declare for itself
	minReplicasAnnotation = "threshold-scaler/min-replicas"
	maxReplicasAnnotation = "threshold-scaler/max-replicas"

	bytesPerMegabyte = 1024 * 1024
)

// Client implements the engine's registry and metrics source against a
// kubernetes cluster, reading usage from the metrics API and limits from the
// pod specs.
type Client struct {
	clientset kubernetes.Interface
	metrics   metrics.Interface
}

var (
	_ engine.Registry      = &Client{}
	_ engine.MetricsSource = &Client{}
)

func NewClient(clientset kubernetes.Interface, metricsClientset metrics.Interface) *Client {
	return &Client{clientset: clientset, metrics: metricsClientset}
}

// ListDeployments returns the deployment names of the namespace in list
// order, which is stable across calls within a session.
func (c *Client) ListDeployments(ctx context.Context, namespace string) ([]string, error) {
	deployments, err := c.clientset.AppsV1().Deployments(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(deployments.Items))
	for _, deployment := range deployments.Items {
		names = append(names, deployment.Name)
	}

	return names, nil
}

// DeploymentState reads the current replica count and any replica bounds the
// deployment declares via annotations.
func (c *Client) DeploymentState(ctx context.Context, name, namespace string) (engine.DeploymentState, error) {
	deployment, err := c.clientset.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return engine.DeploymentState{}, err
	}

	state := engine.DeploymentState{
		Name:        name,
		Namespace:   namespace,
		MinReplicas: annotationValue(deployment.Annotations, minReplicasAnnotation),
		MaxReplicas: annotationValue(deployment.Annotations, maxReplicasAnnotation),
	}

	if deployment.Spec.Replicas != nil {
		state.Replicas = *deployment.Spec.Replicas
	}

	return state, nil
}

// PodMetrics collects the utilization of every pod backing the deployment.
// Usage and limits are summed over each pod's containers.
func (c *Client) PodMetrics(ctx context.Context, namespace, deployment string) ([]scaling.PodMetric, error) {
	target, err := c.clientset.AppsV1().Deployments(namespace).Get(ctx, deployment, metav1.GetOptions{})
	if err != nil {
		return nil, err
	}

	selector, err := metav1.LabelSelectorAsSelector(target.Spec.Selector)
	if err != nil {
		return nil, fmt.Errorf("deployment %s has an invalid selector: %w", deployment, err)
	}

	listOptions := metav1.ListOptions{LabelSelector: selector.String()}

	var (
		pods       *corev1.PodList
		podMetrics *v1beta1.PodMetricsList
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		pods, err = c.clientset.CoreV1().Pods(namespace).List(groupCtx, listOptions)
		return err
	})
	group.Go(func() error {
		var err error
		podMetrics, err = c.metrics.MetricsV1beta1().PodMetricses(namespace).List(groupCtx, listOptions)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	usageByPod := make(map[string]corev1.ResourceList, len(podMetrics.Items))
	for _, item := range podMetrics.Items {
		usageByPod[item.Name] = sumContainerUsage(item.Containers)
	}

	result := make([]scaling.PodMetric, 0, len(pods.Items))

	for _, pod := range pods.Items {
		// a pod without metrics yet is invisible to the aggregator
		usage, ok := usageByPod[pod.Name]
		if !ok {
			continue
		}

		limits := sumContainerLimits(pod.Spec.Containers)

		result = append(result, scaling.PodMetric{
			Name:        pod.Name,
			Node:        pod.Spec.NodeName,
			Deployment:  deployment,
			CPUUsage:    usage.Cpu().MilliValue(),
			MemoryUsage: usage.Memory().Value() / bytesPerMegabyte,
			CPULimit:    limits.Cpu().MilliValue(),
			MemoryLimit: limits.Memory().Value() / bytesPerMegabyte,
		})
	}

	return result, nil
}

// SetReplicas scales the deployment to the given replica count.
func (c *Client) SetReplicas(ctx context.Context, name, namespace string, replicas int32) error {
	if replicas < 0 {
		return fmt.Errorf("replica count cannot be negative: %d", replicas)
	}

	deployments := c.clientset.AppsV1().Deployments(namespace)

	deployment, err := deployments.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return err
	}

	deployment.Spec.Replicas = &replicas

	_, err = deployments.Update(ctx, deployment, metav1.UpdateOptions{})

	return err
}

func annotationValue(annotations map[string]string, key string) int32 {
	raw, ok := annotations[key]
	if !ok {
		return 0
	}

	value, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || value < 0 {
		return 0
	}

	return int32(value)
}

// sums usage over a pod's containers
func sumContainerUsage(containers []v1beta1.ContainerMetrics) corev1.ResourceList {
	var cpu, memory resource.Quantity

	for _, container := range containers {
		cpu.Add(*container.Usage.Cpu())
		memory.Add(*container.Usage.Memory())
	}

	return corev1.ResourceList{
		corev1.ResourceCPU:    cpu,
		corev1.ResourceMemory: memory,
	}
}

// sums limits over a pod's containers
func sumContainerLimits(containers []corev1.Container) corev1.ResourceList {
	var cpu, memory resource.Quantity

	for _, container := range containers {
		cpu.Add(*container.Resources.Limits.Cpu())
		memory.Add(*container.Resources.Limits.Memory())
	}

	return corev1.ResourceList{
		corev1.ResourceCPU:    cpu,
		corev1.ResourceMemory: memory,
	}
}
