package k8sjob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"slt-training-harness/internal/config"
	"slt-training-harness/internal/core/domain"
	"slt-training-harness/internal/core/ports/output"
)

const gpuResourceName = "nvidia.com/gpu"

type scheduler struct {
	client       kubernetes.Interface
	namespace    string
	defaultImage string
	ttlSeconds   int32
	pollInterval time.Duration
}

// NewScheduler builds a JobScheduler backed by Kubernetes batch Jobs.
// Returns ErrSchedulerUnavailable when the integration is disabled.
func NewScheduler(cfg *config.KubernetesConfig) (ports.JobScheduler, error) {
	if !cfg.Enabled {
		return nil, domain.ErrSchedulerUnavailable
	}

	var restCfg *rest.Config
	var err error

	if cfg.InCluster {
		restCfg, err = rest.InClusterConfig()
	} else if cfg.KubeConfigPath != "" {
		restCfg, err = clientcmd.BuildConfigFromFlags("", cfg.KubeConfigPath)
	} else {
		// Try default kubeconfig location
		home, _ := os.UserHomeDir()
		kubeconfig := filepath.Join(home, ".kube", "config")
		restCfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	if err != nil {
		return nil, fmt.Errorf("build k8s config: %w", err)
	}

	client, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("create k8s client: %w", err)
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "training"
	}

	return &scheduler{
		client:       client,
		namespace:    namespace,
		defaultImage: cfg.Image,
		ttlSeconds:   int32(cfg.JobTTLSeconds),
		pollInterval: 5 * time.Second,
	}, nil
}

func (s *scheduler) Submit(ctx context.Context, spec ports.JobSpec) (string, error) {
	job := s.buildJob(spec)

	created, err := s.client.BatchV1().Jobs(s.namespace).Create(ctx, job, metav1.CreateOptions{})
	if err != nil {
		return "", fmt.Errorf("create batch job: %w", err)
	}
	return created.Name, nil
}

// Wait polls the Job until it completes or fails. The container exit code is
// recovered from the pod when the Job fails; a missing pod maps to exit 1.
func (s *scheduler) Wait(ctx context.Context, id string) (*ports.JobStatus, error) {
	status := &ports.JobStatus{ID: id}

	err := wait.PollUntilContextCancel(ctx, s.pollInterval, true, func(ctx context.Context) (bool, error) {
		job, err := s.client.BatchV1().Jobs(s.namespace).Get(ctx, id, metav1.GetOptions{})
		if err != nil {
			return false, fmt.Errorf("get batch job: %w", err)
		}

		for _, cond := range job.Status.Conditions {
			if cond.Status != corev1.ConditionTrue {
				continue
			}
			switch cond.Type {
			case batchv1.JobComplete:
				status.Done = true
				status.ExitCode = 0
				return true, nil
			case batchv1.JobFailed:
				status.Done = true
				status.Message = cond.Message
				status.ExitCode = s.podExitCode(ctx, id)
				return true, nil
			}
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

func (s *scheduler) podExitCode(ctx context.Context, jobName string) int {
	pods, err := s.client.CoreV1().Pods(s.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: fmt.Sprintf("job-name=%s", jobName),
	})
	if err != nil || len(pods.Items) == 0 {
		return 1
	}

	for _, pod := range pods.Items {
		for _, cs := range pod.Status.ContainerStatuses {
			if cs.State.Terminated != nil && cs.State.Terminated.ExitCode != 0 {
				return int(cs.State.Terminated.ExitCode)
			}
		}
	}
	return 1
}

func (s *scheduler) buildJob(spec ports.JobSpec) *batchv1.Job {
	image := spec.Image
	if image == "" {
		image = s.defaultImage
	}

	env := make([]corev1.EnvVar, 0, len(spec.Env))
	for k, v := range spec.Env {
		env = append(env, corev1.EnvVar{Name: k, Value: v})
	}

	container := corev1.Container{
		Name:       "stage",
		Image:      image,
		Command:    spec.Command,
		Args:       spec.Args,
		Env:        env,
		WorkingDir: spec.WorkingDir,
	}
	if spec.GPUs > 0 {
		container.Resources = corev1.ResourceRequirements{
			Limits: corev1.ResourceList{
				gpuResourceName: *resource.NewQuantity(int64(spec.GPUs), resource.DecimalSI),
			},
		}
	}

	backoffLimit := int32(0)
	ttl := s.ttlSeconds

	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      sanitizeName(spec.Name),
			Namespace: s.namespace,
		},
		Spec: batchv1.JobSpec{
			BackoffLimit:            &backoffLimit,
			TTLSecondsAfterFinished: &ttl,
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{
					Containers:    []corev1.Container{container},
					RestartPolicy: corev1.RestartPolicyNever,
				},
			},
		},
	}
}

// sanitizeName makes a job name DNS-1123 safe. Experiment identifiers may
// carry underscores or uppercase letters.
func sanitizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.NewReplacer("_", "-", ".", "-", " ", "-").Replace(name)
	name = strings.Trim(name, "-")
	if len(name) > 63 {
		name = name[:63]
		name = strings.Trim(name, "-")
	}
	return name
}

// Ensure interface compliance
var _ ports.JobScheduler = (*scheduler)(nil)
