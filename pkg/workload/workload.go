// Package workload extracts pod specifications from the workload kinds
// this policy understands and discovers the images they run.
package workload

import (
	"encoding/json"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/util/sets"
)

// ExtractPodSpec returns the pod specification carried by a workload
// object, or nil when the object carries none. Unrecognized kinds and
// objects that do not decode into the expected shape return an error;
// callers are expected to fail open on it.
func ExtractPodSpec(kind string, raw []byte) (*corev1.PodSpec, error) {
	switch kind {
	case "Pod":
		var pod corev1.Pod
		if err := json.Unmarshal(raw, &pod); err != nil {
			return nil, unmarshalError(kind, err)
		}
		return &pod.Spec, nil
	case "Deployment":
		var deployment appsv1.Deployment
		if err := json.Unmarshal(raw, &deployment); err != nil {
			return nil, unmarshalError(kind, err)
		}
		return &deployment.Spec.Template.Spec, nil
	case "ReplicaSet":
		var replicaSet appsv1.ReplicaSet
		if err := json.Unmarshal(raw, &replicaSet); err != nil {
			return nil, unmarshalError(kind, err)
		}
		return &replicaSet.Spec.Template.Spec, nil
	case "StatefulSet":
		var statefulSet appsv1.StatefulSet
		if err := json.Unmarshal(raw, &statefulSet); err != nil {
			return nil, unmarshalError(kind, err)
		}
		return &statefulSet.Spec.Template.Spec, nil
	case "DaemonSet":
		var daemonSet appsv1.DaemonSet
		if err := json.Unmarshal(raw, &daemonSet); err != nil {
			return nil, unmarshalError(kind, err)
		}
		return &daemonSet.Spec.Template.Spec, nil
	case "ReplicationController":
		var controller corev1.ReplicationController
		if err := json.Unmarshal(raw, &controller); err != nil {
			return nil, unmarshalError(kind, err)
		}
		if controller.Spec.Template == nil {
			return nil, nil
		}
		return &controller.Spec.Template.Spec, nil
	case "Job":
		var job batchv1.Job
		if err := json.Unmarshal(raw, &job); err != nil {
			return nil, unmarshalError(kind, err)
		}
		return &job.Spec.Template.Spec, nil
	case "CronJob":
		var cronJob batchv1.CronJob
		if err := json.Unmarshal(raw, &cronJob); err != nil {
			return nil, unmarshalError(kind, err)
		}
		return &cronJob.Spec.JobTemplate.Spec.Template.Spec, nil
	}
	return nil, fmt.Errorf("unsupported workload kind %q", kind)
}

func unmarshalError(kind string, err error) error {
	return fmt.Errorf("failed to unmarshal %s: %w", kind, err)
}

// Images returns the deduplicated set of image strings referenced by
// the pod spec's init, ephemeral and regular containers. Containers
// without an image are skipped.
func Images(spec *corev1.PodSpec) sets.Set[string] {
	images := sets.New[string]()
	if spec == nil {
		return images
	}
	for _, container := range spec.InitContainers {
		if container.Image != "" {
			images.Insert(container.Image)
		}
	}
	for _, container := range spec.EphemeralContainers {
		if container.Image != "" {
			images.Insert(container.Image)
		}
	}
	for _, container := range spec.Containers {
		if container.Image != "" {
			images.Insert(container.Image)
		}
	}
	return images
}
