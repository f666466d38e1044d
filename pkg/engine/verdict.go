package engine

import (
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/imageguard/imageguard/pkg/imageref"
	"github.com/imageguard/imageguard/pkg/logging"
	"github.com/imageguard/imageguard/pkg/policy"
	"github.com/imageguard/imageguard/pkg/workload"
)

// RejectionReasons accumulates the reasons a workload was rejected,
// deduplicated per axis. Registry reasons record the parsed registry
// host, tag reasons the effective tag, and image reasons the raw image
// string exactly as written in the manifest.
type RejectionReasons struct {
	RegistriesNotAllowed sets.Set[string]
	TagsNotAllowed       sets.Set[string]
	ImagesNotAllowed     sets.Set[string]
}

func newRejectionReasons() RejectionReasons {
	return RejectionReasons{
		RegistriesNotAllowed: sets.New[string](),
		TagsNotAllowed:       sets.New[string](),
		ImagesNotAllowed:     sets.New[string](),
	}
}

// IsEmpty reports whether no axis collected a reason.
func (r RejectionReasons) IsEmpty() bool {
	return r.RegistriesNotAllowed.Len() == 0 &&
		r.TagsNotAllowed.Len() == 0 &&
		r.ImagesNotAllowed.Len() == 0
}

// Message renders the rejection reasons as a single message with up to
// three clauses in the fixed order registries, tags, images. Reasons
// are sorted so the message is stable across runs.
func (r RejectionReasons) Message() string {
	var errors []string
	if r.RegistriesNotAllowed.Len() > 0 {
		errors = append(errors, fmt.Sprintf("registries not allowed: %s", strings.Join(sets.List(r.RegistriesNotAllowed), ", ")))
	}
	if r.TagsNotAllowed.Len() > 0 {
		errors = append(errors, fmt.Sprintf("tags not allowed: %s", strings.Join(sets.List(r.TagsNotAllowed), ", ")))
	}
	if r.ImagesNotAllowed.Len() > 0 {
		errors = append(errors, fmt.Sprintf("images not allowed: %s", strings.Join(sets.List(r.ImagesNotAllowed), ", ")))
	}
	return fmt.Sprintf("not allowed, reported errors: %s", strings.Join(errors, "; "))
}

// Verdict is the admission outcome for a whole workload.
type Verdict struct {
	Allowed bool
	Reasons RejectionReasons
}

// Message returns the rejection message; meaningful only when the
// verdict is not allowed.
func (v Verdict) Message() string {
	return v.Reasons.Message()
}

// ValidatePodSpec discovers the pod spec's images and runs each through
// the matching engine.
func ValidatePodSpec(spec *corev1.PodSpec, pol *policy.Policy) Verdict {
	return ValidateImages(workload.Images(spec), pol)
}

// ValidateImages evaluates a set of raw image strings against the
// policy. Images that fail to parse are skipped entirely: malformed
// references already running in clusters must not block admission.
func ValidateImages(images sets.Set[string], pol *policy.Policy) Verdict {
	reasons := newRejectionReasons()
	for image := range images {
		ref, err := imageref.Parse(image)
		if err != nil {
			logging.V(4).Info("skipping unparseable image", "image", image, "reason", err.Error())
			continue
		}
		verdict := EvaluateImage(ref, pol)
		if !verdict.RegistryOK {
			reasons.RegistriesNotAllowed.Insert(ref.Registry)
		}
		if !verdict.TagOK {
			reasons.TagsNotAllowed.Insert(ref.EffectiveTag())
		}
		if !verdict.ImageOK {
			reasons.ImagesNotAllowed.Insert(ref.Raw)
		}
	}
	return Verdict{
		Allowed: reasons.IsEmpty(),
		Reasons: reasons,
	}
}
