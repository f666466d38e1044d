// Package engine evaluates parsed image references against a compiled
// policy and folds the per-image results into a single verdict.
package engine

import (
	"fmt"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/imageguard/imageguard/pkg/imageref"
	"github.com/imageguard/imageguard/pkg/policy"
)

// ImageVerdict is the per-axis outcome for a single image reference.
type ImageVerdict struct {
	RegistryOK bool
	TagOK      bool
	ImageOK    bool
}

// EvaluateImage checks one reference against the policy on all three
// axes. Axes are independent; a single image can fail all of them at
// once.
func EvaluateImage(ref imageref.ImageReference, pol *policy.Policy) ImageVerdict {
	return ImageVerdict{
		RegistryOK: registryAllowed(ref, pol),
		TagOK:      tagAllowed(ref, pol),
		ImageOK:    imageAllowed(ref, pol),
	}
}

func registryAllowed(ref imageref.ImageReference, pol *policy.Policy) bool {
	if pol.RegistryAllow.Len() == 0 && pol.RegistryReject.Len() == 0 {
		return true
	}
	// the reject branch is checked first; settings validation prevents
	// both lists from being populated at once
	if pol.RegistryReject.Len() > 0 {
		return !pol.RegistryReject.Has(ref.Registry)
	}
	return pol.RegistryAllow.Has(ref.Registry)
}

func tagAllowed(ref imageref.ImageReference, pol *policy.Policy) bool {
	if pol.TagReject.Len() == 0 {
		return true
	}
	return !pol.TagReject.Has(ref.EffectiveTag())
}

func imageAllowed(ref imageref.ImageReference, pol *policy.Policy) bool {
	if pol.ImageAllow.Len() == 0 && pol.ImageReject.Len() == 0 {
		return true
	}
	if pol.ImageReject.Len() > 0 {
		return !imageMatches(ref, pol.ImageReject)
	}
	return imageMatches(ref, pol.ImageAllow)
}

// imageMatches reports whether ref matches the set at any of the three
// levels of specificity: exact canonical form, repository re-parsed as
// a bare reference, or registry plus repository re-parsed. The loose
// levels let an entry like `nginx` match `nginx:1.21` and
// `docker.io/library/nginx:1.21`, and an entry like
// `quay.io/coreos/etcd` match any tag or digest of that repository.
func imageMatches(ref imageref.ImageReference, set sets.Set[string]) bool {
	if set.Has(ref.Canonical()) {
		return true
	}
	if bare, err := imageref.Parse(ref.Repository); err == nil && set.Has(bare.Canonical()) {
		return true
	}
	scoped, err := imageref.Parse(fmt.Sprintf("%s/%s", ref.Registry, ref.Repository))
	return err == nil && set.Has(scoped.Canonical())
}
