// Package policy holds the administrator-supplied image admission
// settings and compiles them into a queryable form.
package policy

import (
	"fmt"
	"os"

	"go.uber.org/multierr"
	"k8s.io/apimachinery/pkg/util/sets"
	"sigs.k8s.io/yaml"

	"github.com/imageguard/imageguard/pkg/imageref"
)

// Settings is the wire form of the policy. All sections are optional;
// an empty or missing section imposes no constraint on its axis.
type Settings struct {
	Registries *RegistryRules `json:"registries,omitempty"`
	Tags       *TagRules      `json:"tags,omitempty"`
	Images     *ImageRules    `json:"images,omitempty"`
}

// RegistryRules allows or rejects registry hosts. Allow and reject are
// mutually exclusive.
type RegistryRules struct {
	Allow  []string `json:"allow,omitempty"`
	Reject []string `json:"reject,omitempty"`
}

// TagRules rejects tags. Tags have no allow list.
type TagRules struct {
	Reject []string `json:"reject,omitempty"`
}

// ImageRules allows or rejects images. Allow and reject are mutually
// exclusive. Entries may be full references, repository-only forms
// (`nginx`), or registry plus repository forms (`quay.io/coreos/etcd`).
type ImageRules struct {
	Allow  []string `json:"allow,omitempty"`
	Reject []string `json:"reject,omitempty"`
}

// Policy is the compiled, read-only form of Settings. Image sets are
// keyed by canonical reference so that membership tests compare
// canonical forms, never raw strings.
type Policy struct {
	RegistryAllow  sets.Set[string]
	RegistryReject sets.Set[string]
	TagReject      sets.Set[string]
	ImageAllow     sets.Set[string]
	ImageReject    sets.Set[string]
}

type compileOptions struct {
	strictTags bool
}

// CompileOption customizes Compile.
type CompileOption func(*compileOptions)

// WithStrictTags makes Compile verify that every rejected tag is
// syntactically a valid image tag.
func WithStrictTags() CompileOption {
	return func(o *compileOptions) {
		o.strictTags = true
	}
}

// Compile parses and validates settings. Image entries are parsed
// eagerly; a malformed entry is a settings error, unlike malformed
// workload images which are skipped at evaluation time. All violations
// are collected and returned together.
func Compile(settings Settings, opts ...CompileOption) (*Policy, error) {
	var options compileOptions
	for _, opt := range opts {
		opt(&options)
	}
	policy := &Policy{
		RegistryAllow:  sets.New[string](),
		RegistryReject: sets.New[string](),
		TagReject:      sets.New[string](),
		ImageAllow:     sets.New[string](),
		ImageReject:    sets.New[string](),
	}
	var errs error
	if settings.Registries != nil {
		if len(settings.Registries.Allow) > 0 && len(settings.Registries.Reject) > 0 {
			errs = multierr.Append(errs, fmt.Errorf("registries: allow and reject are mutually exclusive"))
		}
		policy.RegistryAllow.Insert(settings.Registries.Allow...)
		policy.RegistryReject.Insert(settings.Registries.Reject...)
	}
	if settings.Tags != nil {
		for _, tag := range settings.Tags.Reject {
			if options.strictTags && !imageref.IsTag(tag) {
				errs = multierr.Append(errs, fmt.Errorf("tags: %q is not a valid tag", tag))
				continue
			}
			policy.TagReject.Insert(tag)
		}
	}
	if settings.Images != nil {
		if len(settings.Images.Allow) > 0 && len(settings.Images.Reject) > 0 {
			errs = multierr.Append(errs, fmt.Errorf("images: allow and reject are mutually exclusive"))
		}
		compileImageList(settings.Images.Allow, policy.ImageAllow, &errs)
		compileImageList(settings.Images.Reject, policy.ImageReject, &errs)
	}
	if errs != nil {
		return nil, errs
	}
	return policy, nil
}

func compileImageList(entries []string, into sets.Set[string], errs *error) {
	for _, entry := range entries {
		ref, err := imageref.Parse(entry)
		if err != nil {
			*errs = multierr.Append(*errs, fmt.Errorf("images: %w", err))
			continue
		}
		into.Insert(ref.Canonical())
	}
}

// Validate checks settings without retaining the compiled policy.
func (s Settings) Validate(opts ...CompileOption) error {
	_, err := Compile(s, opts...)
	return err
}

// Load reads settings from a JSON or YAML file.
func Load(path string) (Settings, error) {
	var settings Settings
	data, err := os.ReadFile(path)
	if err != nil {
		return settings, err
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("failed to unmarshal settings %s: %w", path, err)
	}
	return settings, nil
}
