package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/imageguard/imageguard/pkg/imageref"
	"github.com/imageguard/imageguard/pkg/policy"
)

func compile(t *testing.T, settings policy.Settings) *policy.Policy {
	t.Helper()
	compiled, err := policy.Compile(settings)
	assert.NoError(t, err)
	return compiled
}

type expected struct {
	registries []string
	tags       []string
	images     []string
}

func checkVerdict(t *testing.T, verdict Verdict, want expected) {
	t.Helper()
	allowed := len(want.registries) == 0 && len(want.tags) == 0 && len(want.images) == 0
	assert.Equal(t, allowed, verdict.Allowed)
	assert.Equal(t, want.registries, emptyAsNil(sets.List(verdict.Reasons.RegistriesNotAllowed)))
	assert.Equal(t, want.tags, emptyAsNil(sets.List(verdict.Reasons.TagsNotAllowed)))
	assert.Equal(t, want.images, emptyAsNil(sets.List(verdict.Reasons.ImagesNotAllowed)))
}

func emptyAsNil(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

func Test_ValidateImages_rejectedTags(t *testing.T) {
	settings := policy.Settings{
		Tags: &policy.TagRules{Reject: []string{"latest"}},
	}
	tests := []struct {
		name   string
		images []string
		want   expected
	}{{
		name:   "implicit latest is blocked",
		images: []string{"busybox"},
		want:   expected{tags: []string{"latest"}},
	}, {
		name:   "tag part of reject list",
		images: []string{"busybox:latest"},
		want:   expected{tags: []string{"latest"}},
	}, {
		name:   "tag not part of reject list",
		images: []string{"busybox:1.0.0"},
		want:   expected{},
	}, {
		name:   "bare digest resolves to latest on the tag axis",
		images: []string{"busybox@sha256:82dfd9ac433eacb5f89e5bf2601659bbc78893c1a9e3e830c5ef4eb489fde079"},
		want:   expected{tags: []string{"latest"}},
	}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := ValidateImages(sets.New(tt.images...), compile(t, settings))
			checkVerdict(t, verdict, tt.want)
		})
	}
}

func Test_ValidateImages_registryReject(t *testing.T) {
	tests := []struct {
		name   string
		images []string
		reject []string
		want   expected
	}{{
		name:   "image from registry part of the reject list",
		images: []string{"busybox:1.0.0", "ghcr.io/acme/api-server:1.0.0"},
		reject: []string{"docker.io", "ghcr.io"},
		want:   expected{registries: []string{"docker.io", "ghcr.io"}},
	}, {
		name:   "image from registry not part of the reject list",
		images: []string{"ghcr.io/acme/api-server:1.0.0"},
		reject: []string{"docker.io"},
		want:   expected{},
	}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := policy.Settings{
				Registries: &policy.RegistryRules{Reject: tt.reject},
			}
			verdict := ValidateImages(sets.New(tt.images...), compile(t, settings))
			checkVerdict(t, verdict, tt.want)
		})
	}
}

func Test_ValidateImages_registryAllow(t *testing.T) {
	tests := []struct {
		name   string
		images []string
		allow  []string
		want   expected
	}{{
		name:   "image from registry not part of the allow list",
		images: []string{"busybox:1.0.0", "docker.io/alpine:1.0.0", "ghcr.io/acme/api-server:1.0.0"},
		allow:  []string{"ghcr.io"},
		want:   expected{registries: []string{"docker.io"}},
	}, {
		name:   "image from registry part of the allow list",
		images: []string{"busybox:1.0.0", "docker.io/alpine:1.0.0", "ghcr.io/acme/api-server:1.0.0"},
		allow:  []string{"ghcr.io", "docker.io"},
		want:   expected{},
	}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := policy.Settings{
				Registries: &policy.RegistryRules{Allow: tt.allow},
			}
			verdict := ValidateImages(sets.New(tt.images...), compile(t, settings))
			checkVerdict(t, verdict, tt.want)
		})
	}
}

func Test_ValidateImages_imageAllow(t *testing.T) {
	tests := []struct {
		name   string
		images []string
		allow  []string
		want   expected
	}{{
		name: "image not part of the allow list",
		images: []string{
			"busybox:1.0.0",
			"docker.io/alpine:1.0.0",
			"ghcr.io/acme/api-server:1.0.0",
			"quay.io/bitnami/redis:6.0@sha256:82dfd9ac433eacb5f89e5bf2601659bbc78893c1a9e3e830c5ef4eb489fde079",
			"quay.io/coreos/etcd:v3.4.12",
		},
		allow: []string{
			"ghcr.io/acme/api-server:1.0.0",
			"quay.io/bitnami/redis:6.0@sha256:82dfd9ac433eacb5f89e5bf2601659bbc78893c1a9e3e830c5ef4eb489fde079",
			"quay.io/coreos/etcd:v3.4.12@sha256:7ed2739c96eb16de3d7169e2a0aa4ccf3a1f44af24f2bb6cad826935a51bcb3d",
		},
		want: expected{images: []string{
			"busybox:1.0.0",
			"docker.io/alpine:1.0.0",
			"quay.io/coreos/etcd:v3.4.12",
		}},
	}, {
		name: "image part of the allow list",
		images: []string{
			"ghcr.io/acme/api-server:1.0.0",
			"quay.io/bitnami/redis:6.0@sha256:82dfd9ac433eacb5f89e5bf2601659bbc78893c1a9e3e830c5ef4eb489fde079",
		},
		allow: []string{
			"ghcr.io/acme/api-server:1.0.0",
			"quay.io/bitnami/redis:6.0@sha256:82dfd9ac433eacb5f89e5bf2601659bbc78893c1a9e3e830c5ef4eb489fde079",
			"quay.io/coreos/etcd:v3.4.12@sha256:7ed2739c96eb16de3d7169e2a0aa4ccf3a1f44af24f2bb6cad826935a51bcb3d",
		},
		want: expected{},
	}, {
		name:   "image from docker.io with any tag part of the allow list",
		images: []string{"nginx:1.21", "docker.io/library/nginx:1.21"},
		allow:  []string{"nginx"},
		want:   expected{},
	}, {
		name:   "image with any tag part of the allow list",
		images: []string{"quay.io/coreos/etcd:v3.4.12"},
		allow:  []string{"quay.io/coreos/etcd"},
		want:   expected{},
	}, {
		name:   "image with implicit tag latest part of the allow list",
		images: []string{"nginx", "quay.io/coreos/etcd"},
		allow:  []string{"nginx", "quay.io/coreos/etcd"},
		want:   expected{},
	}, {
		name:   "image with implicit tag latest not part of the allow list",
		images: []string{"coreos/etcd", "coreos/etcd:v3.4.12"},
		allow:  []string{"quay.io/coreos/etcd"},
		want:   expected{images: []string{"coreos/etcd", "coreos/etcd:v3.4.12"}},
	}, {
		name:   "image from an ipv6 registry with any tag part of the allow list",
		images: []string{"[::1]:5000/app:1.0.0"},
		allow:  []string{"[::1]:5000/app"},
		want:   expected{},
	}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := policy.Settings{
				Images: &policy.ImageRules{Allow: tt.allow},
			}
			verdict := ValidateImages(sets.New(tt.images...), compile(t, settings))
			checkVerdict(t, verdict, tt.want)
		})
	}
}

func Test_ValidateImages_imageReject(t *testing.T) {
	tests := []struct {
		name   string
		images []string
		reject []string
		want   expected
	}{{
		name: "only images part of the reject list are rejected",
		images: []string{
			"busybox:1.0.0",
			"docker.io/alpine:1.0.0",
			"ghcr.io/acme/api-server:1.0.0",
			"quay.io/bitnami/redis:6.0@sha256:82dfd9ac433eacb5f89e5bf2601659bbc78893c1a9e3e830c5ef4eb489fde079",
			"quay.io/coreos/etcd:v3.4.12",
		},
		reject: []string{
			"ghcr.io/acme/api-server:1.0.0",
			"quay.io/bitnami/redis:6.0@sha256:82dfd9ac433eacb5f89e5bf2601659bbc78893c1a9e3e830c5ef4eb489fde079",
			"quay.io/coreos/etcd:v3.4.12@sha256:7ed2739c96eb16de3d7169e2a0aa4ccf3a1f44af24f2bb6cad826935a51bcb3d",
		},
		want: expected{images: []string{
			"ghcr.io/acme/api-server:1.0.0",
			"quay.io/bitnami/redis:6.0@sha256:82dfd9ac433eacb5f89e5bf2601659bbc78893c1a9e3e830c5ef4eb489fde079",
		}},
	}, {
		name:   "image from docker.io with any tag part of the reject list",
		images: []string{"nginx:1.21", "docker.io/library/nginx:1.21"},
		reject: []string{"nginx"},
		want:   expected{images: []string{"docker.io/library/nginx:1.21", "nginx:1.21"}},
	}, {
		name:   "rejecting a docker.io repository does not affect other registries",
		images: []string{"quay.io/coreos/etcd"},
		reject: []string{"etcd"},
		want:   expected{},
	}, {
		name:   "image with any tag part of the reject list",
		images: []string{"quay.io/coreos/etcd:v3.4.12"},
		reject: []string{"quay.io/coreos/etcd"},
		want:   expected{images: []string{"quay.io/coreos/etcd:v3.4.12"}},
	}, {
		name:   "image with implicit tag latest part of the reject list",
		images: []string{"nginx", "quay.io/coreos/etcd"},
		reject: []string{"nginx", "quay.io/coreos/etcd"},
		want:   expected{images: []string{"nginx", "quay.io/coreos/etcd"}},
	}, {
		name:   "image with implicit tag latest not part of the reject list",
		images: []string{"coreos/etcd", "coreos/etcd:v3.4.12"},
		reject: []string{"quay.io/coreos/etcd"},
		want:   expected{},
	}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := policy.Settings{
				Images: &policy.ImageRules{Reject: tt.reject},
			}
			verdict := ValidateImages(sets.New(tt.images...), compile(t, settings))
			checkVerdict(t, verdict, tt.want)
		})
	}
}

func Test_ValidateImages_combinedSettings(t *testing.T) {
	tests := []struct {
		name     string
		images   []string
		settings policy.Settings
		want     expected
	}{{
		name:     "empty settings allow everything",
		images:   []string{"busybox"},
		settings: policy.Settings{},
		want:     expected{},
	}, {
		name:   "registry allowed but tag rejected",
		images: []string{"busybox"},
		settings: policy.Settings{
			Registries: &policy.RegistryRules{Allow: []string{"docker.io"}},
			Tags:       &policy.TagRules{Reject: []string{"latest"}},
		},
		want: expected{tags: []string{"latest"}},
	}, {
		name:   "registry allowed but image rejected",
		images: []string{"busybox:1.0.0"},
		settings: policy.Settings{
			Registries: &policy.RegistryRules{Allow: []string{"docker.io"}},
			Images:     &policy.ImageRules{Reject: []string{"busybox:1.0.0"}},
		},
		want: expected{images: []string{"busybox:1.0.0"}},
	}, {
		name:   "registry allowed and image not rejected",
		images: []string{"busybox:2.0.0"},
		settings: policy.Settings{
			Registries: &policy.RegistryRules{Allow: []string{"docker.io"}},
			Images:     &policy.ImageRules{Reject: []string{"busybox:1.0.0"}},
		},
		want: expected{},
	}, {
		name:   "registry allow list with mixed workloads",
		images: []string{"busybox", "ghcr.io/org/app:1"},
		settings: policy.Settings{
			Registries: &policy.RegistryRules{Allow: []string{"ghcr.io", "docker.io"}},
		},
		want: expected{},
	}, {
		name:   "one image can fail all three axes at once",
		images: []string{"evil.example.com/malware:latest"},
		settings: policy.Settings{
			Registries: &policy.RegistryRules{Reject: []string{"evil.example.com"}},
			Tags:       &policy.TagRules{Reject: []string{"latest"}},
			Images:     &policy.ImageRules{Reject: []string{"evil.example.com/malware"}},
		},
		want: expected{
			registries: []string{"evil.example.com"},
			tags:       []string{"latest"},
			images:     []string{"evil.example.com/malware:latest"},
		},
	}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := ValidateImages(sets.New(tt.images...), compile(t, tt.settings))
			checkVerdict(t, verdict, tt.want)
		})
	}
}

// malformed workload images are unverifiable and must not block admission
func Test_ValidateImages_malformedImageFailsOpen(t *testing.T) {
	settings := policy.Settings{
		Registries: &policy.RegistryRules{Allow: []string{"ghcr.io"}},
	}
	verdict := ValidateImages(sets.New("x@sha256:abc"), compile(t, settings))
	assert.True(t, verdict.Allowed)
}

func Test_EvaluateImage_idempotent(t *testing.T) {
	compiled := compile(t, policy.Settings{
		Registries: &policy.RegistryRules{Reject: []string{"docker.io"}},
		Tags:       &policy.TagRules{Reject: []string{"latest"}},
		Images:     &policy.ImageRules{Reject: []string{"nginx"}},
	})
	ref, err := imageref.Parse("nginx")
	assert.NoError(t, err)
	first := EvaluateImage(ref, compiled)
	second := EvaluateImage(ref, compiled)
	assert.Equal(t, first, second)
	assert.False(t, first.RegistryOK)
	assert.False(t, first.TagOK)
	assert.False(t, first.ImageOK)
}
