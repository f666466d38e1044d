// Package imageref parses container image references and resolves the
// implicit defaults applied by container tooling: the default registry,
// the library namespace for bare names, and the latest tag.
package imageref

import (
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/distribution/distribution/reference"
	"github.com/opencontainers/go-digest"
)

const (
	// DefaultRegistry is the registry assumed when a reference names none.
	DefaultRegistry = "docker.io"

	// DefaultTag is the tag assumed when a reference names none.
	DefaultTag = "latest"
)

// ImageReference is the parsed, immutable form of an image string.
type ImageReference struct {
	// Raw is the reference exactly as written in the manifest.
	Raw string

	// Registry is the registry host, optionally with port, e.g. `docker.io`
	// or `registry.local:5000`.
	Registry string

	// Repository is the repository path, e.g. `library/nginx`.
	Repository string

	// Tag is the tag as written; empty when the raw string carries none.
	Tag string

	// Digest is the `sha256:<64 hex>` content digest, empty when not pinned.
	Digest string
}

// ipv6Placeholder stands in for a bracketed IPv6 host while the rest of
// the reference goes through the normalizing parser, whose grammar does
// not accept such hosts.
const ipv6Placeholder = "ipv6.invalid"

// ipv6HostRegexp matches a bracketed IPv6 registry host with an
// optional port.
var ipv6HostRegexp = regexp.MustCompile(`^\[[0-9a-fA-F:]+\](:[0-9]+)?$`)

// Parse parses raw into an ImageReference, resolving the default registry
// and the `library/` namespace for single-segment repositories. Only
// sha256 digests are accepted. Bracketed IPv6 registry hosts are split
// off before normalization.
func Parse(raw string) (ImageReference, error) {
	if host, remainder, ok := splitIPv6Host(raw); ok {
		ref, err := parse(ipv6Placeholder+"/"+remainder, raw)
		if err != nil {
			return ImageReference{}, err
		}
		ref.Registry = host
		return ref, nil
	}
	return parse(raw, raw)
}

func parse(s, raw string) (ImageReference, error) {
	named, err := reference.ParseNormalizedNamed(s)
	if err != nil {
		return ImageReference{}, fmt.Errorf("bad image reference %q: %w", raw, err)
	}
	ref := ImageReference{
		Raw:        raw,
		Registry:   reference.Domain(named),
		Repository: reference.Path(named),
	}
	if tagged, ok := named.(reference.Tagged); ok {
		ref.Tag = tagged.Tag()
	}
	if digested, ok := named.(reference.Digested); ok {
		dgst := digested.Digest()
		if dgst.Algorithm() != digest.SHA256 {
			return ImageReference{}, fmt.Errorf("bad image reference %q: unsupported digest algorithm %q", raw, dgst.Algorithm())
		}
		ref.Digest = dgst.String()
	}
	return ref, nil
}

// splitIPv6Host splits a leading bracketed IPv6 registry host, with an
// optional port, from the rest of the reference. ok is false when raw
// does not start with one; the caller then parses raw unchanged.
func splitIPv6Host(raw string) (string, string, bool) {
	if !strings.HasPrefix(raw, "[") {
		return "", "", false
	}
	slash := strings.IndexByte(raw, '/')
	if slash < 0 {
		return "", "", false
	}
	host, remainder := raw[:slash], raw[slash+1:]
	if remainder == "" || !ipv6HostRegexp.MatchString(host) {
		return "", "", false
	}
	if net.ParseIP(host[1:strings.IndexByte(host, ']')]) == nil {
		return "", "", false
	}
	return host, remainder, true
}

// EffectiveTag returns the tag a registry would resolve for this
// reference: the tag as written, or `latest` when none was written.
func (r ImageReference) EffectiveTag() string {
	if r.Tag != "" {
		return r.Tag
	}
	return DefaultTag
}

// Canonical returns the fully resolved form used for equality and set
// membership: registry, repository, effective tag and digest. A
// reference pinned only by digest carries no tag in its canonical form.
func (r ImageReference) Canonical() string {
	image := fmt.Sprintf("%s/%s", r.Registry, r.Repository)
	if r.Tag != "" {
		image = fmt.Sprintf("%s:%s", image, r.Tag)
	} else if r.Digest == "" {
		image = fmt.Sprintf("%s:%s", image, DefaultTag)
	}
	if r.Digest != "" {
		image = fmt.Sprintf("%s@%s", image, r.Digest)
	}
	return image
}

func (r ImageReference) String() string {
	return r.Canonical()
}

// tagRegexp is the anchored form of the tag grammar: up to 128 word,
// dot or dash characters, not starting with a separator.
var tagRegexp = regexp.MustCompile(`^[\w][\w.-]{0,127}$`)

// IsTag reports whether s is a syntactically valid image tag.
func IsTag(s string) bool {
	return tagRegexp.MatchString(s)
}
