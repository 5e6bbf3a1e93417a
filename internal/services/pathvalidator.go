package services

import (
	"regexp"
	"slices"
	"strings"

	"github.com/Lllllllleong/datasegmentationflow/internal/models"
)

// PathValidator turns a scheme://bucket/key string into an ObjectRef.
// It performs no I/O.
type PathValidator struct {
	schemes       []string
	bucketPattern *regexp.Regexp
}

// NewPathValidator builds a validator accepting only the given schemes and
// buckets matching bucketPattern.
func NewPathValidator(schemes []string, bucketPattern *regexp.Regexp) *PathValidator {
	return &PathValidator{
		schemes:       slices.Clone(schemes),
		bucketPattern: bucketPattern,
	}
}

// Parse validates raw and returns the reference it names.
func (v *PathValidator) Parse(raw string) (models.ObjectRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.ObjectRef{}, errValidation("object path is required")
	}

	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok || scheme == "" {
		return models.ObjectRef{}, errValidation("object path %q must have the form scheme://bucket/key", raw)
	}
	if !slices.Contains(v.schemes, scheme) {
		return models.ObjectRef{}, errValidation("object path must start with one of %s", v.schemePrefixes())
	}

	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return models.ObjectRef{}, errValidation("object path %q must name both a bucket and a key", raw)
	}
	if v.bucketPattern != nil && !v.bucketPattern.MatchString(bucket) {
		return models.ObjectRef{}, errValidation("bucket %q is not in the allowed bucket list", bucket)
	}

	return models.ObjectRef{Scheme: scheme, Bucket: bucket, Key: key}, nil
}

func (v *PathValidator) schemePrefixes() string {
	prefixes := make([]string, 0, len(v.schemes))
	for _, s := range v.schemes {
		prefixes = append(prefixes, "'"+s+"://'")
	}
	return strings.Join(prefixes, ", ")
}
