// Package sources decides what source artifact a build pulls: either the
// configuration stored for the entity, or one re-derived from the entity's
// source-location annotation.
package sources

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/savaki/catalog-deployer/internal/catalog"
	"github.com/savaki/catalog-deployer/internal/errors"
	"github.com/savaki/catalog-deployer/internal/paramstore"
	"github.com/savaki/catalog-deployer/internal/scm"
)

var (
	reGitHub = regexp.MustCompile(`^https?://(www\.)?github\.com/[\w.-]+/[\w.-]+`)

	// bucket.s3.amazonaws.com, bucket.s3.<region>.amazonaws.com, bucket.s3-<region>.amazonaws.com,
	// bucket.s3.dualstack.<region>.amazonaws.com
	reVirtualHosted = regexp.MustCompile(`^https?://([a-z0-9][a-z0-9.-]*[a-z0-9])\.s3((?:[.-][a-z0-9-]+)*)\.amazonaws\.com(?:/|$)`)

	// s3.amazonaws.com/bucket, s3.<region>.amazonaws.com/bucket, s3-<region>.amazonaws.com/bucket,
	// s3.dualstack.<region>.amazonaws.com/bucket
	rePathStyle = regexp.MustCompile(`^https?://s3((?:[.-][a-z0-9-]+)*)\.amazonaws\.com/([a-z0-9][a-z0-9.-]*[a-z0-9])(?:/|$)`)

	reS3Scheme = regexp.MustCompile(`^s3://[a-z0-9][a-z0-9.-]*[a-z0-9](?:/|$)`)
)

// normalize lower-cases the scheme and host of location, leaving the path as is
func normalize(location string) string {
	scheme, rest, ok := strings.Cut(location, "://")
	if !ok {
		return location
	}
	i := strings.IndexByte(rest, '/')
	if i < 0 {
		i = len(rest)
	}
	return strings.ToLower(scheme) + "://" + strings.ToLower(rest[:i]) + rest[i:]
}

// Classify returns the source type for a bare location. Unrecognised
// locations are SourceTypeNone.
func Classify(location string) paramstore.SourceType {
	location = normalize(location)
	switch {
	case reGitHub.MatchString(location):
		return paramstore.SourceTypeGitHub
	case rePathStyle.MatchString(location), reVirtualHosted.MatchString(location), reS3Scheme.MatchString(location):
		return paramstore.SourceTypeObjectStorage
	default:
		return paramstore.SourceTypeNone
	}
}

// ObjectLocation is a parsed object storage url. Region is empty when the url
// does not name one.
type ObjectLocation struct {
	Bucket string
	Key    string
	Region string
}

// Path returns the location in bucket/key form
func (o ObjectLocation) Path() string {
	return o.Bucket + "/" + o.Key
}

// ParseObjectStorageURL splits an s3:// or https S3 url into bucket, key and region
func ParseObjectStorageURL(location string) (ObjectLocation, error) {
	location = normalize(location)

	u, err := url.Parse(location)
	if err != nil {
		return ObjectLocation{}, fmt.Errorf("invalid object storage url %q: %w", location, err)
	}

	key := strings.TrimPrefix(u.Path, "/")

	switch {
	case u.Scheme == "s3" && reS3Scheme.MatchString(location):
		return ObjectLocation{Bucket: u.Host, Key: key}, nil
	case rePathStyle.MatchString(location):
		m := rePathStyle.FindStringSubmatch(location)
		_, rest, _ := strings.Cut(key, "/")
		return ObjectLocation{Bucket: m[2], Key: rest, Region: region(m[1])}, nil
	case reVirtualHosted.MatchString(location):
		m := reVirtualHosted.FindStringSubmatch(location)
		return ObjectLocation{Bucket: m[1], Key: key, Region: region(m[2])}, nil
	default:
		return ObjectLocation{}, fmt.Errorf("not an object storage url: %s", location)
	}
}

// region extracts the region from the host segments between "s3" and
// "amazonaws.com", e.g. ".us-west-2", "-us-west-2" or ".dualstack.us-west-2"
func region(segments string) string {
	var name string
	for _, part := range strings.Split(strings.TrimLeft(segments, ".-"), ".") {
		if part == "" || part == "dualstack" {
			continue
		}
		name = part
	}
	if name == "external-1" {
		return "us-east-1"
	}
	return name
}

// ObjectStoragePath converts an object storage url into bucket/key form.
// Virtual-hosted and path-style urls for the same object yield the same result.
func ObjectStoragePath(location string) (string, error) {
	loc, err := ParseObjectStorageURL(location)
	if err != nil {
		return "", err
	}
	return loc.Path(), nil
}

// SourceConfigGetter reads stored source configuration
type SourceConfigGetter interface {
	GetSourceConfig(ctx context.Context, ref catalog.Ref) (paramstore.SourceConfig, error)
}

// Resolver resolves the effective source configuration for an entity
type Resolver struct {
	store SourceConfigGetter
}

func New(store SourceConfigGetter) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the stored configuration when it names an explicit source,
// otherwise derives one from the entity's source-location annotation.
func (r *Resolver) Resolve(ctx context.Context, entity catalog.Entity) (paramstore.SourceConfig, error) {
	logger := zerolog.Ctx(ctx)

	stored, err := r.store.GetSourceConfig(ctx, entity.Ref())
	if err != nil {
		return paramstore.SourceConfig{}, fmt.Errorf("failed to get source config for %s: %w", entity.Ref(), err)
	}

	if !stored.UseEntityAssets {
		return stored, nil
	}

	annotation, ok := entity.Annotation(catalog.AnnotationSourceLocation)
	if !ok {
		return paramstore.SourceConfig{}, errors.NewInputError("entity %s uses entity assets but has no %s annotation",
			entity.Ref(), catalog.AnnotationSourceLocation)
	}

	location := scm.StripLocationType(annotation)
	sourceType := Classify(location)

	if sourceType == paramstore.SourceTypeObjectStorage {
		location, err = ObjectStoragePath(location)
		if err != nil {
			return paramstore.SourceConfig{}, err
		}
	}

	if sourceType == paramstore.SourceTypeNone {
		logger.Warn().
			Str("entity_ref", entity.Ref().String()).
			Str("location", location).
			Msg("Unrecognised source location, passing through without a source type")
	}

	return paramstore.SourceConfig{
		UseEntityAssets: true,
		SourceType:      &sourceType,
		SourceLocation:  &location,
		SourceVersion:   stored.SourceVersion,
	}, nil
}
