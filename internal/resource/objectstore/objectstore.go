// Package objectstore implements the object-store bucket resource backend:
// an S3-compatible bucket with server-side object versioning. Snapshot
// identity is a digest over the manifest of {key -> object-version-id}
// pairs collected from the bucket; the manifest itself is written back to
// the bucket and cached locally. Restoring a snapshot doesn't move any
// bytes — it "activates" the snapshot by writing its hash into a local
// marker that the filesystem view honours when resolving reads.
package objectstore

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/dwspace/dwc/internal/errs"
	"github.com/dwspace/dwc/internal/hashtree"
)

// s3API is the narrow slice of s3iface.S3API this backend needs, small
// enough to fake in tests without pulling in the full client surface.
type s3API interface {
	ListObjectVersionsWithContext(ctx aws.Context, in *s3.ListObjectVersionsInput, opts ...request.Option) (*s3.ListObjectVersionsOutput, error)
	PutObjectWithContext(ctx aws.Context, in *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error)
	GetObjectWithContext(ctx aws.Context, in *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error)
}

const markerFilename = "current-snapshot"

// manifest maps a key (relative to the resource's prefix) to the bucket
// object-version-id that was current when the manifest was built.
type manifest map[string]string

// Adaptor backs one object-store resource.
type Adaptor struct {
	name     string
	bucket   string
	prefix   string
	client   s3API
	cacheDir string
	readOnly bool
}

// New returns an adaptor scoped to bucket/prefix, using client for S3 calls
// and cacheDir for local manifest/marker caching.
func New(name, bucket, prefix string, client s3API, cacheDir string) *Adaptor {
	return &Adaptor{name: name, bucket: bucket, prefix: strings.TrimSuffix(prefix, "/"), client: client, cacheDir: cacheDir}
}

// Name returns the resource's catalogue name.
func (a *Adaptor) Name() string { return a.name }

// SetReadOnly marks the resource as read-only, refusing restores.
func (a *Adaptor) SetReadOnly(ro bool) { a.readOnly = ro }

// PrecheckSnapshot is a no-op: listing object versions cannot fail in a way
// worth pre-validating separately from the listing itself.
func (a *Adaptor) PrecheckSnapshot(_ context.Context) error { return nil }

// Snapshot lists the current object versions under the resource's prefix,
// hashes the resulting manifest, and writes the manifest back to the
// bucket and the local cache.
func (a *Adaptor) Snapshot(ctx context.Context) (string, string, error) {
	m, err := a.currentManifest(ctx)
	if err != nil {
		return "", "", errs.New(errs.ClassBackend, a.name, "snapshot", err)
	}

	hash := manifestHash(m)

	if err := a.writeManifest(ctx, hash, m); err != nil {
		return "", "", errs.New(errs.ClassBackend, a.name, "snapshot", err)
	}

	return hash, hash, nil
}

// PrecheckRestore refuses when read-only, or when no manifest exists for
// hash in the local cache or the bucket.
func (a *Adaptor) PrecheckRestore(ctx context.Context, hash, _ string) error {
	if a.readOnly {
		return errs.New(errs.ClassPrecondition, a.name, "restore-precheck", fmt.Errorf("resource is read-only"))
	}

	if _, err := a.loadManifest(ctx, hash); err != nil {
		return errs.New(errs.ClassPrecondition, a.name, "restore-precheck", fmt.Errorf("no manifest for %s: %w", hash, err))
	}

	return nil
}

// Restore activates hash by writing it into the local current-snapshot
// marker. No bytes move: the filesystem view resolves reads against
// whichever manifest the marker names.
func (a *Adaptor) Restore(_ context.Context, hash, _ string) error {
	if err := os.MkdirAll(a.cacheDir, 0o755); err != nil {
		return errs.New(errs.ClassBackend, a.name, "restore", err)
	}

	if err := os.WriteFile(filepath.Join(a.cacheDir, markerFilename), []byte(hash), 0o644); err != nil {
		return errs.New(errs.ClassBackend, a.name, "restore", err)
	}

	return nil
}

// Diff reports keys whose version id differs between the manifest recorded
// for otherHash and the manifest currently active (the marker, falling
// back to a fresh listing if none is set).
func (a *Adaptor) Diff(ctx context.Context, otherHash string) ([]string, error) {
	current, err := a.activeManifest(ctx)
	if err != nil {
		return nil, errs.New(errs.ClassBackend, a.name, "diff", err)
	}

	other, err := a.loadManifest(ctx, otherHash)
	if err != nil {
		return nil, errs.New(errs.ClassBackend, a.name, "diff", err)
	}

	changed := make(map[string]struct{})

	for k, v := range current {
		if other[k] != v {
			changed[k] = struct{}{}
		}
	}

	for k := range other {
		if _, ok := current[k]; !ok {
			changed[k] = struct{}{}
		}
	}

	paths := make([]string, 0, len(changed))
	for k := range changed {
		paths = append(paths, k)
	}

	sort.Strings(paths)

	return paths, nil
}

// Push is a no-op: object versions land in the bucket as files are
// uploaded out of band, not through dwc, so there is nothing queued
// locally to send.
func (a *Adaptor) Push(_ context.Context) error { return nil }

// Pull is a no-op for the same reason: the bucket already holds truth.
func (a *Adaptor) Pull(_ context.Context) error { return nil }

// Clone downloads every object named in the active manifest into
// targetPath, materialising a local working copy.
func (a *Adaptor) Clone(ctx context.Context, targetPath string) error {
	m, err := a.activeManifest(ctx)
	if err != nil {
		return errs.New(errs.ClassBackend, a.name, "clone", err)
	}

	for key, versionID := range m {
		out, getErr := a.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
			Bucket:    aws.String(a.bucket),
			Key:       aws.String(a.objectKey(key)),
			VersionId: aws.String(versionID),
		})
		if getErr != nil {
			return errs.New(errs.ClassBackend, a.name, "clone", fmt.Errorf("get %s: %w", key, getErr))
		}

		content, readErr := io.ReadAll(out.Body)
		out.Body.Close()

		if readErr != nil {
			return errs.New(errs.ClassBackend, a.name, "clone", fmt.Errorf("read %s: %w", key, readErr))
		}

		full := filepath.Join(targetPath, filepath.FromSlash(key))
		if mkdirErr := os.MkdirAll(filepath.Dir(full), 0o755); mkdirErr != nil {
			return errs.New(errs.ClassBackend, a.name, "clone", mkdirErr)
		}

		if writeErr := os.WriteFile(full, content, 0o644); writeErr != nil {
			return errs.New(errs.ClassBackend, a.name, "clone", writeErr)
		}
	}

	return nil
}

// Ls lists manifest keys under path in the currently active snapshot.
func (a *Adaptor) Ls(ctx context.Context, path string) ([]string, error) {
	m, err := a.activeManifest(ctx)
	if err != nil {
		return nil, errs.New(errs.ClassBackend, a.name, "ls", err)
	}

	prefix := strings.TrimPrefix(strings.TrimSuffix(path, "/")+"/", "/")
	if prefix == "/" {
		prefix = ""
	}

	var keys []string

	for k := range m {
		if prefix == "" || strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}

	sort.Strings(keys)

	return keys, nil
}

// Open returns the content of path as of the currently active snapshot.
func (a *Adaptor) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	m, err := a.activeManifest(ctx)
	if err != nil {
		return nil, errs.New(errs.ClassBackend, a.name, "open", err)
	}

	versionID, ok := m[path]
	if !ok {
		return nil, errs.New(errs.ClassPrecondition, a.name, "open", fmt.Errorf("%s not in active snapshot", path))
	}

	out, err := a.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket:    aws.String(a.bucket),
		Key:       aws.String(a.objectKey(path)),
		VersionId: aws.String(versionID),
	})
	if err != nil {
		return nil, errs.New(errs.ClassBackend, a.name, "open", err)
	}

	return out.Body, nil
}

func (a *Adaptor) objectKey(key string) string {
	if a.prefix == "" {
		return key
	}

	return a.prefix + "/" + key
}

func (a *Adaptor) currentManifest(ctx context.Context) (manifest, error) {
	m := manifest{}

	listPrefix := a.prefix
	if listPrefix != "" {
		listPrefix += "/"
	}

	var keyMarker, versionIDMarker *string

	for {
		out, err := a.client.ListObjectVersionsWithContext(ctx, &s3.ListObjectVersionsInput{
			Bucket:          aws.String(a.bucket),
			Prefix:          aws.String(listPrefix),
			KeyMarker:       keyMarker,
			VersionIdMarker: versionIDMarker,
		})
		if err != nil {
			return nil, fmt.Errorf("list object versions: %w", err)
		}

		for _, v := range out.Versions {
			if v.IsLatest != nil && *v.IsLatest {
				rel := strings.TrimPrefix(aws.StringValue(v.Key), listPrefix)
				m[rel] = aws.StringValue(v.VersionId)
			}
		}

		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}

		keyMarker = out.NextKeyMarker
		versionIDMarker = out.NextVersionIdMarker
	}

	return m, nil
}

func manifestHash(m manifest) string {
	sources := make([]hashtree.Source, 0, len(m))
	for k, v := range m {
		sources = append(sources, hashtree.Source{Relpath: k, Content: []byte(v)})
	}

	return string(hashtree.HashSources(sources))
}

func (a *Adaptor) writeManifest(ctx context.Context, hash string, m manifest) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	var gz bytes.Buffer

	zw := gzip.NewWriter(&gz)
	if _, err := zw.Write(raw); err != nil {
		return fmt.Errorf("compress manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish compressing manifest: %w", err)
	}

	key := a.manifestObjectKey(hash)

	_, err = a.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(gz.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("put manifest: %w", err)
	}

	return a.cacheManifest(hash, raw)
}

func (a *Adaptor) manifestObjectKey(hash string) string {
	return a.objectKey(fmt.Sprintf(".snapshots/%s.json.gz", hash))
}

func (a *Adaptor) cacheManifest(hash string, raw []byte) error {
	dir := filepath.Join(a.cacheDir, "manifests")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create manifest cache: %w", err)
	}

	return os.WriteFile(filepath.Join(dir, hash+".json"), raw, 0o644)
}

// loadManifest reads a manifest from the local cache, falling back to the
// bucket and re-populating the cache on a hit.
func (a *Adaptor) loadManifest(ctx context.Context, hash string) (manifest, error) {
	cached, err := os.ReadFile(filepath.Join(a.cacheDir, "manifests", hash+".json"))
	if err == nil {
		var m manifest
		if unmarshalErr := json.Unmarshal(cached, &m); unmarshalErr != nil {
			return nil, fmt.Errorf("parse cached manifest %s: %w", hash, unmarshalErr)
		}

		return m, nil
	}

	out, err := a.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.manifestObjectKey(hash)),
	})
	if err != nil {
		return nil, fmt.Errorf("get manifest %s: %w", hash, err)
	}
	defer out.Body.Close()

	zr, err := gzip.NewReader(out.Body)
	if err != nil {
		return nil, fmt.Errorf("decompress manifest %s: %w", hash, err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", hash, err)
	}

	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", hash, err)
	}

	_ = a.cacheManifest(hash, raw)

	return m, nil
}

func (a *Adaptor) activeManifest(ctx context.Context) (manifest, error) {
	markerBytes, err := os.ReadFile(filepath.Join(a.cacheDir, markerFilename))
	if err != nil {
		return a.currentManifest(ctx)
	}

	return a.loadManifest(ctx, strings.TrimSpace(string(markerBytes)))
}
