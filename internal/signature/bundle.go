package signature

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrSnakeDoc/sigdesk/internal/apperr"
	"github.com/MrSnakeDoc/sigdesk/internal/auth"
	"github.com/MrSnakeDoc/sigdesk/internal/datastore"
	"github.com/MrSnakeDoc/sigdesk/internal/domain"
	"github.com/MrSnakeDoc/sigdesk/internal/logger"
	"github.com/MrSnakeDoc/sigdesk/internal/metrics"
	"github.com/MrSnakeDoc/sigdesk/internal/telemetry"
)

// Bundle is a zip of signatures ready to be served.
type Bundle struct {
	Name string
	Data []byte
}

// Fingerprint identifies a bundle: the same query, access scope and corpus
// version always produce the same bundle.
func Fingerprint(query, access string, lastModified time.Time) string {
	sum := sha256.Sum256([]byte(query + "." + access + "." + formatLastModified(lastModified)))
	return hex.EncodeToString(sum[:])
}

// BundleName is the file name served for a fingerprint.
func BundleName(fingerprint string) string {
	return fmt.Sprintf("al_signatures_%s.zip", fingerprint[:7])
}

func formatLastModified(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Download returns the bundle of signatures matching query that u may read.
// Concurrent identical requests build the bundle once.
func (m *Manager) Download(ctx context.Context, u *auth.User, query string) (*Bundle, error) {
	ctx, span := telemetry.Tracer("signature").Start(ctx, "Download")
	defer span.End()

	if strings.TrimSpace(query) == "" {
		query = m.cfg.DefaultQuery
	}
	if _, err := datastore.Parse(query); err != nil {
		return nil, apperr.Errorf(apperr.ErrEmptyInput, "Invalid query %q: %v", query, err)
	}

	lastModified, err := m.LastModified(ctx, "")
	if err != nil {
		return nil, err
	}
	fp := Fingerprint(query, u.Access, lastModified)
	name := BundleName(fp)
	span.SetAttributes(attribute.String("bundle.name", name), attribute.String("bundle.query", query))

	blob, err := m.bundles.GetOrCompute(ctx, fp, name, m.cfg.CacheTTL, func(ctx context.Context) ([]byte, error) {
		return m.build(ctx, query, u.Access, lastModified)
	})
	if err != nil {
		return nil, err
	}
	return &Bundle{Name: name, Data: blob}, nil
}

// build zips the matching signatures, one entry per {type}/{source}, rules
// in ascending order and separated by a blank line.
func (m *Manager) build(ctx context.Context, query, access string, lastModified time.Time) ([]byte, error) {
	ctx, span := telemetry.Tracer("signature").Start(ctx, "BuildBundle")
	defer span.End()

	var sigs []*domain.Signature
	for sig, err := range m.stores.Signatures.Stream(ctx, query, access) {
		if err != nil {
			metrics.BundleBuilds.WithLabelValues("error").Inc()
			return nil, err
		}
		sigs = append(sigs, sig)
	}
	slices.SortStableFunc(sigs, func(a, b *domain.Signature) int { return a.Order - b.Order })

	var paths []string
	groups := make(map[string][]string)
	for _, sig := range sigs {
		p := sig.BundlePath()
		if _, ok := groups[p]; !ok {
			paths = append(paths, p)
		}
		groups[p] = append(groups[p], sig.Data)
	}

	blob, err := writeZip(paths, groups, lastModified)
	if err != nil {
		metrics.BundleBuilds.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.BundleBuilds.WithLabelValues("ok").Inc()
	span.SetAttributes(attribute.Int("bundle.signatures", len(sigs)), attribute.Int("bundle.entries", len(paths)))
	m.log.Info("signature bundle built",
		logger.String("query", query),
		logger.Int("signatures", len(sigs)),
		logger.Int("entries", len(paths)),
		logger.Int("bytes", len(blob)))
	return blob, nil
}

func writeZip(paths []string, groups map[string][]string, modified time.Time) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range paths {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: p, Method: zip.Deflate, Modified: modified})
		if err != nil {
			return nil, fmt.Errorf("zip entry %s: %w", p, err)
		}
		if _, err := w.Write([]byte(strings.Join(groups[p], "\n\n"))); err != nil {
			return nil, fmt.Errorf("zip entry %s: %w", p, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip close: %w", err)
	}
	return buf.Bytes(), nil
}
