// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package media turns images embedded in post content as base64 data
// URIs into stored files, and stores uploaded files. Bytes go to an
// ObjectStore; each file is recorded so it can be listed and cleaned up.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"quillpress/internal/models"
	"quillpress/internal/slug"
)

// MaxFileSize caps a single embedded or uploaded file.
const MaxFileSize = 10 << 20

// ObjectStore holds file bytes. storage.Client and storage.Local
// implement it.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	FileURL(key string) string
}

// Recorder persists media records. store.MediaStore implements it.
type Recorder interface {
	Create(ctx context.Context, m *models.Media) (*models.Media, error)
}

// Processor stores media files for a project. It implements
// blog.MediaProcessor.
type Processor struct {
	objects   ObjectStore
	records   Recorder
	projectID string
}

// NewProcessor creates a processor. records may be nil, in which case
// files are stored but not recorded. projectID is recorded for files
// saved outside a post.
func NewProcessor(objects ObjectStore, records Recorder, projectID string) *Processor {
	return &Processor{objects: objects, records: records, projectID: projectID}
}

// ConvertBase64EmbeddedImagesToFilesWithURLs stores every image embedded
// as a base64 data URI in the post content and points the image at the
// stored file. Images that cannot be decoded are left in place.
func (p *Processor) ConvertBase64EmbeddedImagesToFilesWithURLs(ctx context.Context, mediaPath string, post *models.Post) error {
	if !strings.Contains(post.Content, "data:") {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(post.Content))
	if err != nil {
		return fmt.Errorf("parse post content: %w", err)
	}

	var firstErr error
	changed := false
	doc.Find(`img[src^="data:"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		data, err := decodeDataURI(src)
		if err == nil && (len(data) == 0 || len(data) > MaxFileSize) {
			err = fmt.Errorf("embedded image of %d bytes", len(data))
		}
		if err != nil {
			slog.Warn("skipping embedded image", "post_id", post.ID, "error", err)
			return true
		}

		name, _ := s.Attr("data-filename")
		m, err := p.store(ctx, post.ProjectID, mediaPath, name, data)
		if err != nil {
			firstErr = err
			return false
		}

		s.SetAttr("src", m.URL)
		s.RemoveAttr("data-filename")
		changed = true
		return true
	})
	if firstErr != nil {
		return firstErr
	}
	if !changed {
		return nil
	}

	// goquery wraps fragments in html/body; only the body content is wanted.
	html, err := doc.Find("body").Html()
	if err != nil {
		return fmt.Errorf("render post content: %w", err)
	}
	post.Content = html
	return nil
}

// SaveMedia stores a file under the media path and returns its URL.
func (p *Processor) SaveMedia(ctx context.Context, mediaPath, fileName string, data []byte) (string, error) {
	m, err := p.store(ctx, p.projectID, mediaPath, fileName, data)
	if err != nil {
		return "", err
	}
	return m.URL, nil
}

func (p *Processor) store(ctx context.Context, projectID, mediaPath, originalName string, data []byte) (*models.Media, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("store media: empty file")
	}
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("store media: %d bytes exceeds limit of %d", len(data), MaxFileSize)
	}

	mime := mimetype.Detect(data)
	filename := FileName(originalName, mime.Extension())
	key := strings.TrimPrefix(path.Join(mediaPath, filename), "/")

	if err := p.objects.Upload(ctx, key, mime.String(), bytes.NewReader(data), int64(len(data))); err != nil {
		return nil, err
	}

	m := &models.Media{
		ProjectID:    projectID,
		Filename:     filename,
		OriginalName: originalName,
		ContentType:  mime.String(),
		SizeBytes:    int64(len(data)),
		StorageKey:   key,
		URL:          p.objects.FileURL(key),
	}
	if p.records == nil {
		return m, nil
	}
	recorded, err := p.records.Create(ctx, m)
	if err != nil {
		return nil, err
	}
	return recorded, nil
}

// extAliases maps alternate spellings to the extension mimetype reports.
var extAliases = map[string]string{
	".jpeg": ".jpg",
	".jpe":  ".jpg",
	".tif":  ".tiff",
	".htm":  ".html",
}

// FileName builds a collision-resistant, URL-safe file name from an
// original name. The extension always follows the sniffed content: the
// original extension survives only when it names the same type, or when
// nothing was detected.
func FileName(original, detectedExt string) string {
	base := path.Base(strings.ReplaceAll(original, `\`, "/"))
	ext := strings.ToLower(path.Ext(base))
	if len(ext) > 6 {
		ext = ""
	}
	if alias, ok := extAliases[ext]; ok {
		ext = alias
	}
	if detectedExt != "" && ext != detectedExt {
		ext = detectedExt
	}

	stem := slug.Generate(strings.TrimSuffix(base, path.Ext(base)))
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	if stem == "" {
		return suffix + ext
	}
	return stem + "-" + suffix + ext
}

// decodeDataURI returns the bytes of a base64 image data URI.
func decodeDataURI(uri string) ([]byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("malformed data uri")
	}
	if !strings.HasPrefix(header, "image/") || !strings.HasSuffix(header, ";base64") {
		return nil, fmt.Errorf("unsupported data uri %q", header)
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("decode data uri: %w", err)
	}
	return data, nil
}
