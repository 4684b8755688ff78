package ingest

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"docdesk/internal/fileutil"
	"docdesk/internal/logging"
	"docdesk/internal/record"
	"docdesk/internal/services"
)

var pdfSignature = []byte("%PDF-")

// IngestUpload stores an uploaded PDF in the inbox and records it. The name
// must end in .pdf and the content must start with the PDF signature.
func (i *Ingester) IngestUpload(ctx context.Context, name string, r io.Reader) (*record.Record, error) {
	clean, err := SanitizeFilename(name)
	if err != nil {
		return nil, err
	}
	limit := i.cfg.MaxUploadBytes()

	br := bufio.NewReader(r)
	head, err := br.Peek(len(pdfSignature))
	if err != nil || !bytes.Equal(head, pdfSignature) {
		return nil, services.Wrap(services.ErrBadRequest, component, "upload", clean+" is not a PDF", nil)
	}

	file, err := fileutil.CreateUnique(i.layout.StateDir(record.StateInbox), clean, 0o644)
	if err != nil {
		return nil, services.Wrap(services.ErrInternal, component, "upload", "create inbox file", err)
	}
	abs := file.Name()
	discard := func() {
		_ = file.Close()
		_ = os.Remove(abs)
	}

	written, err := io.Copy(file, io.LimitReader(br, limit+1))
	if err != nil {
		discard()
		return nil, services.Wrap(services.ErrBadRequest, component, "upload", "read body", err)
	}
	if written > limit {
		discard()
		return nil, errTooLarge(limit)
	}
	if err := file.Sync(); err != nil {
		discard()
		return nil, services.Wrap(services.ErrInternal, component, "upload", "sync", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(abs)
		return nil, services.Wrap(services.ErrInternal, component, "upload", "close", err)
	}

	rec, err := i.create(ctx, abs, filepath.Base(abs), OriginUpload)
	if err != nil {
		if rmErr := os.Remove(abs); rmErr != nil {
			logging.ErrorWithContext(i.logger, "removing orphaned upload failed",
				"upload_cleanup_failed",
				logging.String("path", abs),
				logging.Error(rmErr),
			)
		}
		return nil, err
	}
	return rec, nil
}

// SanitizeFilename reduces an uploaded name to a safe NFC basename with a
// .pdf extension.
func SanitizeFilename(name string) (string, error) {
	name = norm.NFC.String(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimSpace(filepath.Base(name))
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." || name == "/" || strings.HasPrefix(name, ".") {
		return "", services.Wrap(services.ErrBadRequest, component, "upload", "filename required", nil)
	}
	if !IsPDFName(name) {
		return "", services.Wrap(services.ErrBadRequest, component, "upload", name+" is not a .pdf file", nil)
	}
	return name, nil
}
