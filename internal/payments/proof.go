package payments

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	pkgerrors "github.com/srrfarms/storefront-api/pkg/errors"
)

var allowedProofTypes = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
}

// Screenshot is the uploaded payment proof.
type Screenshot struct {
	Body     io.Reader
	Filename string
	Size     int64
}

type proofFile struct {
	data        []byte
	contentType string
	ext         string
}

// readProof buffers the screenshot up to maxBytes and sniffs its content type
// from the bytes themselves. The client supplied filename is never trusted.
func readProof(shot Screenshot, maxBytes int64) (*proofFile, error) {
	if shot.Body == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment screenshot is required")
	}
	if shot.Size > maxBytes {
		return nil, tooLarge(maxBytes)
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(shot.Body, maxBytes+1))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "failed to read payment screenshot")
	}
	if n == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment screenshot is empty")
	}
	if n > maxBytes {
		return nil, tooLarge(maxBytes)
	}

	detected := mimetype.Detect(buf.Bytes())
	contentType := strings.ToLower(detected.String())
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	ext, ok := allowedProofTypes[contentType]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment screenshot must be a PNG, JPEG or WebP image").
			WithDetails(map[string]any{"content_type": contentType})
	}
	return &proofFile{data: buf.Bytes(), contentType: contentType, ext: ext}, nil
}

func tooLarge(maxBytes int64) error {
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("payment screenshot exceeds %d MB", maxBytes>>20)).
		WithDetails(map[string]any{"max_bytes": maxBytes})
}

// proofObjectName lays proofs out per user so an admin can browse one buyer's uploads.
func proofObjectName(prefix string, userID uuid.UUID, ext string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = DefaultProofPrefix
	}
	return fmt.Sprintf("%s/%s/%s.%s", prefix, userID, uuid.NewString(), ext)
}
