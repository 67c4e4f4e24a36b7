// Package pipeline holds the pure request normalization and response
// post-processing stages wrapped around a vision model call.
package pipeline

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/handwritten-notes/internal/core/domain"
)

const dataURLScheme = "data:"

// Normalize turns either a multipart file or a data URL into the canonical
// (mime type, base64) payload.
func Normalize(src domain.ImageSource) (domain.ImagePayload, error) {
	switch {
	case src.HasFile():
		return normalizeFile(src.File, src.MimeType)
	case strings.TrimSpace(src.DataURL) != "":
		return normalizeDataURL(strings.TrimSpace(src.DataURL))
	default:
		return domain.ImagePayload{}, invalidInput(errors.New("no image provided"))
	}
}

func normalizeFile(data []byte, mimeType string) (domain.ImagePayload, error) {
	mimeType = strings.TrimSpace(mimeType)
	if err := checkImageMime(mimeType); err != nil {
		return domain.ImagePayload{}, err
	}
	if len(data) == 0 {
		return domain.ImagePayload{}, invalidInput(errors.New("image file is empty"))
	}
	if err := checkImageSize(len(data)); err != nil {
		return domain.ImagePayload{}, err
	}
	return domain.ImagePayload{
		MimeType:   mimeType,
		Base64Data: base64.StdEncoding.EncodeToString(data),
	}, nil
}

func normalizeDataURL(raw string) (domain.ImagePayload, error) {
	header, payload, found := strings.Cut(raw, ",")
	if !found {
		return domain.ImagePayload{}, invalidInput(errors.New("malformed data url: missing ','"))
	}
	if !strings.HasPrefix(header, dataURLScheme) {
		return domain.ImagePayload{}, invalidInput(errors.New("malformed data url: missing data: scheme"))
	}

	// data:<mime>;base64
	_, meta, _ := strings.Cut(header, ":")
	mimeType, _, _ := strings.Cut(meta, ";")
	mimeType = strings.TrimSpace(mimeType)
	if err := checkImageMime(mimeType); err != nil {
		return domain.ImagePayload{}, err
	}

	payload = strings.TrimSpace(payload)
	if payload == "" {
		return domain.ImagePayload{}, invalidInput(errors.New("data url carries no image data"))
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return domain.ImagePayload{}, invalidInput(fmt.Errorf("decode base64 payload: %w", err))
	}
	if err := checkImageSize(len(decoded)); err != nil {
		return domain.ImagePayload{}, err
	}

	return domain.ImagePayload{
		MimeType:   mimeType,
		Base64Data: payload,
	}, nil
}

// checkImageMime accepts any image/* type, not only jpeg/png/webp.
func checkImageMime(mimeType string) error {
	if !strings.HasPrefix(strings.ToLower(mimeType), "image/") {
		return invalidInput(fmt.Errorf("unsupported content type %q: an image is required", mimeType))
	}
	return nil
}

func checkImageSize(n int) error {
	if n > domain.MaxImageBytes {
		return invalidInput(fmt.Errorf("image is %d bytes, limit is %d", n, domain.MaxImageBytes))
	}
	return nil
}

func invalidInput(err error) error {
	return domain.WrapError(domain.ErrInvalidInput, "normalize image", err)
}
