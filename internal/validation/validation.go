// Package validation checks user input at the edge, before any of it
// reaches an editor session.
package validation

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/sakif/promo-studio/internal/apperror"
	"github.com/sakif/promo-studio/internal/scene"
)

const (
	MaxImageSize      = 5 * 1024 * 1024 // 5 MiB
	MaxFilenameLength = 255

	MaxProductNameLength   = 120
	MaxPriceLength         = 40
	MaxAffiliateLinkLength = 200
)

// AllowedImageTypes are the sniffed content types accepted for upload.
var AllowedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
	"image/gif":  true,
}

// ValidateImageUpload checks an uploaded product image. declaredType is the
// client supplied Content-Type and may be empty; the bytes themselves are
// sniffed and must be one of AllowedImageTypes.
func ValidateImageUpload(filename, declaredType string, data []byte) error {
	if len(data) == 0 {
		return apperror.ValidationFailed("image", "image file is empty")
	}
	if len(data) > MaxImageSize {
		return apperror.ValidationFailed("image",
			fmt.Sprintf("image is larger than %d MiB", MaxImageSize/(1024*1024)))
	}
	if len(filename) > MaxFilenameLength {
		return apperror.ValidationFailed("image", "filename too long - maximum 255 characters")
	}

	if declaredType != "" && !strings.HasPrefix(declaredType, "image/") {
		return apperror.ValidationFailed("image", "only image files are allowed")
	}
	if sniffed := http.DetectContentType(data); !AllowedImageTypes[sniffed] {
		return apperror.ValidationFailed("image", "only PNG, JPEG, WebP and GIF images are allowed")
	}
	return nil
}

// ValidateForm checks the text and color fields of a form update.
func ValidateForm(form scene.FormState) error {
	texts := []struct {
		field string
		value string
		max   int
	}{
		{"productName", form.ProductName, MaxProductNameLength},
		{"productPrice", form.ProductPrice, MaxPriceLength},
		{"originalPrice", form.OriginalPrice, MaxPriceLength},
		{"affiliateLink", form.AffiliateLink, MaxAffiliateLinkLength},
	}
	for _, t := range texts {
		if !utf8.ValidString(t.value) {
			return apperror.ValidationFailed(t.field, t.field+" is not valid UTF-8")
		}
		if utf8.RuneCountInString(t.value) > t.max {
			return apperror.ValidationFailed(t.field,
				fmt.Sprintf("%s must be at most %d characters", t.field, t.max))
		}
	}

	colors := []struct {
		field string
		value string
	}{
		{"backgroundColor", form.BackgroundColor},
		{"primaryColor", form.PrimaryColor},
		{"accentColor", form.AccentColor},
	}
	for _, c := range colors {
		if _, err := scene.ParseHexColor(c.value); err != nil {
			return apperror.ValidationFailed(c.field, c.field+" must be a hex color such as #FF4B91")
		}
	}
	return nil
}
