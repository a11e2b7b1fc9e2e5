package engine

import (
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

var ErrInvalidBranding = errors.New("invalid branding")

const (
	MaxLogos          = 8
	MaxLogoBytes      = 2 << 20
	MaxTitleLen       = 200
	MaxDescriptionLen = 2000
)

// Branding is the optional presentation metadata shown above a draw.
// Logos are data URLs ("data:image/png;base64,...") in display order.
type Branding struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Logos       []string `json:"logos"`
}

func (b Branding) Clone() Branding {
	b.Logos = slices.Clone(b.Logos)
	return b
}

func (b Branding) Validate() error {
	if utf8.RuneCountInString(b.Title) > MaxTitleLen {
		return fmt.Errorf("%w: title longer than %d characters", ErrInvalidBranding, MaxTitleLen)
	}
	if utf8.RuneCountInString(b.Description) > MaxDescriptionLen {
		return fmt.Errorf("%w: description longer than %d characters", ErrInvalidBranding, MaxDescriptionLen)
	}
	if len(b.Logos) > MaxLogos {
		return fmt.Errorf("%w: at most %d logos", ErrInvalidBranding, MaxLogos)
	}
	for i, logo := range b.Logos {
		if err := validateLogo(logo); err != nil {
			return fmt.Errorf("%w: logo %d: %v", ErrInvalidBranding, i, err)
		}
	}
	return nil
}

// LogoDataURL encodes raw image bytes the way logos are stored.
func LogoDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func validateLogo(logo string) error {
	header, payload, ok := strings.Cut(logo, ",")
	if !ok || !strings.HasPrefix(header, "data:image/") || !strings.HasSuffix(header, ";base64") {
		return errors.New("not a base64 image data URL")
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return fmt.Errorf("bad base64 payload: %v", err)
	}
	if len(raw) == 0 {
		return errors.New("empty image")
	}
	if len(raw) > MaxLogoBytes {
		return fmt.Errorf("image larger than %d bytes", MaxLogoBytes)
	}
	return nil
}
