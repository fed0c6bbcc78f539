package notesync

import (
	"crypto/rand"
	"errors"
	"math/big"
	"net/url"
	"strings"

	"github.com/dayzy/notes/models"
)

const shareAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var ErrInvalidShareCode = errors.New("invalid share code")

// GenerateShareCode returns a random code of uppercase letters and digits.
func GenerateShareCode() (string, error) {
	var b strings.Builder
	size := big.NewInt(int64(len(shareAlphabet)))
	for range models.ShareCodeLength {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		b.WriteByte(shareAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// ShareLink builds the link handed out for a publication.
func ShareLink(origin string, code string) string {
	return strings.TrimRight(origin, "/") + "/notes?share=" + code
}

// ParseShareCode reads a share code from a link. The share query parameter
// wins; a "#share=CODE" fragment is accepted as a fallback.
func ParseShareCode(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", ErrInvalidShareCode
	}

	code := u.Query().Get("share")
	if code == "" {
		frag := u.Fragment
		if key, value, ok := strings.Cut(frag, "="); ok && key == "share" {
			code = value
		}
	}

	code = strings.ToUpper(strings.TrimSpace(code))
	if !models.ValidShareCode(code) {
		return "", ErrInvalidShareCode
	}
	return code, nil
}
