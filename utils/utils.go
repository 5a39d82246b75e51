package utils

import (
	"crypto/md5"
	"sort"
	"strings"

	"github.com/gofrs/uuid"
)

func GenUuidFromStrings(parts ...string) string {
	if len(parts) == 0 {
		parts = append(parts, uuid.Nil.String())
	}

	sorted := make([]string, len(parts))
	copy(sorted, parts)
	sort.Strings(sorted)

	return uuidHash([]byte(strings.Join(sorted, "")))
}

// DeriveId returns the deterministic id of a record keyed by parts.
func DeriveId(parts ...string) uuid.UUID {
	return uuid.Must(uuid.FromString(GenUuidFromStrings(parts...)))
}

// DeriveAddress names an account owned by the program, e.g. the token
// account of a vault asset. The kind prefix keeps address spaces apart.
func DeriveAddress(kind string, parts ...string) string {
	return kind + ":" + GenUuidFromStrings(append([]string{kind}, parts...)...)
}

func uuidHash(b []byte) string {
	h := md5.New()

	h.Write(b)
	sum := h.Sum(nil)
	sum[6] = (sum[6] & 0x0f) | 0x30
	sum[8] = (sum[8] & 0x3f) | 0x80
	return uuid.FromBytesOrNil(sum).String()
}
