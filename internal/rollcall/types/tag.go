package types

import (
	"errors"
	"strconv"
	"strings"
)

// MaxTagLen is the longest decimal rendering a tag key may have.
const MaxTagLen = 24

var ErrInvalidTag = errors.New("card_tag must be a decimal serial number of at most 24 digits")

// Tag is the hardware serial number read from a badge.
type Tag uint64

func (t Tag) String() string {
	return strconv.FormatUint(uint64(t), 10)
}

// ParseTag accepts the canonical decimal form. Surrounding whitespace is
// ignored; signs, hex and empty input are rejected.
func ParseTag(s string) (Tag, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > MaxTagLen {
		return 0, ErrInvalidTag
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, ErrInvalidTag
		}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, ErrInvalidTag
	}
	return Tag(n), nil
}
