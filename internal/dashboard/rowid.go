package dashboard

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nwchenyw/tw-live-frontend/internal/errors"
)

// RowID identifies a row by the video it shows and its position in the
// registration list at reconcile time. The index keeps rows unique when the
// same video is listed twice.
type RowID struct {
	VideoID string
	Index   int
}

// String renders "<videoID>-<index>". Video IDs may contain '-', so the index
// is always the last segment.
func (r RowID) String() string {
	return r.VideoID + "-" + strconv.Itoa(r.Index)
}

// ParseRowID reverses String by splitting on the last '-'.
func ParseRowID(s string) (RowID, error) {
	i := strings.LastIndexByte(s, '-')
	if i <= 0 || i == len(s)-1 {
		return RowID{}, errors.NewValidationError(fmt.Sprintf("invalid row id %q", s))
	}
	idx, err := strconv.Atoi(s[i+1:])
	if err != nil || idx < 0 || strings.HasPrefix(s[i+1:], "+") {
		return RowID{}, errors.NewValidationError(fmt.Sprintf("invalid row id %q", s))
	}
	return RowID{VideoID: s[:i], Index: idx}, nil
}
