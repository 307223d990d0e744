package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusItemDecode(t *testing.T) {
	raw := `[{"video_id":"abcdefghijk","is_live_now":true,"live_status":"LIVE","checked_at":"2024-05-01T12:00:00Z","note":null}]`

	var items []StatusItem
	require.NoError(t, json.Unmarshal([]byte(raw), &items))
	require.Len(t, items, 1)
	assert.True(t, items[0].IsLiveNow)
	assert.Equal(t, "LIVE", Deref(items[0].LiveStatus))
	assert.Nil(t, items[0].Note)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), items[0].CheckedAt.UTC())
	assert.NoError(t, ValidateStatuses(items))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"video ok", VideoItem{VideoID: "abcdefghijk"}.Validate(), ""},
		{"video missing id", VideoItem{}.Validate(), "video_id is required"},
		{"status missing id", StatusItem{CheckedAt: time.Now()}.Validate(), "video_id is required"},
		{"status missing checked_at", StatusItem{VideoID: "abcdefghijk"}.Validate(), "checked_at is required"},
		{"create missing url", VideoCreate{}.Validate(), "watch_url is required"},
		{"batch reports index", ValidateVideos([]VideoItem{{VideoID: "a"}, {}}), "videos[1]"},
		{"status batch reports index", ValidateStatuses([]StatusItem{{}}), "status[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.wantMsg == "" {
				assert.NoError(t, tt.err)
				return
			}
			require.Error(t, tt.err)
			assert.Contains(t, tt.err.Error(), tt.wantMsg)
		})
	}
}

func TestVideoItemOmitsEmptyName(t *testing.T) {
	b, err := json.Marshal(VideoItem{VideoID: "abcdefghijk", Name: StringPtr("")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"video_id":"abcdefghijk"}`, string(b))
}
