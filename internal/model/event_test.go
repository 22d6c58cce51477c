package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameEvent(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    StreamEvent
		wantOK  bool
	}{
		{"content", `{"content":"Hi"}`, ContentEvent("Hi"), true},
		{"empty content", `{"content":""}`, ContentEvent(""), true},
		{"end", `{"end":true,"conversation_id":"c1"}`, EndEvent("c1"), true},
		{"error", `{"error":"downstream failure"}`, ErrorEvent("downstream failure"), true},
		{"error wins", `{"error":"boom","end":true,"conversation_id":"c1"}`, ErrorEvent("boom"), true},
		{"end false", `{"end":false}`, StreamEvent{}, false},
		{"unknown", `{"status":"typing"}`, StreamEvent{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f Frame
			require.NoError(t, json.Unmarshal([]byte(tt.payload), &f))

			got, ok := f.Event()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFrameOfRoundTrips(t *testing.T) {
	for _, ev := range []StreamEvent{ContentEvent(""), ContentEvent("x"), EndEvent("c9"), ErrorEvent("e")} {
		got, ok := FrameOf(ev).Event()
		require.True(t, ok)
		assert.Equal(t, ev, got)
	}
}

func TestTerminal(t *testing.T) {
	assert.False(t, ContentEvent("a").Terminal())
	assert.True(t, EndEvent("c").Terminal())
	assert.True(t, ErrorEvent("e").Terminal())
}
