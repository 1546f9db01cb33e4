package stream

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboundFrames_JSONShape(t *testing.T) {
	tests := []struct {
		name  string
		frame any
		want  string
	}{
		{"text", NewTextFrame("Bonjour"), `{"text":"Bonjour"}`},
		{"audio", NewAudioFrame([]byte{0, 1, 2}), `{"audio":"AAEC"}`},
		{"media", NewMediaFrame("MZ1", []byte{0xFF}), `{"event":"media","streamSid":"MZ1","media":{"payload":"/w=="}}`},
		{"clear", NewClearFrame("MZ1"), `{"event":"clear","streamSid":"MZ1"}`},
		{"mark", NewMarkFrame("MZ1", "farewell"), `{"event":"mark","streamSid":"MZ1","mark":{"name":"farewell"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.frame)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}
