package snippet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestDeriveOptions(t *testing.T) {
	tests := []struct {
		name          string
		send          *bool
		outputWindow  bool
		wantNoHistory bool
	}{
		{name: "output window active, send unset", send: nil, outputWindow: true, wantNoHistory: true},
		{name: "output window active, send false", send: boolPtr(false), outputWindow: true, wantNoHistory: true},
		{name: "output window active, send true", send: boolPtr(true), outputWindow: true},
		{name: "editor active, send unset", send: nil, outputWindow: false},
		{name: "editor active, send false", send: boolPtr(false), outputWindow: false},
		{name: "editor active, send true", send: boolPtr(true), outputWindow: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &Entry{Definition: Definition{Name: "n", Snippet: "s", SendCodeToOutputWindow: tt.send}}
			opts := DeriveOptions(entry, tt.outputWindow)

			assert.Equal(t, tt.send, opts.SendCodeToOutputWindow)
			if tt.wantNoHistory {
				require.NotNil(t, opts.AddToHistory)
				assert.False(t, *opts.AddToHistory)
			} else {
				assert.Nil(t, opts.AddToHistory)
			}
		})
	}
}

func TestDeriveOptions_LiteralCode(t *testing.T) {
	for _, active := range []bool{true, false} {
		opts := DeriveOptions(nil, active)
		assert.Nil(t, opts.SendCodeToOutputWindow)
		assert.Nil(t, opts.AddToHistory)
	}
}
