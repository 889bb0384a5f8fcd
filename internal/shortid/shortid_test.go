package shortid

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name   string
		fullID string
		want   string
	}{
		{name: "zero prefix", fullID: "000063-0000-0000-0000-000000000000", want: "99"},
		{name: "canonical uuid", fullID: "11111111-1111-1111-1111-111111111111", want: "1118481"},
		{name: "upper case hex", fullID: "ABCDEF12-0000-0000-0000-000000000000", want: "11259375"},
		{name: "dash inside prefix", fullID: "abc-def-0000", want: "11259375"},
		{name: "too short", fullID: "abc", want: ""},
		{name: "non hex", fullID: "zzzzzz-0000", want: ""},
		{name: "empty", fullID: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Encode(tt.fullID))
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		shortID string
		want    string
	}{
		{name: "pads to six", shortID: "99", want: "000063"},
		{name: "max prefix", shortID: "16777215", want: "ffffff"},
		{name: "zero", shortID: "0", want: "000000"},
		{name: "overflow", shortID: "16777216", want: ""},
		{name: "non numeric", shortID: "12a", want: ""},
		{name: "negative", shortID: "-5", want: ""},
		{name: "empty", shortID: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decode(tt.shortID))
		})
	}
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	for i := 0; i < 200; i++ {
		id := uuid.NewString()
		want := strings.ToLower(strings.ReplaceAll(id, "-", ""))[:6]
		assert.Equal(t, want, Decode(Encode(id)), "id %s", id)
	}
}

func TestIsShortForm(t *testing.T) {
	tests := []struct {
		token string
		want  bool
	}{
		{token: "99", want: true},
		{token: "12345678901234", want: true},
		{token: "123456789012345", want: false},
		{token: "11111111-1111-1111-1111-111111111111", want: false},
		{token: "abc123", want: false},
		{token: "", want: false},
		{token: "12 3", want: false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsShortForm(tt.token), "token %q", tt.token)
	}
}
