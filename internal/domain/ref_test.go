package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRef(t *testing.T) {
	cases := []struct {
		in   string
		kind RefKind
		val  string
		id   int64
	}{
		{in: "-1001234567890", kind: RefNumericID, val: "-1001234567890", id: -1001234567890},
		{in: " 42 ", kind: RefNumericID, val: "42", id: 42},
		{in: "@golang_ru", kind: RefHandle, val: "golang_ru"},
		{in: "gophers", kind: RefHandle, val: "gophers"},
		{in: "t.me/gophers", kind: RefLink, val: "gophers"},
		{in: "https://t.me/s/gophers", kind: RefLink, val: "gophers"},
		{in: "https://www.telegram.me/gophers/", kind: RefLink, val: "gophers"},
		{in: "https://t.me/+AbCdEf123456", kind: RefInvite, val: "AbCdEf123456"},
		{in: "t.me/joinchat/AbCdEf123456", kind: RefInvite, val: "AbCdEf123456"},
		{in: "tg://resolve?domain=gophers", kind: RefLink, val: "gophers"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			ref, err := ParseRef(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.kind, ref.Kind)
			assert.Equal(t, tc.val, ref.Value)
			assert.Equal(t, tc.id, ref.ID)
		})
	}
}

func TestParseRef_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "0", "-", "@ab", "https://example.com/gophers", "t.me/", "t.me/+abc", "hello world", "99999999999999999999"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseRef(in)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRef)
			assert.True(t, IsResolutionError(err))
		})
	}
}

func TestRemoteEntityRef_String(t *testing.T) {
	assert.Equal(t, "-100123", RefFromID(-100123).String())
	assert.Equal(t, "@gophers", RemoteEntityRef{Kind: RefHandle, Value: "gophers"}.String())
	assert.Equal(t, "@gophers", RemoteEntityRef{Kind: RefLink, Value: "gophers"}.String())
	assert.Equal(t, "t.me/+AbCdEf123456", RemoteEntityRef{Kind: RefInvite, Value: "AbCdEf123456"}.String())
}
