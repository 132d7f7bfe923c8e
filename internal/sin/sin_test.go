package sin

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"raw digits", "046454286", "046-454-286"},
		{"already dashed", "046-454-286", "046-454-286"},
		{"spaced", "046 454 286", "046-454-286"},
		{"mixed noise", " 046.454/286 ", "046-454-286"},
		{"too short", "12345678", ""},
		{"too long", "1234567890", ""},
		{"empty", "", ""},
		{"letters only", "abcdefghi", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Format(tc.in))
		})
	}
}

func TestValidate(t *testing.T) {
	require.True(t, Validate("046454286"))
	require.True(t, Validate("046-454-286"))
	require.True(t, Validate("046 454 286"))

	require.False(t, Validate("123456789"), "fails Luhn")
	require.False(t, Validate(""))
	require.False(t, Validate("04645428"))
	require.False(t, Validate("0464542867"))
	require.False(t, Validate("abc"))
}

func TestValidateKnownChecksums(t *testing.T) {
	// Altering any single digit of a valid SIN must break the checksum.
	valid := "046454286"
	for i := 0; i < len(valid); i++ {
		mutated := []byte(valid)
		mutated[i] = '0' + (mutated[i]-'0'+1)%10
		require.False(t, Validate(string(mutated)), "digit %d mutated", i)
	}
}
