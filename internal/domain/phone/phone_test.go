package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		valid bool
	}{
		{name: "canonical", input: "01712345678", want: "01712345678", valid: true},
		{name: "country code with plus", input: "+8801712345678", want: "01712345678", valid: true},
		{name: "country code without plus", input: "8801712345678", want: "01712345678", valid: true},
		{name: "missing leading zero", input: "1712345678", want: "01712345678", valid: true},
		{name: "dashes", input: "017-1234-5678", want: "01712345678", valid: true},
		{name: "spaces and parens", input: "(017) 1234 5678", want: "01712345678", valid: true},
		{name: "long garbage keeps last 11", input: "99901712345678", want: "01712345678", valid: true},
		{name: "nine digit garbage", input: "123456789", want: "123456789", valid: false},
		{name: "landline", input: "0212345678", want: "0212345678", valid: false},
		{name: "eleven digits wrong prefix", input: "02712345678", want: "02712345678", valid: false},
		{name: "empty", input: "", want: "", valid: false},
		{name: "letters only", input: "call me", want: "", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.valid, Valid(got))

			parsed, ok := Parse(tt.input)
			assert.Equal(t, tt.want, parsed)
			assert.Equal(t, tt.valid, ok)
		})
	}
}

func TestValid_RejectsNonDigits(t *testing.T) {
	assert.False(t, Valid("01712-45678"))
	assert.False(t, Valid("0171234567a"))
}
