package dto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityPattern(t *testing.T) {
	valid := []string{"alice", "0xDEADbeef01", "member-42", "a"}
	for _, id := range valid {
		assert.True(t, identityPattern.MatchString(id), "expected %q to be valid", id)
	}

	invalid := []string{"", "has space", "tab\tchar", "line\nbreak", strings.Repeat("x", 129)}
	for _, id := range invalid {
		assert.False(t, identityPattern.MatchString(id), "expected %q to be rejected", id)
	}
}

func TestTrimStruct(t *testing.T) {
	req := CreateAccountRequest{
		Name:         "  village circle  ",
		Executives:   []string{" alice", "bob ", "  carol  "},
		AccessSecret: " open-sesame ",
	}

	TrimStruct(&req)

	assert.Equal(t, "village circle", req.Name)
	assert.Equal(t, []string{"alice", "bob", "carol"}, req.Executives)
	assert.Equal(t, "open-sesame", req.AccessSecret)
}

func TestTrimStructNonPointer(t *testing.T) {
	req := SessionRequest{Identity: " alice "}

	// Passing by value must be a no-op, not a panic.
	TrimStruct(req)

	assert.Equal(t, " alice ", req.Identity)
}

func TestFormatAccountNo(t *testing.T) {
	assert.Equal(t, "00007", FormatAccountNo(7))
	assert.Equal(t, "00123", FormatAccountNo(123))
	assert.Equal(t, "123456", FormatAccountNo(123456))
}
