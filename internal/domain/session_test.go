package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMethod_Valid(t *testing.T) {
	tests := []struct {
		method Method
		want   bool
	}{
		{MethodZip, true},
		{MethodDrive, true},
		{MethodS3, true},
		{Method("ftp"), false},
		{Method(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.method.Valid())
		})
	}
}

func TestMethod_Label(t *testing.T) {
	assert.Equal(t, "ZIP Upload", MethodZip.Label())
	assert.Equal(t, "Google Drive", MethodDrive.Label())
	assert.Equal(t, "S3", MethodS3.Label())
	assert.Equal(t, "other", Method("other").Label())
}

func TestSession_HasMatches(t *testing.T) {
	s := &Session{}
	assert.False(t, s.HasMatches())

	s.Matches = []Match{{Name: "a.jpg"}}
	assert.True(t, s.HasMatches())
}
