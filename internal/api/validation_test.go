package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRelpath(t *testing.T) {
	cases := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"simple file", "hello.txt", false},
		{"nested path", "dir/sub/hello.txt", false},
		{"empty", "", true},
		{"dot dot segment", "../escape.txt", true},
		{"dot dot nested", "dir/../../escape.txt", true},
		{"absolute path", "/etc/passwd", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateRelpath(tc.path)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateDirectoryArchiveName(t *testing.T) {
	assert.NoError(t, validateDirectoryArchiveName("project.tar.gz"))
	assert.NoError(t, validateDirectoryArchiveName("project.tgz"))
	assert.NoError(t, validateDirectoryArchiveName("project.tar"))
	assert.Error(t, validateDirectoryArchiveName("project.zip"))
	assert.Error(t, validateDirectoryArchiveName("project.txt"))
}
