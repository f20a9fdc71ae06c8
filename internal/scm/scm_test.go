package scm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripLocationType(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "url:https://github.com/acme/demo", want: "https://github.com/acme/demo"},
		{input: "https://github.com/acme/demo", want: "https://github.com/acme/demo"},
		{input: "  url:https://bucket.s3.amazonaws.com/key/ ", want: "https://bucket.s3.amazonaws.com/key/"},
		{input: "file:./catalog-info.yaml", want: "./catalog-info.yaml"},
		{input: "plain", want: "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, StripLocationType(tt.input))
		})
	}
}

func TestParseGitHubURL(t *testing.T) {
	loc, ok := ParseGitHubURL("https://github.com/acme/demo/tree/main/services/api")
	require.True(t, ok)
	assert.Equal(t, GitHubLocation{Host: "github.com", Owner: "acme", Repo: "demo", Ref: "main", Path: "services/api"}, loc)

	loc, ok = ParseGitHubURL("https://github.com/acme/demo.git")
	require.True(t, ok)
	assert.Equal(t, "demo", loc.Repo)
	assert.Empty(t, loc.Ref)

	_, ok = ParseGitHubURL("https://gitlab.com/acme/demo")
	assert.False(t, ok)

	_, ok = ParseGitHubURL("https://github.com/acme")
	assert.False(t, ok)
}

func TestParseGitHubURL_RefWithSlash(t *testing.T) {
	loc, ok := ParseGitHubURL("https://github.com/acme/demo/tree/release%2F1.x/services/api")
	require.True(t, ok)
	assert.Equal(t, "release/1.x", loc.Ref)
	assert.Equal(t, "services/api", loc.Path)

	resolved, err := ResolveURL("buildspec.yml", "https://github.com/acme/demo/tree/release%2F1.x/services/api/")
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/acme/demo/blob/release%2F1.x/services/api/buildspec.yml", resolved)

	again, ok := ParseGitHubURL(resolved)
	require.True(t, ok)
	assert.Equal(t, "release/1.x", again.Ref)
	assert.Equal(t, "services/api/buildspec.yml", again.Path)
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		name     string
		relative string
		base     string
		want     string
	}{
		{
			name:     "github tree without trailing slash",
			relative: "buildspec.yml",
			base:     "https://github.com/acme/demo/tree/main/services/api",
			want:     "https://github.com/acme/demo/blob/main/services/api/buildspec.yml",
		},
		{
			name:     "github repository root",
			relative: "ci/buildspec.yml",
			base:     "https://github.com/acme/demo",
			want:     "https://github.com/acme/demo/blob/HEAD/ci/buildspec.yml",
		},
		{
			name:     "github absolute path from repository root",
			relative: "/buildspec.yml",
			base:     "https://github.com/acme/demo/tree/v1/services/api/",
			want:     "https://github.com/acme/demo/blob/v1/buildspec.yml",
		},
		{
			name:     "github parent directory",
			relative: "../shared/buildspec.yml",
			base:     "https://github.com/acme/demo/tree/main/services/api/",
			want:     "https://github.com/acme/demo/blob/main/services/shared/buildspec.yml",
		},
		{
			name:     "s3 prefix without trailing slash",
			relative: "buildspec.yml",
			base:     "https://bucket-a.s3.us-west-2.amazonaws.com/path/to/src",
			want:     "https://bucket-a.s3.us-west-2.amazonaws.com/path/to/src/buildspec.yml",
		},
		{
			name:     "absolute relative wins",
			relative: "https://example.com/buildspec.yml",
			base:     "https://github.com/acme/demo",
			want:     "https://example.com/buildspec.yml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveURL(tt.relative, tt.base)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveURL_RelativeBase(t *testing.T) {
	_, err := ResolveURL("buildspec.yml", "./relative/dir")
	assert.Error(t, err)
}
