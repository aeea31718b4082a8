package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `---
title: First Post
slug: first-post
tags:
  - go
  - web
---

# Hello

Some **bold** text.

## Hello

More text.
`

func TestRenderExtractsFrontmatter(t *testing.T) {
	result, err := New().Render([]byte(sampleDoc))
	require.NoError(t, err)

	assert.Equal(t, "First Post", result.Metadata["title"])
	assert.Equal(t, "first-post", result.Metadata["slug"])
	assert.NotContains(t, string(result.HTML), "title: First Post", "frontmatter must not leak into output")
	assert.Contains(t, string(result.HTML), "<strong>bold</strong>")
}

func TestRenderDeduplicatesHeadingIDs(t *testing.T) {
	result, err := New().Render([]byte(sampleDoc))
	require.NoError(t, err)

	require.Len(t, result.Headings, 2)
	assert.Equal(t, "hello", result.Headings[0].ID)
	assert.Equal(t, "hello-1", result.Headings[1].ID)
	assert.Equal(t, 1, result.Headings[0].Level)
	assert.Equal(t, 2, result.Headings[1].Level)
}

func TestRenderWithoutFrontmatter(t *testing.T) {
	result, err := New().Render([]byte("plain paragraph"))
	require.NoError(t, err)
	assert.Empty(t, result.Metadata)
	assert.Equal(t, "plain paragraph", result.PlainText)
}

func TestMinifyHTMLShrinksMarkup(t *testing.T) {
	raw := []byte("<html>\n  <body>\n    <p>  hello   world  </p>\n  </body>\n</html>\n")
	out, err := New().MinifyHTML(raw)
	require.NoError(t, err)
	assert.Less(t, len(out), len(raw))
	assert.Contains(t, string(out), "hello world")
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "first-post", Slugify("First Post"))
	assert.Equal(t, "a-b-c", Slugify("A_b .C"))
	assert.Equal(t, "section", Slugify("!!!"))
}
