package expr

import (
	"testing"

	"github.com/stretchr/testify/require"

	"cbird/pkg/media"
)

func TestParsePathBase(t *testing.T) {
	p, err := ParsePath("path")
	require.NoError(t, err)
	require.Equal(t, "path", p.Name)
	require.Empty(t, p.Namespace)
}

func TestParsePathNamespace(t *testing.T) {
	p, err := ParsePath("exif#Make")
	require.NoError(t, err)
	require.Equal(t, "exif", p.Namespace)
	require.Equal(t, "Make", p.Name)
}

func TestParsePathWithFuncs(t *testing.T) {
	p, err := ParsePath("path#upper#trim")
	require.NoError(t, err)
	require.Len(t, p.Funcs, 2)
}

func TestPathEvalUpper(t *testing.T) {
	p, err := ParsePath("path#upper")
	require.NoError(t, err)
	v := p.Eval(media.Media{Path: "a.jpg"})
	require.Equal(t, "A.JPG", v.Str)
}

func TestPathEvalNamespaceMissing(t *testing.T) {
	p, err := ParsePath("exif#Make")
	require.NoError(t, err)
	v := p.Eval(media.Media{})
	require.True(t, v.Null)
}

func TestPathEvalNamespacePresent(t *testing.T) {
	p, err := ParsePath("exif#Make")
	require.NoError(t, err)
	v := p.Eval(media.Media{Attributes: map[string]string{"exif#Make": "Canon"}})
	require.Equal(t, "Canon", v.asString())
}

func TestCompileEquality(t *testing.T) {
	node, err := Compile("path==a.jpg")
	require.NoError(t, err)
	require.True(t, node(media.Media{Path: "a.jpg"}))
	require.False(t, node(media.Media{Path: "b.jpg"}))
}

func TestCompileNumericComparison(t *testing.T) {
	node, err := Compile("width>=100")
	require.NoError(t, err)
	require.True(t, node(media.Media{Width: 200}))
	require.False(t, node(media.Media{Width: 50}))
}

func TestCompileContains(t *testing.T) {
	node, err := Compile("path~jpg")
	require.NoError(t, err)
	require.True(t, node(media.Media{Path: "photo.jpg"}))
	require.False(t, node(media.Media{Path: "clip.mp4"}))
}

func TestCompileNegation(t *testing.T) {
	node, err := Compile("!path==a.jpg")
	require.NoError(t, err)
	require.False(t, node(media.Media{Path: "a.jpg"}))
	require.True(t, node(media.Media{Path: "b.jpg"}))
}

func TestCompileNullAndEmpty(t *testing.T) {
	nullNode, err := Compile("exif#Make%null")
	require.NoError(t, err)
	require.True(t, nullNode(media.Media{}))

	emptyNode, err := Compile("path%empty")
	require.NoError(t, err)
	require.True(t, emptyNode(media.Media{Path: ""}))
	require.False(t, emptyNode(media.Media{Path: "a.jpg"}))
}

func TestCompileAndOrLeftToRight(t *testing.T) {
	node, err := Compile("width>=100 && height>=100 || path==small.jpg")
	require.NoError(t, err)
	require.True(t, node(media.Media{Width: 200, Height: 200}))
	require.True(t, node(media.Media{Path: "small.jpg"}))
	require.False(t, node(media.Media{Width: 10, Height: 10, Path: "x.jpg"}))
}

func TestCompileRegex(t *testing.T) {
	node, err := Compile(`path:regex^img_\d+\.jpg$`)
	require.NoError(t, err)
	require.True(t, node(media.Media{Path: "img_001.jpg"}))
	require.False(t, node(media.Media{Path: "img_abc.jpg"}))
}

func TestCompileRejectsUnknownOperator(t *testing.T) {
	_, err := Compile("path")
	require.Error(t, err)
}
