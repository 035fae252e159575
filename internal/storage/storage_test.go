package storage

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/image-converter/internal/model"
)

func TestArtifactName(t *testing.T) {
	assert.Equal(t, "processed-abc.png", ArtifactName(model.RoleProcessed, "abc"))
	assert.Equal(t, "preview-photo.jpg.png", ArtifactName(model.RolePreview, "photo.jpg"))
	assert.Equal(t, "preview-x.png", ArtifactName(model.RolePreview, "../../x"))
}

func TestLocatorRoundTrip(t *testing.T) {
	loc := Locator("upload", "processed-abc.png")
	assert.Equal(t, "/download?imageUrl=upload%2Fprocessed-abc.png", loc)

	name, err := ResolveName(loc)
	require.NoError(t, err)
	assert.Equal(t, "processed-abc.png", name)
}

func TestResolveName_AsSentByBrowser(t *testing.T) {
	// The browser URL-encodes the locator once more; the query string parser
	// undoes that layer before ResolveName sees it.
	loc := Locator("upload", "processed-abc.png")
	q, err := url.ParseQuery("imageUrl=" + url.QueryEscape(loc))
	require.NoError(t, err)

	name, err := ResolveName(q.Get("imageUrl"))
	require.NoError(t, err)
	assert.Equal(t, "processed-abc.png", name)
}

func TestResolveName_Rejects(t *testing.T) {
	for _, loc := range []string{
		"",
		"upload/",
		"..",
		"upload%2F..",
		`..\..`,
		"/download?imageUrl=upload%2F.",
		"upload/processed-x\x00.png",
		"upload%2Fprocessed-x%00.png",
	} {
		_, err := ResolveName(loc)
		assert.ErrorIs(t, err, ErrNotFound, "locator %q", loc)
	}
}

func TestResolveName_TraversalKeepsLastSegment(t *testing.T) {
	name, err := ResolveName("../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, "passwd", name)

	name, err = ResolveName(`..\secret.png`)
	require.NoError(t, err)
	assert.Equal(t, "secret.png", name)
}

func TestResolveName_BadEscapeUsesRawValue(t *testing.T) {
	name, err := ResolveName("upload/processed-%zz.png")
	require.NoError(t, err)
	assert.Equal(t, "processed-%zz.png", name)
}
