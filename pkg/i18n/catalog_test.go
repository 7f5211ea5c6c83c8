package i18n

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestBundleResolvesLocale(t *testing.T) {
	catalog, err := Default("en")
	require.NoError(t, err)

	cases := map[string]language.Tag{
		"":               language.English,
		"de":             language.German,
		"de_AT":          language.German,
		"en-GB":          language.English,
		"fr":             language.English,
		"??":             language.English,
		"fr-FR,de;q=0.8": language.German,
	}
	for locale, want := range cases {
		b, err := catalog.Bundle(context.Background(), locale)
		require.NoError(t, err)
		assert.Equal(t, want, b.Tag(), "locale %q", locale)
	}
}

func TestDefaultLocaleFallback(t *testing.T) {
	catalog, err := Default("de")
	require.NoError(t, err)
	b, err := catalog.Bundle(context.Background(), "fr")
	require.NoError(t, err)
	assert.Equal(t, language.German, b.Tag())
}

func TestBundleFormatting(t *testing.T) {
	catalog, err := Default("en")
	require.NoError(t, err)
	ctx := context.Background()

	en, err := catalog.Bundle(ctx, "en")
	require.NoError(t, err)
	assert.Equal(t, "66.7", en.Number(200.0/3))
	assert.Equal(t, "2", en.Number(2))
	assert.Equal(t, "12.5\u2009pts", en.Points(12.5))
	assert.Equal(t, "March 1, 2024", en.Date(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))

	de, err := catalog.Bundle(ctx, "de")
	require.NoError(t, err)
	assert.Equal(t, "66,7", de.Number(200.0/3))
	assert.Equal(t, "12,5\u2009Pkte.", de.Points(12.5))
	assert.Equal(t, "1.3.2024", de.Date(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
}

func TestBundleMessages(t *testing.T) {
	catalog, err := Default("en")
	require.NoError(t, err)
	de, err := catalog.Bundle(context.Background(), "de")
	require.NoError(t, err)

	assert.Contains(t, de.Message("goal_likely"), "Nur weiter so")
	assert.Equal(t, "missing_key", de.Message("missing_key"))
}

func TestBundleHonoursCancellation(t *testing.T) {
	catalog, err := Default("en")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = catalog.Bundle(ctx, "en")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewCatalogRequiresLocales(t *testing.T) {
	_, err := NewCatalog("en")
	assert.Error(t, err)
}
