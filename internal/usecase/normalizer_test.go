package usecase

import (
	"regexp"
	"testing"
	"time"

	"wrestlenews/internal/domain"
	"wrestlenews/internal/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNormalizer() *Normalizer {
	return NewNormalizer(registry.NewPromotions(nil), func() time.Time { return testNow })
}

func TestNormalizer_Normalize(t *testing.T) {
	n := newTestNormalizer()
	raw := domain.RawPayload{
		GUID:         "wwe-123",
		URL:          "HTTPS://WWW.WWE.COM/news/cody-retains/#comments",
		Title:        "  Cody Rhodes retains   title at WrestleMania ",
		Summary:      "<p>Cody &amp; Roman <b>main evented</b> night two.</p>",
		PublishedRaw: "Sat, 01 Mar 2025 10:30:00 +0000",
		Author:       " Staff ",
		Tags:         []string{"wrestlemania", " ", "cody rhodes", "wrestlemania"},
	}

	a, err := n.Normalize(raw, wweSource)
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{16}$`), a.ID)
	assert.Equal(t, []string{a.ID}, a.Aliases)
	assert.Len(t, a.Fingerprints, 1)
	assert.Equal(t, "Cody Rhodes retains title at WrestleMania", a.Title)
	assert.Equal(t, "Cody & Roman main evented night two.", a.Summary)
	assert.Equal(t, "https://www.wwe.com/news/cody-retains", a.URL)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC), a.PublishedAt)
	assert.Equal(t, testNow, a.IngestedAt)
	assert.Equal(t, domain.CategoryResults, a.Category)
	assert.Equal(t, []domain.Promotion{"WWE"}, a.Promotions)
	assert.Equal(t, "Staff", a.Author)
	assert.Equal(t, []string{"cody rhodes", "wrestlemania"}, a.Tags)
	assert.Equal(t, wweSource.Source, a.Source)
	require.Len(t, a.Sightings, 1)
	assert.Equal(t, "www.wwe.com", a.Sightings[0].SourceKey)
	assert.False(t, a.IsBreaking)
	assert.False(t, a.IsVerified)
}

func TestNormalizer_StableIdentity(t *testing.T) {
	n := newTestNormalizer()
	raw := payload("guid-1", "AEW Dynamite results", testNow.Add(-time.Hour))

	first, err := n.Normalize(raw, fightfulSource)
	require.NoError(t, err)
	second, err := n.Normalize(raw, fightfulSource)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := n.Normalize(raw, wweSource)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID, "identity includes the source")
	assert.Equal(t, first.Fingerprints, other.Fingerprints, "same content yields the same fingerprint")
}

func TestNormalizer_IDFallsBackToFingerprint(t *testing.T) {
	n := newTestNormalizer()
	raw := payload("", "NJPW announces Wrestle Kingdom card", testNow)
	raw.URL = ""

	a, err := n.Normalize(raw, fightfulSource)
	require.NoError(t, err)
	assert.Equal(t, ArticleID("www.fightful.com", "", "", a.Fingerprints[0]), a.ID)
}

func TestNormalizer_Rejects(t *testing.T) {
	n := newTestNormalizer()
	tests := []struct {
		name string
		raw  domain.RawPayload
	}{
		{"missing title", domain.RawPayload{Title: "  <br/> ", PublishedAt: testNow}},
		{"missing publish time", domain.RawPayload{Title: "WWE Raw preview"}},
		{"unparseable publish time", domain.RawPayload{Title: "WWE Raw preview", PublishedRaw: "sometime last week"}},
		{"no promotion", domain.RawPayload{Title: "Local weather report", PublishedAt: testNow}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalize(tt.raw, fightfulSource)
			assert.ErrorIs(t, err, domain.ErrMalformedPayload)
		})
	}
}

func TestNormalizer_Promotions(t *testing.T) {
	n := newTestNormalizer()

	unknown := domain.RawPayload{Title: "Indie show draws a crowd", PublishedAt: testNow, Promotions: []string{"Backyard Federation"}}
	a, err := n.Normalize(unknown, fightfulSource)
	require.NoError(t, err)
	assert.Equal(t, []domain.Promotion{domain.PromotionOther}, a.Promotions)

	mixed := domain.RawPayload{Title: "SmackDown star works indie show", PublishedAt: testNow, Promotions: []string{"Backyard Federation"}}
	a, err = n.Normalize(mixed, fightfulSource)
	require.NoError(t, err)
	assert.Equal(t, []domain.Promotion{"WWE"}, a.Promotions, "Other is dropped next to a real promotion")

	defaults := rumorSource
	defaults.DefaultPromotions = []string{"new japan"}
	a, err = n.Normalize(domain.RawPayload{Title: "Tokyo Dome update", PublishedAt: testNow}, defaults)
	require.NoError(t, err)
	assert.Equal(t, []domain.Promotion{"NJPW"}, a.Promotions)
}

func TestNormalizer_Category(t *testing.T) {
	n := newTestNormalizer()
	hinted := fightfulSource
	hinted.DefaultCategory = domain.CategoryBusiness

	tests := []struct {
		name string
		raw  domain.RawPayload
		src  domain.SourceDescriptor
		want domain.Category
	}{
		{"raw category", domain.RawPayload{Title: "AEW news", Categories: []string{"Rumors"}}, fightfulSource, domain.CategoryRumors},
		{"precedence among raw categories", domain.RawPayload{Title: "AEW news", Categories: []string{"Business", "Injuries"}}, fightfulSource, domain.CategoryInjuries},
		{"title keyword", domain.RawPayload{Title: "Former champion signs with AEW"}, fightfulSource, domain.CategorySignings},
		{"source hint", domain.RawPayload{Title: "AEW quarterly update"}, hinted, domain.CategoryBusiness},
		{"fallback", domain.RawPayload{Title: "AEW quarterly update"}, fightfulSource, domain.CategoryGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.raw.PublishedAt = testNow
			a, err := n.Normalize(tt.raw, tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.Category)
		})
	}
}

func TestFingerprint_RoundsToHour(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 5, 0, 0, time.UTC)
	a := Fingerprint("Breaking: Title Change!", "Body text", base)
	b := Fingerprint("breaking title change", "body   TEXT", base.Add(40*time.Minute))
	c := Fingerprint("breaking title change", "body text", base.Add(time.Hour))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
