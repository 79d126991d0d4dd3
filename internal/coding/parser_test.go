package coding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCategories = []string{"Communication", "Decision Making", "Challenges"}

func TestParseCodingsWellFormedResponse(t *testing.T) {
	p := NewParser(ModeLenient, nil)

	response := `Here is my analysis of the segment:

Passage: "The team struggled to align on the release date for weeks."
Category: Decision Making
Rationale: Describes a prolonged decision process.

Passage: "Nobody told the support staff about the outage."
Category: Communication
Rationale: Information did not reach an affected group.`

	got := p.ParseCodings(response, testCategories)
	require.Len(t, got, 2)

	assert.Equal(t, "The team struggled to align on the release date for weeks.", got[0].Passage)
	assert.Equal(t, "Decision Making", got[0].CategoryName)
	assert.Equal(t, "Describes a prolonged decision process.", got[0].Rationale)

	assert.Equal(t, "Communication", got[1].CategoryName)
}

func TestParseCodingsAlternateMarkersAndNumbering(t *testing.T) {
	p := NewParser(ModeLenient, nil)

	response := `Quote 1: "We kept running into the same blocker every sprint."
Code 1: challenges
Reasoning 1: Recurring impediment.

Text Passage 2: "The retro surfaced a new approach to planning."
Category 2: decision
Justification 2: Shows a choice being made.`

	got := p.ParseCodings(response, testCategories)
	require.Len(t, got, 2)
	assert.Equal(t, "Challenges", got[0].CategoryName)
	assert.Equal(t, "Recurring impediment.", got[0].Rationale)
	assert.Equal(t, "Decision Making", got[1].CategoryName)
}

func TestParseCodingsShortPassageDropped(t *testing.T) {
	p := NewParser(ModeLenient, nil)

	response := `Passage: "Too short."
Category: Communication
Rationale: Below the content threshold.`

	assert.Empty(t, p.ParseCodings(response, testCategories))
}

func TestParseCodingsTrailingPartialRecordDropped(t *testing.T) {
	p := NewParser(ModeLenient, nil)

	response := `Passage: "This passage is long enough to keep around."
Category: Communication
Rationale: Complete record.

Passage: "This one never gets a rationale marker so it is incomplete."
Category: Challenges`

	got := p.ParseCodings(response, testCategories)
	require.Len(t, got, 1)
	assert.Equal(t, "Communication", got[0].CategoryName)
}

func TestParseCodingsLenientFallback(t *testing.T) {
	p := NewParser(ModeLenient, nil)

	response := `Passage: "A passage tagged with a label nobody defined."
Category: Entirely Novel Theme
Rationale: Should fall back.`

	got := p.ParseCodings(response, testCategories)
	require.Len(t, got, 1)
	assert.Equal(t, "Communication", got[0].CategoryName)
}

func TestParseCodingsStrictModeDropsUnresolved(t *testing.T) {
	p := NewParser(ModeStrict, nil)

	response := `Passage: "A passage tagged with a label nobody defined."
Category: Entirely Novel Theme
Rationale: Should be dropped in strict mode.`

	assert.Empty(t, p.ParseCodings(response, testCategories))
}

func TestParseCodingsEmptyRationaleGetsDefault(t *testing.T) {
	p := NewParser(ModeLenient, nil)

	response := `Passage: "The onboarding checklist was out of date again."
Category: Challenges
Rationale:`

	got := p.ParseCodings(response, testCategories)
	require.Len(t, got, 1)
	assert.Equal(t, DefaultRationale, got[0].Rationale)
}

func TestParseCodingsPendingFieldsResetAfterFailedEmit(t *testing.T) {
	p := NewParser(ModeLenient, nil)

	// First record fails the passage threshold; its fields must not leak
	// into the second record.
	response := `Passage: "tiny"
Category: Challenges
Rationale: first record fails.

Passage: "A second record with a perfectly valid passage in it."
Category: Communication
Rationale: second record succeeds.`

	got := p.ParseCodings(response, testCategories)
	require.Len(t, got, 1)
	assert.Equal(t, "Communication", got[0].CategoryName)
	assert.Equal(t, "A second record with a perfectly valid passage in it.", got[0].Passage)
}

func TestParseCodingsNoCategoriesKnown(t *testing.T) {
	p := NewParser(ModeLenient, nil)

	response := `Passage: "A passage without any category list to resolve against."
Category: Communication
Rationale: Cannot resolve.`

	assert.Empty(t, p.ParseCodings(response, nil))
}

func TestParseCodingsIgnoresUnrecognizedLines(t *testing.T) {
	p := NewParser(ModeLenient, nil)

	response := `Some preamble the model decided to add.
===
Passage: "Segments arrive with arbitrary framing around them."
Category: Communication
Rationale: Good record despite the noise.
Closing remarks that mean nothing.`

	got := p.ParseCodings(response, testCategories)
	require.Len(t, got, 1)
}
