package thoughts

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestBlockMarshalKeepsPayloadUnderTypeKey(t *testing.T) {
	block := NewMediaBlock("b-1", "sunset", 2, MediaAttachment{
		ID:   "m-1",
		Type: MediaTypeImage,
		URL:  "session://abc",
	})

	encoded, err := json.Marshal(block)
	if err != nil {
		t.Fatalf("unexpected marshal error: %v", err)
	}
	serialized := string(encoded)
	if !strings.Contains(serialized, `"media"`) {
		t.Fatalf("expected media key, got %s", serialized)
	}
	if strings.Contains(serialized, `"location"`) || strings.Contains(serialized, `"mood"`) {
		t.Fatalf("expected no unrelated payload keys, got %s", serialized)
	}
}

func TestBlockUnmarshalRejectsMismatchedPayload(t *testing.T) {
	serialized := `{"id":"b-1","type":"mood","content":"","position":0,"media":{"id":"m-1","type":"image","url":"session://abc"}}`

	var block Block
	err := json.Unmarshal([]byte(serialized), &block)
	if !errors.Is(err, ErrPayloadMismatch) {
		t.Fatalf("expected payload mismatch, got %v", err)
	}
}

func TestBlockUnmarshalRejectsUnknownType(t *testing.T) {
	serialized := `{"id":"b-1","type":"video-call","content":"","position":0}`

	var block Block
	err := json.Unmarshal([]byte(serialized), &block)
	if !errors.Is(err, ErrInvalidBlockType) {
		t.Fatalf("expected invalid block type, got %v", err)
	}
}

func TestBlockValidateRejectsOutOfRangeIntensity(t *testing.T) {
	block := NewMoodBlock("b-1", "", 0, MoodInfo{ID: "m-1", Primary: "happy", Intensity: 11})

	if err := block.Validate(); !errors.Is(err, ErrInvalidIntensity) {
		t.Fatalf("expected intensity error, got %v", err)
	}
}

func TestThoughtJSONRoundTripPreservesDates(t *testing.T) {
	original := Thought{
		ID:        "t-1",
		Title:     "Round trip",
		Tags:      []string{"a"},
		CreatedAt: testStart(),
		UpdatedAt: testStart(),
		Mood:      MoodNeutral,
		Blocks: []Block{
			NewLocationBlock("b-1", "", 0, LocationInfo{ID: "loc-1", Name: "Home"}),
		},
	}

	encoded, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("unexpected marshal error: %v", err)
	}
	var decoded Thought
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unexpected unmarshal error: %v", err)
	}

	if !decoded.CreatedAt.Equal(original.CreatedAt) || !decoded.UpdatedAt.Equal(original.UpdatedAt) {
		t.Fatalf("expected dates reconstituted, got %v / %v", decoded.CreatedAt, decoded.UpdatedAt)
	}
	location, ok := decoded.Blocks[0].Location()
	if !ok || location.Name != "Home" {
		t.Fatalf("expected location payload preserved, got %#v", decoded.Blocks[0])
	}
}

func TestWithPayloadRetagsBlock(t *testing.T) {
	block := NewTextBlock("b-1", "caption", 0)

	retagged := block.WithPayload(MediaAttachment{ID: "m-1", Type: MediaTypeAudio, URL: "session://xyz"})

	if retagged.Type != BlockTypeMedia {
		t.Fatalf("expected media type after retag, got %s", retagged.Type)
	}
	if _, ok := retagged.Media(); !ok {
		t.Fatalf("expected media payload accessible")
	}
}

func TestSortBlocksIsStable(t *testing.T) {
	thought := Thought{
		Blocks: []Block{
			NewTextBlock("b-1", "first at 3", 3),
			NewTextBlock("b-2", "second at 3", 3),
			NewTextBlock("b-3", "at 1", 1),
		},
	}

	thought.SortBlocks()

	ids := []string{thought.Blocks[0].ID, thought.Blocks[1].ID, thought.Blocks[2].ID}
	if ids[0] != "b-3" || ids[1] != "b-1" || ids[2] != "b-2" {
		t.Fatalf("unexpected order: %v", ids)
	}
}
