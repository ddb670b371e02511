package thoughts

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// BlockType enumerates the supported content block kinds.
type BlockType string

const (
	// BlockTypeText is a plain text block; the body lives in Block.Content.
	BlockTypeText BlockType = "text"
	// BlockTypeMedia is an image, video, or audio block.
	BlockTypeMedia BlockType = "media"
	// BlockTypeLocation is a place block with optional weather details.
	BlockTypeLocation BlockType = "location"
	// BlockTypeMood is an emotion block with an intensity rating.
	BlockTypeMood BlockType = "mood"
)

// MediaType enumerates the supported attachment kinds.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
	MediaTypeAudio MediaType = "audio"
)

// EnergyLevel enumerates mood energy ratings.
type EnergyLevel string

const (
	EnergyLow    EnergyLevel = "low"
	EnergyMedium EnergyLevel = "medium"
	EnergyHigh   EnergyLevel = "high"
)

// Mood is a thought-level emotion label.
type Mood string

const (
	MoodHappy      Mood = "happy"
	MoodSad        Mood = "sad"
	MoodExcited    Mood = "excited"
	MoodCalm       Mood = "calm"
	MoodAnxious    Mood = "anxious"
	MoodGrateful   Mood = "grateful"
	MoodReflective Mood = "reflective"
	MoodNeutral    Mood = "neutral"
)

const (
	minMoodIntensity = 1
	maxMoodIntensity = 10
)

var (
	// ErrInvalidBlockType indicates an unknown block type tag.
	ErrInvalidBlockType = errors.New("thoughts: invalid block type")
	// ErrPayloadMismatch indicates a block whose payload does not match its type tag.
	ErrPayloadMismatch = errors.New("thoughts: block payload does not match type")
	// ErrInvalidIntensity indicates a mood intensity outside the 1-10 range.
	ErrInvalidIntensity = errors.New("thoughts: mood intensity out of range")
)

// MediaAttachment describes the payload of a media block. The URL is a
// session-scoped reference into the attachment store, not durable storage.
type MediaAttachment struct {
	ID       string    `json:"id"`
	Type     MediaType `json:"type"`
	URL      string    `json:"url"`
	Caption  string    `json:"caption,omitempty"`
	Waveform []float64 `json:"waveform,omitempty"`
}

// WeatherInfo carries the weather observed at a location block.
type WeatherInfo struct {
	Condition   string  `json:"condition"`
	Temperature float64 `json:"temperature"`
	Icon        string  `json:"icon,omitempty"`
}

// LocationInfo describes the payload of a location block.
type LocationInfo struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Lat      *float64     `json:"lat,omitempty"`
	Lng      *float64     `json:"lng,omitempty"`
	Address  string       `json:"address,omitempty"`
	City     string       `json:"city,omitempty"`
	Country  string       `json:"country,omitempty"`
	Timezone string       `json:"timezone,omitempty"`
	Weather  *WeatherInfo `json:"weather,omitempty"`
}

// MoodInfo describes the payload of a mood block.
type MoodInfo struct {
	ID        string      `json:"id"`
	Primary   string      `json:"primary"`
	Intensity int         `json:"intensity"`
	Secondary []string    `json:"secondary,omitempty"`
	Energy    EnergyLevel `json:"energy,omitempty"`
	Color     string      `json:"color,omitempty"`
	Emoji     string      `json:"emoji,omitempty"`
	Note      string      `json:"note,omitempty"`
}

// BlockPayload is the tagged-union payload of a block. Exactly one concrete
// payload type corresponds to each non-text block type; text blocks carry no
// payload beyond Block.Content.
type BlockPayload interface {
	blockType() BlockType
}

func (MediaAttachment) blockType() BlockType { return BlockTypeMedia }
func (LocationInfo) blockType() BlockType    { return BlockTypeLocation }
func (MoodInfo) blockType() BlockType        { return BlockTypeMood }

// Block is one ordered content unit within a thought. Construct blocks with
// the New*Block helpers so the type tag and payload stay consistent.
type Block struct {
	ID        string
	Type      BlockType
	Content   string
	Position  int
	Timestamp *time.Time

	payload BlockPayload
}

// NewTextBlock constructs a text block.
func NewTextBlock(id, content string, position int) Block {
	return Block{ID: id, Type: BlockTypeText, Content: content, Position: position}
}

// NewMediaBlock constructs a media block; content serves as the caption.
func NewMediaBlock(id, content string, position int, media MediaAttachment) Block {
	return Block{ID: id, Type: BlockTypeMedia, Content: content, Position: position, payload: media}
}

// NewLocationBlock constructs a location block.
func NewLocationBlock(id, content string, position int, location LocationInfo) Block {
	return Block{ID: id, Type: BlockTypeLocation, Content: content, Position: position, payload: location}
}

// NewMoodBlock constructs a mood block.
func NewMoodBlock(id, content string, position int, mood MoodInfo) Block {
	return Block{ID: id, Type: BlockTypeMood, Content: content, Position: position, payload: mood}
}

// Media returns the media payload when the block is a media block.
func (b Block) Media() (MediaAttachment, bool) {
	payload, ok := b.payload.(MediaAttachment)
	return payload, ok
}

// Location returns the location payload when the block is a location block.
func (b Block) Location() (LocationInfo, bool) {
	payload, ok := b.payload.(LocationInfo)
	return payload, ok
}

// Mood returns the mood payload when the block is a mood block.
func (b Block) Mood() (MoodInfo, bool) {
	payload, ok := b.payload.(MoodInfo)
	return payload, ok
}

// WithPayload returns a copy of the block carrying the provided payload and
// the payload's type tag.
func (b Block) WithPayload(payload BlockPayload) Block {
	updated := b
	updated.payload = payload
	if payload != nil {
		updated.Type = payload.blockType()
	}
	return updated
}

// Validate checks that the type tag is known, the payload matches the tag,
// and mood intensities stay within range.
func (b Block) Validate() error {
	switch b.Type {
	case BlockTypeText:
		if b.payload != nil {
			return fmt.Errorf("%w: text block carries %s payload", ErrPayloadMismatch, b.payload.blockType())
		}
	case BlockTypeMedia, BlockTypeLocation, BlockTypeMood:
		if b.payload == nil {
			return fmt.Errorf("%w: %s block missing payload", ErrPayloadMismatch, b.Type)
		}
		if b.payload.blockType() != b.Type {
			return fmt.Errorf("%w: %s block carries %s payload", ErrPayloadMismatch, b.Type, b.payload.blockType())
		}
		if mood, ok := b.payload.(MoodInfo); ok {
			if mood.Intensity < minMoodIntensity || mood.Intensity > maxMoodIntensity {
				return fmt.Errorf("%w: %d", ErrInvalidIntensity, mood.Intensity)
			}
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBlockType, b.Type)
	}
	return nil
}

// blockWire is the serialized block layout. The payload keys are mutually
// exclusive and gated by the type tag.
type blockWire struct {
	ID        string           `json:"id"`
	Type      BlockType        `json:"type"`
	Content   string           `json:"content,omitempty"`
	Position  int              `json:"position"`
	Timestamp *time.Time       `json:"timestamp,omitempty"`
	Media     *MediaAttachment `json:"media,omitempty"`
	Location  *LocationInfo    `json:"location,omitempty"`
	Mood      *MoodInfo        `json:"mood,omitempty"`
}

// MarshalJSON encodes the block with the payload under the key matching its
// type tag.
func (b Block) MarshalJSON() ([]byte, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	wire := blockWire{
		ID:        b.ID,
		Type:      b.Type,
		Content:   b.Content,
		Position:  b.Position,
		Timestamp: b.Timestamp,
	}
	switch payload := b.payload.(type) {
	case MediaAttachment:
		wire.Media = &payload
	case LocationInfo:
		wire.Location = &payload
	case MoodInfo:
		wire.Mood = &payload
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes the block and rejects payloads inconsistent with the
// type tag.
func (b *Block) UnmarshalJSON(data []byte) error {
	var wire blockWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	decoded := Block{
		ID:        wire.ID,
		Type:      wire.Type,
		Content:   wire.Content,
		Position:  wire.Position,
		Timestamp: wire.Timestamp,
	}
	switch wire.Type {
	case BlockTypeText:
	case BlockTypeMedia:
		if wire.Media != nil {
			decoded.payload = *wire.Media
		}
	case BlockTypeLocation:
		if wire.Location != nil {
			decoded.payload = *wire.Location
		}
	case BlockTypeMood:
		if wire.Mood != nil {
			decoded.payload = *wire.Mood
		}
	}
	if err := decoded.Validate(); err != nil {
		return err
	}
	*b = decoded
	return nil
}

// Thought is a single journal entry composed of ordered blocks. Mood,
// PrimaryEmotion, Weather, and Location are derived from the blocks rather
// than set directly.
type Thought struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Blocks         []Block   `json:"blocks"`
	PrimaryEmotion string    `json:"primaryEmotion,omitempty"`
	Tags           []string  `json:"tags"`
	Category       string    `json:"category,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	IsFavorite     bool      `json:"isFavorite"`
	Mood           Mood      `json:"mood"`
	Weather        string    `json:"weather,omitempty"`
	Location       string    `json:"location,omitempty"`
}

// SortBlocks orders the thought's blocks by position ascending. The sort is
// stable: equal positions keep their relative order.
func (t *Thought) SortBlocks() {
	sort.SliceStable(t.Blocks, func(i, j int) bool {
		return t.Blocks[i].Position < t.Blocks[j].Position
	})
}

// HasTag reports whether the thought carries the tag, case-insensitively.
func (t Thought) HasTag(tag string) bool {
	for _, candidate := range t.Tags {
		if strings.EqualFold(candidate, tag) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe for callers to mutate.
func (t Thought) Clone() Thought {
	copied := t
	if t.Blocks != nil {
		copied.Blocks = make([]Block, len(t.Blocks))
		copy(copied.Blocks, t.Blocks)
	}
	if t.Tags != nil {
		copied.Tags = make([]string, len(t.Tags))
		copy(copied.Tags, t.Tags)
	}
	return copied
}

// dedupeTags drops duplicate tags while preserving first-seen order.
func dedupeTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	deduped := make([]string, 0, len(tags))
	for _, tag := range tags {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		deduped = append(deduped, tag)
	}
	return deduped
}
