package valueobjects

import (
	"regexp"
	"strconv"
	"strings"

	"assessment-backend/domain/config"
	"assessment-backend/pkg/errors"
)

var subcomponentPattern = regexp.MustCompile(`^\d+-\d+$`)

// BlockID identifies one block of the taxonomy.
// Value objects are immutable and compare by value.
type BlockID struct {
	number int
}

// NewBlockID creates a BlockID from its number
func NewBlockID(number int) (BlockID, error) {
	if number < 1 {
		return BlockID{}, errors.NewValidationError("block id must be a positive integer")
	}
	return BlockID{number: number}, nil
}

// ParseBlockID parses the decimal form of a block id
func ParseBlockID(s string) (BlockID, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil || s == "" || strings.ContainsAny(s, "+-") {
		return BlockID{}, errors.NewValidationError("block id must be a positive integer").
			WithDetails(map[string]interface{}{"blockId": s})
	}
	return NewBlockID(n)
}

// MustBlockID is for tests and constants only
func MustBlockID(number int) BlockID {
	id, err := NewBlockID(number)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the canonical decimal form
func (b BlockID) String() string {
	return strconv.Itoa(b.number)
}

// Number returns the block number
func (b BlockID) Number() int {
	return b.number
}

// IsZero checks if the BlockID is the zero value
func (b BlockID) IsZero() bool {
	return b.number == 0
}

// Subcomponents returns the canonical subcomponents of the block, in order.
func (b BlockID) Subcomponents() []SubcomponentID {
	ids := make([]SubcomponentID, 0, config.SubcomponentsPerBlock)
	for i := 1; i <= config.SubcomponentsPerBlock; i++ {
		ids = append(ids, SubcomponentID{block: b, index: i})
	}
	return ids
}

// MarshalJSON implements json.Marshaler
func (b BlockID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + b.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (b *BlockID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	parsed, err := ParseBlockID(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// SubcomponentID identifies a scored subcomponent as "<block>-<index>".
type SubcomponentID struct {
	block BlockID
	index int
}

// NewSubcomponentID creates a SubcomponentID from its parts
func NewSubcomponentID(block BlockID, index int) (SubcomponentID, error) {
	if block.IsZero() {
		return SubcomponentID{}, errors.NewValidationError("subcomponent block is required")
	}
	if index < 1 || index > config.SubcomponentsPerBlock {
		return SubcomponentID{}, errors.NewValidationError("subcomponent index must be between 1 and 6")
	}
	return SubcomponentID{block: block, index: index}, nil
}

// ParseSubcomponentID parses "<block>-<index>". Leading zeros are accepted
// and normalized away, so "01-1" and "1-1" are the same subcomponent.
func ParseSubcomponentID(s string) (SubcomponentID, error) {
	if !subcomponentPattern.MatchString(s) {
		return SubcomponentID{}, errors.NewValidationError("subcomponent id must match <block>-<index>").
			WithDetails(map[string]interface{}{"subcomponentId": s})
	}
	parts := strings.SplitN(s, "-", 2)
	blockNum, err := strconv.Atoi(parts[0])
	if err != nil {
		return SubcomponentID{}, errors.NewValidationError("subcomponent block is not a number")
	}
	index, err := strconv.Atoi(parts[1])
	if err != nil {
		return SubcomponentID{}, errors.NewValidationError("subcomponent index is not a number")
	}
	block, err := NewBlockID(blockNum)
	if err != nil {
		return SubcomponentID{}, err
	}
	return NewSubcomponentID(block, index)
}

// MustSubcomponentID is for tests and constants only
func MustSubcomponentID(s string) SubcomponentID {
	id, err := ParseSubcomponentID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the canonical "<block>-<index>" form
func (id SubcomponentID) String() string {
	return id.block.String() + "-" + strconv.Itoa(id.index)
}

// Block returns the owning block
func (id SubcomponentID) Block() BlockID {
	return id.block
}

// Index returns the position of the subcomponent inside its block (1..6)
func (id SubcomponentID) Index() int {
	return id.index
}

// IsZero checks if the SubcomponentID is the zero value
func (id SubcomponentID) IsZero() bool {
	return id.index == 0
}

// Equals checks if two SubcomponentIDs are equal
func (id SubcomponentID) Equals(other SubcomponentID) bool {
	return id == other
}

// MarshalJSON implements json.Marshaler
func (id SubcomponentID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *SubcomponentID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	parsed, err := ParseSubcomponentID(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
