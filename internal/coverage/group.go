// Package coverage holds the report model produced by the extraction engine:
// uncovered lines, contiguous line groups, and the per-file report.
// Values are built bottom-up in one pass and treated as read-only afterwards.
package coverage

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Line is a single uncovered new-code line.
type Line struct {
	Number int    `json:"lineNumber"`
	Code   string `json:"code"`
}

// Group is a maximal run of consecutive uncovered lines.
type Group struct {
	startLine int
	endLine   int
	lines     []Line
}

// GroupDTO is the plain-data form of a Group.
type GroupDTO struct {
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
	Lines     []Line `json:"lines"`
}

// ErrEmptyGroup is returned when decoding a group without lines.
var ErrEmptyGroup = errors.New("coverage group has no lines")

// NewGroup starts a group with its first line.
func NewGroup(first Line) *Group {
	return &Group{
		startLine: first.Number,
		endLine:   first.Number,
		lines:     []Line{first},
	}
}

// StartLine returns the first line's number.
func (g Group) StartLine() int {
	return g.startLine
}

// EndLine returns the last line's number.
func (g Group) EndLine() int {
	return g.endLine
}

// CanAppend reports whether line directly follows the group's last line.
func (g *Group) CanAppend(line Line) bool {
	return line.Number == g.endLine+1
}

// Append adds the next consecutive line to the group.
func (g *Group) Append(line Line) error {
	if !g.CanAppend(line) {
		return fmt.Errorf("cannot append line %d to coverage group ending at %d", line.Number, g.endLine)
	}
	g.extend(line)
	return nil
}

// extend appends line without checking; callers ensure CanAppend.
func (g *Group) extend(line Line) {
	g.lines = append(g.lines, line)
	g.endLine = line.Number
}

// Lines returns a copy of the group's lines.
func (g Group) Lines() []Line {
	out := make([]Line, len(g.lines))
	copy(out, g.lines)
	return out
}

// Len returns the number of lines in the group.
func (g Group) Len() int {
	return len(g.lines)
}

// ToDTO converts the group to its plain-data form.
func (g Group) ToDTO() GroupDTO {
	return GroupDTO{
		StartLine: g.startLine,
		EndLine:   g.endLine,
		Lines:     g.Lines(),
	}
}

// GroupFromDTO rebuilds a group, re-checking the consecutive-line invariant.
func GroupFromDTO(dto GroupDTO) (Group, error) {
	if len(dto.Lines) == 0 {
		return Group{}, ErrEmptyGroup
	}
	g := NewGroup(dto.Lines[0])
	for _, line := range dto.Lines[1:] {
		if err := g.Append(line); err != nil {
			return Group{}, err
		}
	}
	if g.startLine != dto.StartLine || g.endLine != dto.EndLine {
		return Group{}, fmt.Errorf("coverage group bounds %d-%d do not match lines %d-%d",
			dto.StartLine, dto.EndLine, g.startLine, g.endLine)
	}
	return *g, nil
}

// MarshalJSON encodes the group through its DTO.
func (g Group) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.ToDTO())
}

// UnmarshalJSON decodes and validates a group.
func (g *Group) UnmarshalJSON(data []byte) error {
	var dto GroupDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return err
	}
	decoded, err := GroupFromDTO(dto)
	if err != nil {
		return err
	}
	*g = decoded
	return nil
}
