package coverage

import (
	"encoding/json"
	"fmt"
	"time"
)

// Report is the uncovered new-code summary for one file.
// It is created once per (document, URL) pair and never mutated.
type Report struct {
	projectName string
	filePath    string
	url         string
	generatedAt time.Time
	total       int
	groups      []Group
}

// ReportDTO is the serialization contract consumed by exporters.
type ReportDTO struct {
	ProjectName         string     `json:"projectName"`
	FilePath            string     `json:"filePath"`
	URL                 string     `json:"url"`
	GeneratedAt         time.Time  `json:"generatedAt"`
	TotalUncoveredLines int        `json:"totalUncoveredLines"`
	Groups              []GroupDTO `json:"groups"`
}

// NewReport builds a report. A zero generatedAt is replaced with the current time.
func NewReport(projectName, filePath, url string, groups []Group, generatedAt time.Time) *Report {
	if generatedAt.IsZero() {
		generatedAt = time.Now().UTC()
	}
	owned := make([]Group, len(groups))
	copy(owned, groups)
	return &Report{
		projectName: projectName,
		filePath:    filePath,
		url:         url,
		generatedAt: generatedAt,
		total:       TotalLines(owned),
		groups:      owned,
	}
}

func (r *Report) ProjectName() string      { return r.projectName }
func (r *Report) FilePath() string         { return r.filePath }
func (r *Report) URL() string              { return r.url }
func (r *Report) GeneratedAt() time.Time   { return r.generatedAt }
func (r *Report) TotalUncoveredLines() int { return r.total }

// Groups returns a copy of the report's groups.
func (r *Report) Groups() []Group {
	out := make([]Group, len(r.groups))
	copy(out, r.groups)
	return out
}

// ToDTO converts the report to plain data.
func (r *Report) ToDTO() ReportDTO {
	groups := make([]GroupDTO, len(r.groups))
	for i, g := range r.groups {
		groups[i] = g.ToDTO()
	}
	return ReportDTO{
		ProjectName:         r.projectName,
		FilePath:            r.filePath,
		URL:                 r.url,
		GeneratedAt:         r.generatedAt,
		TotalUncoveredLines: r.total,
		Groups:              groups,
	}
}

// FromDTO rebuilds a report from plain data, validating every group.
func FromDTO(dto ReportDTO) (*Report, error) {
	groups := make([]Group, 0, len(dto.Groups))
	for i, g := range dto.Groups {
		group, err := GroupFromDTO(g)
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", i, err)
		}
		groups = append(groups, group)
	}
	report := NewReport(dto.ProjectName, dto.FilePath, dto.URL, groups, dto.GeneratedAt)
	if dto.TotalUncoveredLines != report.total {
		return nil, fmt.Errorf("totalUncoveredLines %d does not match %d grouped lines",
			dto.TotalUncoveredLines, report.total)
	}
	return report, nil
}

// MarshalJSON encodes the report through its DTO.
func (r *Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ToDTO())
}

// UnmarshalJSON decodes and validates a report.
func (r *Report) UnmarshalJSON(data []byte) error {
	var dto ReportDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return err
	}
	decoded, err := FromDTO(dto)
	if err != nil {
		return err
	}
	*r = *decoded
	return nil
}
