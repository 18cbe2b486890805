package anilist

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MediaListStatus is the watch status of a list entry. It is a closed enum
// with a total mapping to the AniList wire values; unknown wire values are
// an error rather than silently collapsing into CURRENT.
type MediaListStatus int

const (
	StatusCurrent MediaListStatus = iota
	StatusPlanning
	StatusCompleted
	StatusDropped
	StatusPaused
	StatusRepeating
)

var statusNames = map[MediaListStatus]string{
	StatusCurrent:   "CURRENT",
	StatusPlanning:  "PLANNING",
	StatusCompleted: "COMPLETED",
	StatusDropped:   "DROPPED",
	StatusPaused:    "PAUSED",
	StatusRepeating: "REPEATING",
}

// AllStatuses lists every status in declaration order, for CLI help output
// and validation messages.
func AllStatuses() []MediaListStatus {
	return []MediaListStatus{
		StatusCurrent, StatusPlanning, StatusCompleted,
		StatusDropped, StatusPaused, StatusRepeating,
	}
}

// String returns the AniList wire representation.
func (s MediaListStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("MediaListStatus(%d)", int(s))
}

// ParseMediaListStatus maps a wire value (case-insensitive) back to the
// enum. Unknown values are rejected.
func ParseMediaListStatus(value string) (MediaListStatus, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for status, name := range statusNames {
		if name == normalized {
			return status, nil
		}
	}

	valid := make([]string, 0, len(statusNames))
	for _, status := range AllStatuses() {
		valid = append(valid, statusNames[status])
	}
	return 0, fmt.Errorf("unknown media list status %q (valid: %s)", value, strings.Join(valid, ", "))
}

// MarshalJSON encodes the wire representation.
func (s MediaListStatus) MarshalJSON() ([]byte, error) {
	name, ok := statusNames[s]
	if !ok {
		return nil, fmt.Errorf("cannot encode invalid media list status %d", int(s))
	}
	return json.Marshal(name)
}

// UnmarshalJSON decodes the wire representation, rejecting unknown values.
func (s *MediaListStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	status, err := ParseMediaListStatus(raw)
	if err != nil {
		return err
	}
	*s = status
	return nil
}
