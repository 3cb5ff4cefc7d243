package tracker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/okian/kpiboard/internal/domain/model"
)

// taskDTO mirrors the tracker's task resource.
type taskDTO struct {
	ID             int64     `json:"id_Task"`
	Description    string    `json:"description"`
	State          string    `json:"state"`
	HoursEstimated *float64  `json:"hoursEstimated"`
	HoursReal      *float64  `json:"hoursReal"`
	SprintID       *int64    `json:"id_Sprint"`
	AssignedTo     int64     `json:"assignedTo"`
	StoryPoints    int       `json:"storyPoints"`
	CreatedAt      timestamp `json:"createdAt"`
	UpdatedAt      timestamp `json:"updatedAt"`
	FinishesAt     timestamp `json:"finishesAt"`
}

type userDTO struct {
	ID       int64  `json:"id_User"`
	Name     string `json:"name"`
	Position string `json:"position"`
}

type sprintDTO struct {
	ID       int64     `json:"id_Sprint"`
	Name     string    `json:"name"`
	StartsAt timestamp `json:"startsAt"`
	EndsAt   timestamp `json:"endsAt"`
}

// sprintID maps a null, missing or negative sprint reference to the
// backlog sentinel.
func sprintID(id *int64) int64 {
	if id == nil || *id < 0 {
		return model.BacklogSprintID
	}
	return *id
}

func (d taskDTO) model() model.Task {
	return model.Task{
		ID:             d.ID,
		Description:    d.Description,
		State:          model.ParseTaskState(d.State),
		HoursEstimated: d.HoursEstimated,
		HoursReal:      d.HoursReal,
		AssignedTo:     d.AssignedTo,
		SprintID:       sprintID(d.SprintID),
		StoryPoints:    d.StoryPoints,
		CreatedAt:      time.Time(d.CreatedAt),
		UpdatedAt:      time.Time(d.UpdatedAt),
		FinishesAt:     time.Time(d.FinishesAt),
	}
}

func (d userDTO) model() model.User {
	return model.User{ID: d.ID, Name: d.Name, Position: d.Position}
}

func (d sprintDTO) model() model.Sprint {
	return model.Sprint{
		ID:       d.ID,
		Name:     d.Name,
		StartsAt: time.Time(d.StartsAt),
		EndsAt:   time.Time(d.EndsAt),
	}
}

// timestamp accepts ISO-8601 with or without an offset. Null and empty
// strings decode to the zero time.
type timestamp time.Time

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

func (t *timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*t = timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		*t = timestamp{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			*t = timestamp(v)
			return nil
		}
	}
	return fmt.Errorf("timestamp: unsupported format %q", s)
}
