package kpi

import "github.com/okian/kpiboard/internal/domain/model"

// UserHours is the real hours logged by one user across all tasks.
type UserHours struct {
	Name       string  `json:"name"`
	TotalHours float64 `json:"totalHours"`
}

// UserDoneTasks is the number of DONE tasks assigned to one user.
type UserDoneTasks struct {
	Name      string `json:"name"`
	DoneTasks int    `json:"doneTasks"`
}

// TotalHoursPerUser sums HoursReal per user over tasks in any state. Tasks
// with nil or zero HoursReal do not contribute. Rows follow users' order.
func TotalHoursPerUser(tasks []model.Task, users []model.User) []UserHours {
	byUser := make(map[int64]float64, len(users))
	for _, t := range tasks {
		if t.HoursReal == nil || *t.HoursReal == 0 {
			continue
		}
		byUser[t.AssignedTo] += *t.HoursReal
	}

	out := make([]UserHours, len(users))
	for i, u := range users {
		out[i] = UserHours{Name: u.Name, TotalHours: byUser[u.ID]}
	}
	return out
}

// TotalCompletedTasksPerUser counts DONE tasks per user. Rows follow users'
// order.
func TotalCompletedTasksPerUser(tasks []model.Task, users []model.User) []UserDoneTasks {
	byUser := make(map[int64]int, len(users))
	for _, t := range tasks {
		if t.Done() {
			byUser[t.AssignedTo]++
		}
	}

	out := make([]UserDoneTasks, len(users))
	for i, u := range users {
		out[i] = UserDoneTasks{Name: u.Name, DoneTasks: byUser[u.ID]}
	}
	return out
}
