// Package seed generates synthetic tracker snapshots for demos and tests.
package seed

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/okian/kpiboard/internal/domain/model"
	"github.com/okian/kpiboard/pkg/logger"
)

// ErrInvalidConfig is returned for negative sizes or a non-positive sprint
// length.
var ErrInvalidConfig = errors.New("invalid seed config")

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	hourSteps          = 32 // estimates in half hours up to 16h
	storyPointChoices  = 8
)

// Percentages used to pick task attributes.
const (
	donePercent       = 55
	inProgressPercent = 20
	unassignedPercent = 5
	overrunPercent    = 35
	noRealPercent     = 10
)

const defaultSprintLength = 14 * 24 * time.Hour

var (
	firstNames = []string{"Alice", "Bruno", "Chloé", "Dmitri", "Emeka", "Fatima", "Gustavo", "Hana", "Ingrid", "Jun"}
	positions  = []string{"Developer", "Senior Developer", "QA Engineer", "Tech Lead", "Designer"}
	verbs      = []string{"Implement", "Fix", "Refactor", "Document", "Review", "Test"}
	subjects   = []string{"login flow", "sprint board", "report export", "user settings", "notifications", "search"}
)

// Config sizes a generated snapshot.
type Config struct {
	Users   int           // Number of users
	Sprints int           // Number of consecutive sprints
	Tasks   int           // Number of tasks
	Backlog int           // Percentage of tasks left in the backlog
	Start   time.Time     // Start of the first sprint
	Length  time.Duration // Length of each sprint
}

// DefaultConfig returns a small team whose last sprint contains now.
func DefaultConfig(now time.Time) Config {
	const sprints = 4
	start := now.UTC().Truncate(24 * time.Hour).Add(-(sprints - 1) * defaultSprintLength)
	return Config{
		Users:   6,
		Sprints: sprints,
		Tasks:   120,
		Backlog: 15,
		Start:   start,
		Length:  defaultSprintLength,
	}
}

// Validate checks the sizes.
func (c Config) Validate() error {
	switch {
	case c.Users < 0, c.Sprints < 0, c.Tasks < 0:
		return fmt.Errorf("%w: sizes must not be negative", ErrInvalidConfig)
	case c.Backlog < 0 || c.Backlog > 100:
		return fmt.Errorf("%w: backlog must be a percentage, got %d", ErrInvalidConfig, c.Backlog)
	case c.Length <= 0:
		return fmt.Errorf("%w: sprint length must be positive", ErrInvalidConfig)
	}
	return nil
}

// Option configures Generate.
type Option func(*options)

type options struct {
	logger logger.Logger
}

// WithLogger sets the logger Generate reports to.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Generate builds a snapshot of exactly the configured size. Ids start at 1
// and every task references an existing user and sprint, or none.
func Generate(ctx context.Context, cfg Config, opts ...Option) (model.Snapshot, error) {
	o := options{logger: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return model.Snapshot{}, err
	}
	o.logger.Debug(ctx, "generating snapshot",
		logger.Int("users", cfg.Users),
		logger.Int("sprints", cfg.Sprints),
		logger.Int("tasks", cfg.Tasks),
	)

	snap := model.Snapshot{
		Users:   make([]model.User, cfg.Users),
		Sprints: make([]model.Sprint, cfg.Sprints),
		Tasks:   make([]model.Task, cfg.Tasks),
	}

	for i := range snap.Users {
		name := firstNames[i%len(firstNames)]
		if i >= len(firstNames) {
			name = fmt.Sprintf("%s %d", name, i/len(firstNames)+1)
		}
		snap.Users[i] = model.User{
			ID:       int64(i + 1),
			Name:     name,
			Position: positions[randomInt(len(positions))],
		}
	}

	for i := range snap.Sprints {
		starts := cfg.Start.Add(time.Duration(i) * cfg.Length)
		snap.Sprints[i] = model.Sprint{
			ID:       int64(i + 1),
			Name:     fmt.Sprintf("Sprint %d", i+1),
			StartsAt: starts,
			EndsAt:   starts.Add(cfg.Length - time.Second),
		}
	}

	for i := range snap.Tasks {
		if err := ctx.Err(); err != nil {
			return model.Snapshot{}, fmt.Errorf("context cancelled during generation: %w", err)
		}
		snap.Tasks[i] = generateTask(int64(i+1), cfg, snap.Users, snap.Sprints)
	}

	return snap, nil
}

func generateTask(id int64, cfg Config, users []model.User, sprints []model.Sprint) model.Task {
	t := model.Task{
		ID:          id,
		Description: verbs[randomInt(len(verbs))] + " " + subjects[randomInt(len(subjects))],
		State:       randomState(),
		SprintID:    model.BacklogSprintID,
		StoryPoints: 1 + randomInt(storyPointChoices),
	}

	if len(users) > 0 && !chance(unassignedPercent) {
		t.AssignedTo = users[randomInt(len(users))].ID
	}

	created := cfg.Start
	if len(sprints) > 0 && !chance(cfg.Backlog) {
		sp := sprints[randomInt(len(sprints))]
		t.SprintID = sp.ID
		created = sp.StartsAt
		t.FinishesAt = sp.EndsAt
	}
	t.CreatedAt = created
	t.UpdatedAt = created.Add(time.Duration(randomInt(int(cfg.Length/time.Hour)+1)) * time.Hour)

	est := float64(1+randomInt(hourSteps)) / 2
	t.HoursEstimated = model.Hours(est)

	switch {
	case t.State == model.StateTodo, chance(noRealPercent):
	case chance(overrunPercent):
		t.HoursReal = model.Hours(est + est*getRandomFloat())
	default:
		t.HoursReal = model.Hours(est * (0.5 + getRandomFloat()/2))
	}
	return t
}

func randomState() model.TaskState {
	n := randomInt(100)
	switch {
	case n < donePercent:
		return model.StateDone
	case n < donePercent+inProgressPercent:
		return model.StateInProgress
	default:
		return model.StateTodo
	}
}

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	return float64(randomInt(randomFloatDivisor)) / float64(randomFloatDivisor)
}

// randomInt returns a value in [0, n).
func randomInt(n int) int {
	if n <= 1 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

func chance(percent int) bool {
	return randomInt(100) < percent
}
