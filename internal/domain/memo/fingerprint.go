package memo

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/kpiboard/internal/domain/model"
)

// Fingerprint hashes every field of the three collections that can affect
// a KPI view. Equal snapshots always share a fingerprint; order matters.
func Fingerprint(s model.Snapshot) uint64 {
	h := hasher{d: xxhash.New()}

	h.int(int64(len(s.Tasks)))
	for _, t := range s.Tasks {
		h.int(t.ID)
		h.str(t.Description)
		h.str(string(t.State))
		h.hours(t.HoursEstimated)
		h.hours(t.HoursReal)
		h.int(t.AssignedTo)
		h.int(t.SprintID)
		h.int(int64(t.StoryPoints))
		h.time(t.CreatedAt)
		h.time(t.UpdatedAt)
		h.time(t.FinishesAt)
	}

	h.int(int64(len(s.Users)))
	for _, u := range s.Users {
		h.int(u.ID)
		h.str(u.Name)
		h.str(u.Position)
	}

	h.int(int64(len(s.Sprints)))
	for _, sp := range s.Sprints {
		h.int(sp.ID)
		h.str(sp.Name)
		h.time(sp.StartsAt)
		h.time(sp.EndsAt)
	}
	return h.d.Sum64()
}

type hasher struct {
	d   *xxhash.Digest
	buf [8]byte
}

func (h *hasher) int(v int64) {
	binary.LittleEndian.PutUint64(h.buf[:], uint64(v))
	_, _ = h.d.Write(h.buf[:])
}

// str writes a length prefix so adjacent strings cannot run together.
func (h *hasher) str(s string) {
	h.int(int64(len(s)))
	_, _ = h.d.WriteString(s)
}

func (h *hasher) hours(p *float64) {
	if p == nil {
		h.int(0)
		return
	}
	h.int(1)
	h.int(int64(math.Float64bits(*p)))
}

func (h *hasher) time(t time.Time) {
	if t.IsZero() {
		h.int(0)
		return
	}
	h.int(1)
	h.int(t.UnixNano())
}
