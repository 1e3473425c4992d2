package gesture

import (
	"crypto/rand"
	"io"
	"time"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/oklog/ulid/v2"
)

// Event is a confirmed gesture. Values are immutable once emitted.
type Event struct {
	ID         string           `json:"id"`
	Label      Label            `json:"label"`
	Channel    Channel          `json:"channel"`
	Confidence float64          `json:"confidence"`
	Position   detector.Point3D `json:"position"`
	Timestamp  time.Time        `json:"timestamp"`
}

// idSource mints time-ordered event ids. It is not safe for concurrent use.
type idSource struct {
	entropy io.Reader
}

func newIDSource() *idSource {
	return &idSource{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (s *idSource) next(t time.Time) string {
	id, err := ulid.New(ulid.Timestamp(t), s.entropy)
	if err != nil {
		// monotonic entropy overflowed within one millisecond
		return ulid.Make().String()
	}
	return id.String()
}
