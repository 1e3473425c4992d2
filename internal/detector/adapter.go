package detector

import (
	"math"

	"github.com/sirupsen/logrus"
)

// Adapter converts raw observations into validated hand poses.
type Adapter struct {
	minConfidence float64
	log           logrus.FieldLogger
}

// NewAdapter creates an Adapter that discards hands scoring below minConfidence.
func NewAdapter(minConfidence float64, log logrus.FieldLogger) *Adapter {
	return &Adapter{minConfidence: minConfidence, log: log}
}

// Adapt returns zero, one or two poses for the observation, at most one per
// handedness. Malformed and low-confidence hands are dropped individually;
// the rest of the frame is still processed.
func (a *Adapter) Adapt(obs Observation) []HandLandmarks {
	var (
		poses []HandLandmarks
		seen  = make(map[Handedness]int, 2)
	)

	for i, raw := range obs.Hands {
		pose, ok := a.adaptHand(i, raw)
		if !ok {
			continue
		}
		pose.Timestamp = obs.Timestamp

		if j, dup := seen[pose.Handedness]; dup {
			if pose.Score > poses[j].Score {
				poses[j] = pose
			}
			continue
		}
		seen[pose.Handedness] = len(poses)
		poses = append(poses, pose)
	}

	return poses
}

func (a *Adapter) adaptHand(i int, raw RawHand) (HandLandmarks, bool) {
	var pose HandLandmarks

	if len(raw.Points) != NumLandmarks {
		a.log.WithFields(logrus.Fields{"hand": i, "points": len(raw.Points)}).Debug("dropping hand with wrong landmark count")
		return pose, false
	}

	handedness, ok := ParseHandedness(raw.Handedness)
	if !ok {
		a.log.WithFields(logrus.Fields{"hand": i, "handedness": raw.Handedness}).Debug("dropping hand with unknown handedness")
		return pose, false
	}

	if math.IsNaN(raw.Score) || raw.Score < a.minConfidence {
		return pose, false
	}

	for j, p := range raw.Points {
		if !finite(p.X) || !finite(p.Y) || !finite(p.Z) {
			a.log.WithFields(logrus.Fields{"hand": i, "landmark": j}).Debug("dropping hand with non-finite landmark")
			return pose, false
		}
		pose.Points[j] = p
	}

	pose.Handedness = handedness
	pose.Score = raw.Score
	return pose, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
