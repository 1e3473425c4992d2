package action

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogSink records invocations without performing them. It backs dry runs.
type LogSink struct {
	Log logrus.FieldLogger
}

// Execute logs inv and returns nil.
func (s LogSink) Execute(_ context.Context, inv Invocation) error {
	s.Log.WithFields(logrus.Fields{
		"action_id": inv.ActionID,
		"kind":      inv.Kind,
		"name":      inv.Name,
		"params":    inv.Params,
		"gesture":   inv.Label,
		"channel":   inv.Channel,
	}).Info("dry run: action not executed")
	return nil
}
