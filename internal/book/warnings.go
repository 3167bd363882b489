package book

import (
	"fmt"

	"go.uber.org/zap"
)

// Warnings collects non-fatal problems met while parsing. Every warning is
// also logged.
type Warnings struct {
	log  *zap.Logger
	list []string
}

func NewWarnings(log *zap.Logger) *Warnings {
	if log == nil {
		log = zap.NewNop()
	}
	return &Warnings{log: log}
}

func (w *Warnings) Addf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	w.log.Warn(msg)
	w.list = append(w.list, msg)
}

// List returns the collected warnings in order.
func (w *Warnings) List() []string {
	return append([]string(nil), w.list...)
}
