package logging

import "github.com/sirupsen/logrus"

// FieldsHook stamps fixed fields on every entry that does not already set
// them, such as the run ID.
type FieldsHook struct {
	Fields logrus.Fields
}

func (h *FieldsHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *FieldsHook) Fire(e *logrus.Entry) error {
	for k, v := range h.Fields {
		if _, ok := e.Data[k]; !ok {
			e.Data[k] = v
		}
	}
	return nil
}
