package model

import "fmt"

// scaleTimeline multiplies each timeline_scaling parameter by its scalar at
// start_time and divides it back out at stop_time, in the model parameters
// and in every location.
func (m *Model) scaleTimeline(t int) error {
	timeline := m.Params.Sub("timeline_scaling.timeline")
	for _, name := range timeline.Keys() {
		e := timeline.Sub(name)
		scalar := e.Float("scalar")
		var factor float64
		switch t {
		case e.Int("start_time"):
			factor = scalar
		case e.Int("stop_time"):
			if scalar == 0 {
				return fmt.Errorf("timeline_scaling.timeline.%s: cannot unscale a zero scalar", name)
			}
			factor = 1 / scalar
		default:
			continue
		}
		param := e.String("parameter")
		if err := m.Params.Scale(param, factor); err != nil {
			return fmt.Errorf("timeline scaling %s: %w", name, err)
		}
		if err := m.Pop.Geography.Scale(param, factor); err != nil {
			return fmt.Errorf("timeline scaling %s: %w", name, err)
		}
		m.Logger.Debug("timeline scaled", "t", t, "parameter", param, "factor", factor)
	}
	return nil
}
