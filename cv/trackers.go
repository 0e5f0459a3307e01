package cv

import (
	"fmt"
	"strings"

	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"

	"steadytrack/tracking"
)

// Tracker kinds.
const (
	TrackerCSRT = "csrt"
	TrackerKCF  = "kcf"
	TrackerMIL  = "mil"
)

// TrackerFactory returns a factory creating trackers of the given kind.
func TrackerFactory(kind string) (tracking.Factory[gocv.Mat], error) {
	var create func() gocv.Tracker
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case TrackerCSRT, "":
		create = func() gocv.Tracker { return contrib.NewTrackerCSRT() }
	case TrackerKCF:
		create = func() gocv.Tracker { return contrib.NewTrackerKCF() }
	case TrackerMIL:
		create = func() gocv.Tracker { return gocv.NewTrackerMIL() }
	default:
		return nil, fmt.Errorf("unknown tracker kind %q", kind)
	}
	return func() (tracking.Tracker[gocv.Mat], error) {
		return create(), nil
	}, nil
}
