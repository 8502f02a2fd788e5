package report

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pocket-drs/pocketdrs/internal/pipeline"
)

// debugTrack is the on-disk shape of the debug dump: everything a developer
// needs to replay a disputed ruling without the video.
type debugTrack struct {
	Track       []pipeline.TrackPoint  `json:"track"`
	PlanePoints []pipeline.PlanePoint  `json:"plane_points,omitempty"`
	Events      pipeline.EventsPayload `json:"events"`
	Lbw         *pipeline.LbwPayload   `json:"lbw,omitempty"`
	Warnings    []string               `json:"warnings,omitempty"`
}

// WriteDebugTrack dumps the raw track, events and ruling as indented JSON.
func WriteDebugTrack(out *pipeline.Output, path string) error {
	dump := debugTrack{
		Track:    out.Result.Track.Points,
		Events:   out.Result.Events,
		Lbw:      out.Result.Lbw,
		Warnings: out.Warnings,
	}
	if out.Result.PitchPlane != nil {
		dump.PlanePoints = out.Result.PitchPlane.PointsM
	}

	data, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal debug track: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write debug track: %w", err)
	}
	return nil
}
