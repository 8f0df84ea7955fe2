package service

import (
	"time"

	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/dashboard/types"
)

// MotionTimeLayout matches the browser's en-US toLocaleString output.
const MotionTimeLayout = "1/2/2006, 3:04:05 PM"

// FormatSnapshot derives the display fields for snap. loc nil means time.Local.
func FormatSnapshot(snap types.Snapshot, loc *time.Location, now time.Time) types.Display {
	if loc == nil {
		loc = time.Local
	}
	d := types.Display{
		Loaded:         true,
		TotalRecords:   snap.TotalRecords,
		LastPwrTrigger: snap.LastTriggerText(),
		LastPing:       snap.TextLastPing,
		PingDelta:      snap.PingDelta.String(),
		ResetDelta:     snap.ResetDelta.String(),
		Samples:        snap.Data,
		UpdatedAt:      now,
	}
	if d.Samples == nil {
		d.Samples = []types.SamplePoint{}
	}
	if snap.PCStatus != nil {
		d.PCStatus = "Offline"
		if *snap.PCStatus {
			d.PCStatus = "Online"
		}
	}
	if snap.LastMotionDetected != nil {
		d.LastMotion = FormatMotion(*snap.LastMotionDetected, loc)
	}
	return d
}

// FormatMotion renders a last-motion unix timestamp; 0 means no motion was ever seen.
func FormatMotion(ts int64, loc *time.Location) string {
	if ts == 0 {
		return "Never"
	}
	return time.Unix(ts, 0).In(loc).Format(MotionTimeLayout)
}
