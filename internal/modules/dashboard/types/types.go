package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Snapshot is one GET /api/get_data response.
type Snapshot struct {
	Status             string        `json:"status,omitempty"`
	TotalRecords       int           `json:"total_records"`
	TextLastPwrTrigger string        `json:"text_last_pwr_trigger,omitempty"`
	TextLastReset      string        `json:"text_last_reset,omitempty"`
	TextLastPing       string        `json:"text_last_ping"`
	LastPwrTrigger     int64         `json:"last_pwr_trigger,omitempty"`
	LastPing           int64         `json:"last_ping,omitempty"`
	PingDelta          Delta         `json:"ping_delta"`
	ResetDelta         Delta         `json:"reset_delta"`
	PCStatus           *bool         `json:"pc_status,omitempty"`
	LastMotionDetected *int64        `json:"last_motion_detected,omitempty"`
	Data               []SamplePoint `json:"data"`
}

// LastTriggerText returns the power trigger text, falling back to the older text_last_reset field.
func (s Snapshot) LastTriggerText() string {
	if s.TextLastPwrTrigger != "" {
		return s.TextLastPwrTrigger
	}
	return s.TextLastReset
}

// SamplePoint is one timestamped reading. Missing readings decode as NaN.
type SamplePoint struct {
	Timestamp   int64   `json:"timestamp"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

func (p SamplePoint) Time() time.Time { return time.Unix(p.Timestamp, 0) }

func (p *SamplePoint) UnmarshalJSON(b []byte) error {
	var raw struct {
		Timestamp   float64  `json:"timestamp"`
		Temperature *float64 `json:"temperature"`
		Humidity    *float64 `json:"humidity"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	p.Timestamp = int64(math.Round(raw.Timestamp))
	p.Temperature = math.NaN()
	if raw.Temperature != nil {
		p.Temperature = *raw.Temperature
	}
	p.Humidity = math.NaN()
	if raw.Humidity != nil {
		p.Humidity = *raw.Humidity
	}
	return nil
}

func (p SamplePoint) MarshalJSON() ([]byte, error) {
	var raw struct {
		Timestamp   int64    `json:"timestamp"`
		Temperature *float64 `json:"temperature"`
		Humidity    *float64 `json:"humidity"`
	}
	raw.Timestamp = p.Timestamp
	if !math.IsNaN(p.Temperature) {
		raw.Temperature = &p.Temperature
	}
	if !math.IsNaN(p.Humidity) {
		raw.Humidity = &p.Humidity
	}
	return json.Marshal(raw)
}

// Delta is an elapsed time in seconds. The backend sends the string "Never" when the event has
// not happened yet; that decodes to an invalid Delta.
type Delta struct {
	Seconds int64
	Valid   bool
}

func (d *Delta) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*d = Delta{}
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			*d = Delta{Seconds: int64(math.Round(f)), Valid: true}
		}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("delta: %w", err)
	}
	*d = Delta{Seconds: int64(math.Round(f)), Valid: true}
	return nil
}

func (d Delta) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte(`"Never"`), nil
	}
	return strconv.AppendInt(nil, d.Seconds, 10), nil
}

func (d Delta) String() string {
	if !d.Valid {
		return "Never"
	}
	return fmt.Sprintf("%d seconds", d.Seconds)
}

// Display holds the text fields the dashboard shows, derived from the last applied snapshot.
type Display struct {
	Loaded         bool          `json:"loaded"`
	TotalRecords   int           `json:"total_records"`
	LastPwrTrigger string        `json:"last_pwr_trigger"`
	LastPing       string        `json:"last_ping"`
	PingDelta      string        `json:"ping_delta"`
	ResetDelta     string        `json:"reset_delta"`
	PCStatus       string        `json:"pc_status,omitempty"`
	LastMotion     string        `json:"last_motion,omitempty"`
	ErrorMessage   string        `json:"error_message,omitempty"`
	Samples        []SamplePoint `json:"samples"`
	UpdatedAt      time.Time     `json:"updated_at"`
}
