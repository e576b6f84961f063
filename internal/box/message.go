// Package box speaks the power box wire protocol: newline-delimited JSON
// frames tagged with a "type" field, and JSON command objects tagged with
// a "cmd" field.
package box

import (
	"encoding/json"
	"fmt"
)

// MessageKind is the wire "type" tag of an inbound frame.
type MessageKind string

const (
	KindLiveData        MessageKind = "live_data"
	KindStatus          MessageKind = "status"
	KindScriptList      MessageKind = "script_list"
	KindError           MessageKind = "error"
	KindCommandResponse MessageKind = "command_response"
	KindConnectionInfo  MessageKind = "connection"
	KindHeartbeat       MessageKind = "heartbeat"
	KindUnknown         MessageKind = "unknown"
)

// DeviceReading is one device sample inside a live data frame. Current is
// reported in amps, Voltage in volts, Power in watts.
type DeviceReading struct {
	Name    string  `json:"name"`
	On      bool    `json:"state"`
	Voltage float64 `json:"voltage"`
	Current float64 `json:"current"`
	Power   float64 `json:"power"`
}

// LiveData is one streamed telemetry sample. The box timestamps it with a
// wall-clock string only, elapsed milliseconds are assigned on ingestion.
type LiveData struct {
	Timestamp     string          `json:"timestamp"`
	ScriptRunning bool            `json:"script_running"`
	ScriptTime    float64         `json:"script_time"`
	Recording     bool            `json:"recording"`
	Locked        bool            `json:"locked"`
	SafetyStop    bool            `json:"safety_stop"`
	Devices       []DeviceReading `json:"devices"`
}

// Status is the full box state snapshot returned for get_status.
type Status struct {
	Timestamp         string `json:"timestamp"`
	Version           string `json:"version"`
	Locked            bool   `json:"locked"`
	SafetyStop        bool   `json:"safety_stop"`
	Recording         bool   `json:"recording"`
	ScriptRunning     bool   `json:"script_running"`
	ScriptPaused      bool   `json:"script_paused"`
	CurrentScript     string `json:"current_script"`
	DarkMode          bool   `json:"dark_mode"`
	ExternalSD        bool   `json:"external_sd"`
	InternalSD        bool   `json:"internal_sd"`
	EthernetConnected bool   `json:"ethernet_connected"`
	FanSpeed          int    `json:"fan_speed"`
	UpdateRate        int    `json:"update_rate"`
	StreamActive      bool   `json:"stream_active"`
	StreamInterval    int    `json:"stream_interval"`
	IPAddress         string `json:"ip_address"`
	TCPPort           int    `json:"tcp_port"`
	UDPPort           int    `json:"udp_port"`
}

// ScriptInfo describes one stored automation script.
type ScriptInfo struct {
	Name        string `json:"name"`
	Filename    string `json:"filename"`
	DateCreated string `json:"date_created"`
	LastUsed    string `json:"last_used"`
}

type ScriptList struct {
	Count   int          `json:"count"`
	Scripts []ScriptInfo `json:"scripts"`
}

// BoxError is an error frame pushed by the box, for example in response to
// an unknown command.
type BoxError struct {
	Message string `json:"message"`
}

// CommandResponse acknowledges a command. The box echoes selected command
// arguments, absent echoes stay nil.
type CommandResponse struct {
	Cmd        string `json:"cmd"`
	Success    bool   `json:"success"`
	Device     string `json:"device"`
	State      *bool  `json:"state"`
	Value      *int   `json:"value"`
	Interval   *int   `json:"interval"`
	ScriptName string `json:"script_name"`
}

// ConnectionInfo is the greeting the box sends when a TCP client attaches.
type ConnectionInfo struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

type Heartbeat struct {
	Timestamp string `json:"timestamp"`
	UptimeMS  int64  `json:"uptime"`
}

// Unknown preserves frames with an unrecognized or missing type tag.
type Unknown struct {
	Type   string
	Fields map[string]any
}

// Message is a decoded inbound frame. Exactly the payload matching Kind is
// non-nil.
type Message struct {
	Kind            MessageKind
	LiveData        *LiveData
	Status          *Status
	ScriptList      *ScriptList
	Error           *BoxError
	CommandResponse *CommandResponse
	ConnectionInfo  *ConnectionInfo
	Heartbeat       *Heartbeat
	Unknown         *Unknown
}

// DecodeError reports a frame that could not be decoded. The offending
// bytes ride along for diagnostics.
type DecodeError struct {
	Tag   string
	Frame []byte
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Tag == "" {
		return fmt.Sprintf("decode frame: %v", e.Err)
	}

	return fmt.Sprintf("decode %s frame: %v", e.Tag, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DecodeMessage classifies one wire frame by its type tag. Frames that are
// not JSON objects fail, frames with an unrecognized tag decode to
// KindUnknown so diagnostic consumers can still see them.
func DecodeMessage(frame []byte) (Message, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(frame, &probe); err != nil {
		return Message{}, &DecodeError{Frame: frame, Err: err}
	}

	switch MessageKind(probe.Type) {
	case KindLiveData:
		var payload LiveData
		if err := json.Unmarshal(frame, &payload); err != nil {
			return Message{}, &DecodeError{Tag: "live_data", Frame: frame, Err: err}
		}

		return Message{Kind: KindLiveData, LiveData: &payload}, nil
	case KindStatus:
		var payload Status
		if err := json.Unmarshal(frame, &payload); err != nil {
			return Message{}, &DecodeError{Tag: "status", Frame: frame, Err: err}
		}

		return Message{Kind: KindStatus, Status: &payload}, nil
	case KindScriptList:
		var payload ScriptList
		if err := json.Unmarshal(frame, &payload); err != nil {
			return Message{}, &DecodeError{Tag: "script_list", Frame: frame, Err: err}
		}

		return Message{Kind: KindScriptList, ScriptList: &payload}, nil
	case KindError:
		var payload BoxError
		if err := json.Unmarshal(frame, &payload); err != nil {
			return Message{}, &DecodeError{Tag: "error", Frame: frame, Err: err}
		}

		return Message{Kind: KindError, Error: &payload}, nil
	case KindCommandResponse:
		var payload CommandResponse
		if err := json.Unmarshal(frame, &payload); err != nil {
			return Message{}, &DecodeError{Tag: "command_response", Frame: frame, Err: err}
		}

		return Message{Kind: KindCommandResponse, CommandResponse: &payload}, nil
	case KindConnectionInfo:
		var payload ConnectionInfo
		if err := json.Unmarshal(frame, &payload); err != nil {
			return Message{}, &DecodeError{Tag: "connection", Frame: frame, Err: err}
		}

		return Message{Kind: KindConnectionInfo, ConnectionInfo: &payload}, nil
	case KindHeartbeat:
		var payload Heartbeat
		if err := json.Unmarshal(frame, &payload); err != nil {
			return Message{}, &DecodeError{Tag: "heartbeat", Frame: frame, Err: err}
		}

		return Message{Kind: KindHeartbeat, Heartbeat: &payload}, nil
	default:
		var fields map[string]any
		if err := json.Unmarshal(frame, &fields); err != nil {
			return Message{}, &DecodeError{Frame: frame, Err: err}
		}

		return Message{Kind: KindUnknown, Unknown: &Unknown{Type: probe.Type, Fields: fields}}, nil
	}
}
