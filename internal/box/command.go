package box

// Command is an outbound JSON command object. The box dispatches on the
// "cmd" field and ignores unknown extra fields.
type Command map[string]any

func (c Command) Name() string {
	name, _ := c["cmd"].(string)

	return name
}

const (
	minFanSpeed = 0
	maxFanSpeed = 255

	minUpdateRateMS = 10
	maxUpdateRateMS = 5000

	minStreamIntervalMS = 50
	maxStreamIntervalMS = 5000
)

// SetOutput switches one device. The device argument is the wire short
// name, use device.Registry.ShortFor to translate a display name.
func SetOutput(shortName string, on bool) Command {
	return Command{"cmd": "set_output", "device": shortName, "state": on}
}

// AllOutputs switches every device at once.
func AllOutputs(on bool) Command {
	return Command{"cmd": "all_outputs", "state": on}
}

// Lock engages or releases the front panel lock.
func Lock(on bool) Command {
	return Command{"cmd": "lock", "state": on}
}

// SafetyStop engages or releases the safety stop. Engaging drops every
// output on the box side.
func SafetyStop(on bool) Command {
	return Command{"cmd": "safety_stop", "state": on}
}

func StartRecording() Command {
	return Command{"cmd": "start_recording"}
}

func StopRecording() Command {
	return Command{"cmd": "stop_recording"}
}

func LoadScript(name string) Command {
	return Command{"cmd": "load_script", "name": name}
}

func StartScript() Command {
	return Command{"cmd": "start_script"}
}

func PauseScript() Command {
	return Command{"cmd": "pause_script"}
}

func StopScript() Command {
	return Command{"cmd": "stop_script"}
}

// SetFanSpeed sets the PWM fan duty. Values are clamped to the range the
// box accepts, mirroring its own constraint.
func SetFanSpeed(value int) Command {
	return Command{"cmd": "set_fan_speed", "value": clampInt(value, minFanSpeed, maxFanSpeed)}
}

// SetUpdateRate sets the box sampling period in milliseconds, clamped to
// the range the box accepts.
func SetUpdateRate(ms int) Command {
	return Command{"cmd": "set_update_rate", "value": clampInt(ms, minUpdateRateMS, maxUpdateRateMS)}
}

func GetStatus() Command {
	return Command{"cmd": "get_status"}
}

func GetScripts() Command {
	return Command{"cmd": "get_scripts"}
}

// StartStream asks the box to push live data frames every intervalMS.
// For UDP clients udpTargetIP and udpTargetPort tell the box where to send
// the datagrams; leave them zero for stream-over-TCP.
func StartStream(intervalMS int, udpTargetIP string, udpTargetPort int) Command {
	cmd := Command{"cmd": "start_stream", "interval": clampInt(intervalMS, minStreamIntervalMS, maxStreamIntervalMS)}
	if udpTargetIP != "" {
		cmd["udp_target_ip"] = udpTargetIP
	}
	if udpTargetPort > 0 {
		cmd["udp_target_port"] = udpTargetPort
	}

	return cmd
}

func StopStream() Command {
	return Command{"cmd": "stop_stream"}
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}

	return v
}
