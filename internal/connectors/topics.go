package connectors

const (
	TopicConnStatus      = "conn.status"
	TopicLiveData        = "box.live_data"
	TopicBoxStatus       = "box.status"
	TopicScriptList      = "box.script_list"
	TopicBoxError        = "box.error"
	TopicCommandResponse = "box.command_response"
	TopicConnectionInfo  = "box.connection"
	TopicHeartbeat       = "box.heartbeat"
	TopicUnknown         = "box.unknown"
	TopicFileEvent       = "file.event"
	TopicRawLineIn       = "raw.line.in"
	TopicRawLineOut      = "raw.line.out"
)
