package app

const (
	Name           = "powergo"
	SourceURL      = "https://github.com/jrbox/powergo"
	ConfigFilename = "config.json"
	DBFilename     = "history.db"
	LogFilename    = "powergo.log"
)
