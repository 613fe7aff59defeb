package core

// CommandType defines what entered the agent's event queue.
type CommandType string

const (
	CmdLinkUp              CommandType = "linkUp"
	CmdLinkDown            CommandType = "linkDown"
	CmdSessionConnected    CommandType = "sessionConnected"
	CmdSessionDisconnected CommandType = "sessionDisconnected"
	CmdSessionError        CommandType = "sessionError"
	CmdMessage             CommandType = "message"
	CmdSchedule            CommandType = "schedule"
	CmdTimer               CommandType = "timer"
)

// Command is the envelope for everything that asks the agent to act: link and
// session callbacks, inbound messages, scheduled relay commands and timer fires.
type Command struct {
	Type    CommandType
	Topic   string
	Payload []byte
	Err     error

	// Run is the timer callback for CmdTimer.
	Run func()
}

// CommandChannel is the single channel that the agent loop consumes.
type CommandChannel chan Command
