package channel

import "strings"

// Command is a slash command understood by every channel.
type Command string

// Known commands.
const (
	CommandStart     Command = "start"
	CommandStop      Command = "stop"
	CommandClear     Command = "clear"
	CommandStatus    Command = "status"
	CommandKnowledge Command = "knowledge"
	CommandHelp      Command = "help"
)

var knownCommands = map[Command]bool{
	CommandStart:     true,
	CommandStop:      true,
	CommandClear:     true,
	CommandStatus:    true,
	CommandKnowledge: true,
	CommandHelp:      true,
}

// ParseCommand recognizes "/name[@bot] [args]". ok is false for text that
// is not a slash command. Unknown names are returned lowercased with
// Known() false so callers can answer with help.
func ParseCommand(text string) (cmd Command, args string, ok bool) {
	text = strings.TrimSpace(text)
	if len(text) < 2 || text[0] != '/' {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	head, _, _ = strings.Cut(head, "@")
	if head == "" {
		return "", "", false
	}
	return Command(strings.ToLower(head)), strings.TrimSpace(rest), true
}

// Known reports whether c is one of the supported commands.
func (c Command) Known() bool { return knownCommands[c] }
