package bot

import "strings"

// Command is a parsed chat command. The set of commands is closed: every
// implementation lives in this file and is handled by Bot.dispatch.
type Command interface {
	command()
}

// StartCommand greets the user and shows the menu.
type StartCommand struct{}

// HelpCommand lists the available commands.
type HelpCommand struct{}

// AddCommand subscribes to a feed. Empty fields are asked for interactively.
type AddCommand struct {
	URL  string
	Name string
}

// DeleteCommand removes every subscription with the given name.
// An empty name asks the user to pick one.
type DeleteCommand struct {
	Name string
}

// ListCommand shows the subscription names.
type ListCommand struct{}

// RunCommand starts periodic checking.
type RunCommand struct{}

// StopCommand stops periodic checking.
type StopCommand struct{}

// UnknownCommand is any command the bot does not recognize.
type UnknownCommand struct {
	Name string
}

func (StartCommand) command()   {}
func (HelpCommand) command()    {}
func (AddCommand) command()     {}
func (DeleteCommand) command()  {}
func (ListCommand) command()    {}
func (RunCommand) command()     {}
func (StopCommand) command()    {}
func (UnknownCommand) command() {}

// Command names as typed by users.
const (
	cmdStart    = "start"
	cmdHelp     = "help"
	cmdAdd      = "add"
	cmdDelete   = "delete"
	cmdList     = "list"
	cmdRun      = "run"
	cmdBreakRun = "break_run"
	cmdStop     = "stop"
)

// ParseCommand turns a command name and its argument string into a Command.
// Format of /add arguments: [<url> [<name...>]].
func ParseCommand(name, args string) Command {
	args = strings.TrimSpace(args)

	switch strings.ToLower(name) {
	case cmdStart:
		return StartCommand{}
	case cmdHelp:
		return HelpCommand{}
	case cmdAdd:
		url, rest, _ := strings.Cut(args, " ")
		return AddCommand{URL: strings.TrimSpace(url), Name: strings.TrimSpace(rest)}
	case cmdDelete:
		return DeleteCommand{Name: args}
	case cmdList:
		return ListCommand{}
	case cmdRun:
		return RunCommand{}
	case cmdBreakRun, cmdStop:
		return StopCommand{}
	default:
		return UnknownCommand{Name: name}
	}
}
