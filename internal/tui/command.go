package tui

import "strings"

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses a command string (without the leading ':').
func ParseCommand(input string) Command {
	input = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(input), ":"))
	name, args, _ := strings.Cut(input, " ")
	return Command{Name: strings.ToLower(name), Args: strings.TrimSpace(args)}
}

// ParseTarget splits "general > lunch plans" into stream and topic. A
// missing topic is empty.
func ParseTarget(args string) (stream, topic string) {
	stream, topic, _ = strings.Cut(args, ">")
	return strings.TrimPrefix(strings.TrimSpace(stream), "#"), strings.TrimSpace(topic)
}
