package echo

import "strings"

// Renderer decides whether content can be approximated locally before the
// server renders it.
type Renderer interface {
	CanRender(content string) bool
}

// backendOnly lists markup only the server can render.
var backendOnly = []string{
	"!avatar(",
	"!gravatar(",
	"!modal_link(",
	"$$",
}

var backendOnlyCommands = []string{"/poll", "/todo", "/me"}

// MarkdownGate is the default Renderer. It accepts plain markdown and
// declines widgets, slash commands and display math.
type MarkdownGate struct{}

func (MarkdownGate) CanRender(content string) bool {
	for _, s := range backendOnly {
		if strings.Contains(content, s) {
			return false
		}
	}
	trimmed := strings.TrimLeft(content, " \t\n")
	for _, cmd := range backendOnlyCommands {
		if trimmed == cmd || strings.HasPrefix(trimmed, cmd+" ") || strings.HasPrefix(trimmed, cmd+"\n") {
			return false
		}
	}
	return true
}
