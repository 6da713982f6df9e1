package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/go-go-golems/lawchat/pkg/conversation"
	"github.com/rs/zerolog/log"
)

// MarkdownRenderer turns an answer into terminal output. Nil means plain
// text.
type MarkdownRenderer func(markdown string, width int) string

// GlamourRenderer renders markdown with glamour's dark style, falling back to
// the raw text when rendering fails.
func GlamourRenderer(markdown string, width int) string {
	opts := []glamour.TermRendererOption{glamour.WithStandardStyle("dark")}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		log.Debug().Err(err).Msg("could not build markdown renderer")
		return markdown
	}
	out, err := r.Render(markdown)
	if err != nil {
		log.Debug().Err(err).Msg("could not render markdown")
		return markdown
	}
	return strings.TrimRight(out, "\n")
}

// RenderLog lays the conversation out top to bottom.
func RenderLog(l conversation.Log, width int, md MarkdownRenderer, spinner string) string {
	var sb strings.Builder
	for i, m := range l.Messages() {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(renderMessage(m, width, md, spinner))
	}
	return sb.String()
}

func renderMessage(m conversation.Message, width int, md MarkdownRenderer, spinner string) string {
	switch {
	case m.Origin == conversation.OriginUser:
		return userStyle.Render("You") + "\n" + m.Text
	case m.Pending:
		return assistantStyle.Render("LawGPT") + "\n" + spinner + " " + m.Text
	case m.Error:
		return errorStyle.Render(m.Text)
	case m.Notice:
		return noticeStyle.Render(m.Text)
	}

	body := m.Text
	if md != nil {
		body = md(m.Text, width)
	}
	out := assistantStyle.Render("LawGPT") + "\n" + body
	if len(m.Sources) > 0 {
		out += "\n" + sourceStyle.Render("Sources: "+strings.Join(m.Sources, "; "))
	}
	return out
}
