package prompts

import (
	_ "embed"
	"strings"
	"text/template"

	"github.com/jwebster45206/scam-sim/pkg/chat"
)

var (
	//go:embed templates/scammer_system.txt
	scammerSystemText string

	//go:embed templates/scammer_turn.txt
	scammerTurnText string

	//go:embed templates/vendor.txt
	vendorText string
)

var (
	scammerSystemTmpl = template.Must(template.New("scammer_system").Parse(scammerSystemText))
	scammerTurnTmpl   = template.Must(template.New("scammer_turn").Parse(scammerTurnText))
	vendorTmpl        = template.Must(template.New("vendor").Parse(vendorText))
)

// Transcript labels as seen by the model.
const (
	VictimLabel  = "受害者"
	ScammerLabel = "骗子"
)

// FormatHistory renders the transcript as "label: text" lines. System and
// mascot messages are not part of the conversation and are left out.
func FormatHistory(messages []chat.Message) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		var label string
		switch m.Sender {
		case chat.SenderUser:
			label = VictimLabel
		case chat.SenderScammer:
			label = ScammerLabel
		default:
			continue
		}
		lines = append(lines, label+": "+m.Text)
	}
	return strings.Join(lines, "\n")
}

func render(t *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(sb.String()), nil
}
