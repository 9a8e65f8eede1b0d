package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/quillfeed/quill/internal/apierr"
)

// field is one labelled text input. key matches the API's validation field
// name so server errors land under the right input.
type field struct {
	key   string
	label string
	input textinput.Model
}

func newField(key, label, placeholder string, secret bool) field {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = 255
	in.Prompt = ""
	if secret {
		in.EchoMode = textinput.EchoPassword
		in.EchoCharacter = '•'
	}
	return field{key: key, label: label, input: in}
}

// form is a vertical stack of inputs with per-field errors and a form-level
// message.
type form struct {
	title   string
	fields  []field
	focus   int
	errors  map[string][]string
	message string
}

func newForm(title string, fields ...field) form {
	f := form{title: title, fields: fields}
	f.focusField(0)
	return f
}

func (f *form) focusField(i int) tea.Cmd {
	if len(f.fields) == 0 {
		return nil
	}
	if i < 0 {
		i = len(f.fields) - 1
	}
	f.focus = i % len(f.fields)
	for idx := range f.fields {
		f.fields[idx].input.Blur()
	}
	return f.fields[f.focus].input.Focus()
}

func (f *form) next() tea.Cmd { return f.focusField(f.focus + 1) }
func (f *form) prev() tea.Cmd { return f.focusField(f.focus - 1) }

// onLast reports whether the focused input is the final one.
func (f *form) onLast() bool { return f.focus == len(f.fields)-1 }

func (f *form) update(msg tea.Msg) tea.Cmd {
	if len(f.fields) == 0 {
		return nil
	}
	var cmd tea.Cmd
	f.fields[f.focus].input, cmd = f.fields[f.focus].input.Update(msg)
	return cmd
}

func (f form) value(key string) string {
	for _, fl := range f.fields {
		if fl.key == key {
			return fl.input.Value()
		}
	}
	return ""
}

func (f *form) setValue(key, v string) {
	for i := range f.fields {
		if f.fields[i].key == key {
			f.fields[i].input.SetValue(v)
			return
		}
	}
}

// setError shows err on the form. Validation failures are split per field.
func (f *form) setError(err error) {
	f.errors = apierr.FieldErrors(err)
	f.message = errorText(err)
}

func (f *form) clearErrors() {
	f.errors = nil
	f.message = ""
}

// reset empties every input and returns focus to the first one.
func (f *form) reset() tea.Cmd {
	for i := range f.fields {
		f.fields[i].input.Reset()
	}
	f.clearErrors()
	return f.focusField(0)
}

func (f form) view(styles Styles, width int) string {
	inputWidth := width - 4
	if inputWidth > 60 {
		inputWidth = 60
	}
	if inputWidth < 10 {
		inputWidth = 10
	}

	var b strings.Builder
	b.WriteString(styles.AccentText.Bold(true).Render(f.title))
	b.WriteString("\n\n")
	for i, fl := range f.fields {
		b.WriteString(styles.MutedText.Render(fl.label))
		b.WriteString("\n")
		box := styles.Input
		if i == f.focus {
			box = styles.FocusedInput
		}
		fl.input.Width = inputWidth - 4
		b.WriteString(box.Width(inputWidth).Render(fl.input.View()))
		b.WriteString("\n")
		for _, msg := range f.errors[fl.key] {
			b.WriteString(styles.DangerText.Render("  " + msg))
			b.WriteString("\n")
		}
	}
	if f.message != "" && len(f.errors) == 0 {
		b.WriteString("\n")
		b.WriteString(styles.DangerText.Render(f.message))
		b.WriteString("\n")
	}
	return b.String()
}

// handleFormKey applies the navigation keys shared by every form. submit
// is true when enter was pressed on the last input.
func handleFormKey(f *form, msg tea.KeyMsg) (cmd tea.Cmd, submit bool) {
	switch msg.String() {
	case "tab", "down":
		return f.next(), false
	case "shift+tab", "up":
		return f.prev(), false
	case "enter":
		if f.onLast() {
			return nil, true
		}
		return f.next(), false
	}
	return f.update(msg), false
}
