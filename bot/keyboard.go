package bot

// KeyboardBuilder assembles an inline keyboard row by row.
type KeyboardBuilder struct {
	rows [][]Button
}

func NewKeyboard() *KeyboardBuilder {
	return &KeyboardBuilder{}
}

// Row appends a row of buttons. Empty rows are dropped.
func (k *KeyboardBuilder) Row(buttons ...Button) *KeyboardBuilder {
	if len(buttons) > 0 {
		k.rows = append(k.rows, buttons)
	}
	return k
}

// CallbackButton creates a button that fires a callback payload.
func CallbackButton(text, payload string) Button {
	return Button{Type: "callback", Text: text, Payload: payload}
}

// LinkButton creates a button that opens a URL.
func LinkButton(text, url string) Button {
	return Button{Type: "link", Text: text, URL: url}
}

// AsAttachments renders the keyboard as message attachments, or nil when
// no rows were added.
func (k *KeyboardBuilder) AsAttachments() []Attachment {
	if len(k.rows) == 0 {
		return nil
	}
	return []Attachment{{
		Type:    "inline_keyboard",
		Payload: KeyboardPayload{Buttons: k.rows},
	}}
}
