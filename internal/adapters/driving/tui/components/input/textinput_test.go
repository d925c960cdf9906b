package input

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPrompt(t *testing.T) {
	p := NewPrompt(nil, "Ask:", "What do you want to know?")

	require.NotNil(t, p)
	assert.NotNil(t, p.styles)
	assert.True(t, p.Focused())
	assert.Empty(t, p.Value())
	assert.NotNil(t, p.Init())
}

func TestPrompt_Typing(t *testing.T) {
	p := NewPrompt(nil, "Ask:", "")

	for _, r := range "orbit" {
		p, _ = p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}

	assert.Equal(t, "orbit", p.Value())
	assert.Contains(t, p.View(), "Ask:")
}

func TestPrompt_FocusAndReset(t *testing.T) {
	p := NewPrompt(nil, "Ask:", "")
	p.SetValue("rockets")

	p.Blur()
	assert.False(t, p.Focused())
	p.Focus()
	assert.True(t, p.Focused())

	p.Reset()
	assert.Empty(t, p.Value())
}

func TestPrompt_SetWidth(t *testing.T) {
	p := NewPrompt(nil, "Ask:", "")

	p.SetWidth(100)
	assert.Equal(t, 100, p.Width())
	assert.Equal(t, 88, p.textinput.Width)

	p.SetWidth(10)
	assert.Equal(t, 20, p.textinput.Width)
}
