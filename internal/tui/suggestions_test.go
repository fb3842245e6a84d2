package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuggestions_Commands(t *testing.T) {
	s := NewSuggestions()

	s.Update("/sh")
	require.True(t, s.IsVisible())
	sel := s.Selected()
	require.NotNil(t, sel)
	assert.Equal(t, "share", sel.Text)
	assert.Equal(t, "/share ", s.Complete(*sel))

	s.Update("/share bob@example.com")
	assert.False(t, s.IsVisible())

	s.Update("plain text")
	assert.False(t, s.IsVisible())
}

func TestSuggestions_Relations(t *testing.T) {
	s := NewSuggestions()

	s.Update("@gro")
	assert.False(t, s.IsVisible(), "no names known yet")

	s.SetRelations([]string{"Groceries", "Work", "Garden"})
	require.True(t, s.IsVisible())
	assert.Equal(t, "Groceries", s.Selected().Text)
	assert.Equal(t, "@Groceries", s.Complete(*s.Selected()))

	s.Update("@g")
	s.Next()
	assert.Equal(t, "Garden", s.Selected().Text)
	s.Prev()
	s.Prev()
	assert.Equal(t, "Garden", s.Selected().Text)
}
