package transcript

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/workdesk/internal/domain"
)

func TestResetLeavesSingleGreeting(t *testing.T) {
	l := NewLog()
	_, err := l.Append(domain.SpeakerUser, "hi", nil)
	require.NoError(t, err)
	_, err = l.Begin()
	require.NoError(t, err)

	g := l.Reset("Hello Ana. I am your Wellness Coach. How can I assist you today?")

	entries := l.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, g, entries[0])
	assert.Equal(t, domain.SpeakerAssistant, entries[0].Speaker)
	assert.Empty(t, l.OpenID())
}

func TestSingleOpenSlot(t *testing.T) {
	l := NewLog()
	e, err := l.Begin()
	require.NoError(t, err)

	_, err = l.Begin()
	assert.True(t, errors.Is(err, ErrEntryOpen))
	_, err = l.Append(domain.SpeakerAssistant, "notice", nil)
	assert.True(t, errors.Is(err, ErrEntryOpen))

	require.NoError(t, l.Update(e.ID, "Revenue"))
	require.NoError(t, l.Update(e.ID, "Revenue is up"))
	sealed, err := l.Seal(e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Revenue is up", sealed.Text)

	assert.True(t, errors.Is(l.Update(e.ID, "late"), ErrNotOpen))
	_, err = l.Seal(e.ID)
	assert.True(t, errors.Is(err, ErrNotOpen))

	_, err = l.Append(domain.SpeakerAssistant, "notice", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, l.Len())
}

func TestAppendKeepsAttachmentMetadataOnly(t *testing.T) {
	l := NewLog()
	e, err := l.Append(domain.SpeakerUser, "", &domain.Attachment{Filename: "q3.pdf", MIMEType: "application/pdf", Data: "JVBERi0="})
	require.NoError(t, err)
	require.NotNil(t, e.Attachment)
	assert.Equal(t, "q3.pdf", e.Attachment.Filename)
	assert.Empty(t, e.Attachment.Data)
}

func TestLast(t *testing.T) {
	l := NewLog()
	for _, s := range []string{"a", "b", "c", "d"} {
		_, err := l.Append(domain.SpeakerUser, s, nil)
		require.NoError(t, err)
	}

	last := l.Last(3)
	require.Len(t, last, 3)
	assert.Equal(t, "b", last[0].Text)
	assert.Len(t, l.Last(10), 4)
	assert.Nil(t, l.Last(0))
}

func TestConcurrentReadersDuringStream(t *testing.T) {
	l := NewLog()
	e, err := l.Begin()
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = l.Entries()
		}
	}()
	text := ""
	for i := 0; i < 100; i++ {
		text += "x"
		require.NoError(t, l.Update(e.ID, text))
	}
	wg.Wait()

	sealed, err := l.Seal(e.ID)
	require.NoError(t, err)
	assert.Len(t, sealed.Text, 100)
}
