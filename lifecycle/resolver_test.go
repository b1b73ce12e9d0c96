package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	tmpl := MustTemplate(validDefinition())

	tests := []struct {
		name      string
		state     string
		event     string
		wantNext  string
		wantLegal []string
		wantErr   string
	}{
		{
			name:      "legal event reports next state events",
			state:     "closed",
			event:     "LOCK",
			wantNext:  "locked",
			wantLegal: []string{"UNLOCK", "REMOVE"},
		},
		{
			name:      "transition into terminal state",
			state:     "locked",
			event:     "REMOVE",
			wantNext:  "removed",
			wantLegal: []string{},
		},
		{
			name:    "illegal event lists legal ones in declaration order",
			state:   "closed",
			event:   "REMOVE",
			wantErr: "Unable to update state: provided event (REMOVE) not in valid set of next events: [OPEN, LOCK]",
		},
		{
			name:    "terminal state accepts nothing",
			state:   "removed",
			event:   "OPEN",
			wantErr: "Unable to update state: provided event (OPEN) not in valid set of next events: []",
		},
		{
			name:    "event names are case sensitive",
			state:   "open",
			event:   "close",
			wantErr: "Unable to update state: provided event (close) not in valid set of next events: [CLOSE]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			next, legal, err := Resolve(tmpl, tt.state, tt.event)

			if tt.wantErr != "" {
				require.ErrorIs(t, err, ErrIllegalTransition)
				assert.EqualError(t, err, tt.wantErr)
				assert.Empty(t, next)
				assert.Nil(t, legal)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantNext, next)
			assert.Equal(t, tt.wantLegal, legal)
		})
	}
}

func TestResolve_UnknownState(t *testing.T) {
	t.Parallel()

	tmpl := MustTemplate(validDefinition())

	_, _, err := Resolve(tmpl, "ajar", "OPEN")
	require.ErrorIs(t, err, ErrUnknownState)
	assert.False(t, errors.Is(err, ErrIllegalTransition))

	_, err = LegalEvents(tmpl, "ajar")
	require.ErrorIs(t, err, ErrUnknownState)
}

func TestLegalEvents(t *testing.T) {
	t.Parallel()

	tmpl := MustTemplate(validDefinition())

	events, err := LegalEvents(tmpl, "locked")
	require.NoError(t, err)
	assert.Equal(t, []string{"UNLOCK", "REMOVE"}, events)

	again, err := LegalEvents(tmpl, "locked")
	require.NoError(t, err)
	assert.Equal(t, events, again)
}

func TestIllegalTransitionError(t *testing.T) {
	t.Parallel()

	err := error(&IllegalTransitionError{
		CurrentState: "new",
		Event:        "ARCHIVE",
		LegalEvents:  []string{"APPROVE", "REJECT"},
	})

	assert.EqualError(t, err,
		"Unable to update state: provided event (ARCHIVE) not in valid set of next events: [APPROVE, REJECT]")
	require.ErrorIs(t, err, ErrIllegalTransition)
	require.ErrorIs(t, WrapRecordError("x", err), ErrIllegalTransition)
	assert.False(t, errors.Is(err, ErrConcurrentModification))
}
