package lifecycle

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singleState(kind string) *Template {
	return MustTemplate(Definition{Kind: kind, InitialState: "only", States: []string{"only"}})
}

func TestRegistry_RegisterLookup(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	door := MustTemplate(validDefinition())

	require.NoError(t, reg.Register(door))

	got, err := reg.Lookup("door")
	require.NoError(t, err)
	assert.Same(t, door, got)

	_, err = reg.Lookup("window")
	require.ErrorIs(t, err, ErrUnknownTemplateKind)

	var tmplErr *TemplateError
	require.ErrorAs(t, err, &tmplErr)
	assert.Equal(t, "window", tmplErr.Kind)
}

func TestRegistry_Duplicate(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	require.NoError(t, reg.Register(singleState("a")))

	err := reg.Register(singleState("a"))
	require.ErrorIs(t, err, ErrDuplicateTemplateKind)
}

func TestRegistry_Nil(t *testing.T) {
	t.Parallel()

	err := NewRegistry().Register(nil)
	require.ErrorIs(t, err, ErrInvalidTemplate)
}

func TestRegistry_Freeze(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	require.NoError(t, reg.Register(singleState("a")))
	assert.False(t, reg.Frozen())

	reg.Freeze()
	reg.Freeze()
	assert.True(t, reg.Frozen())

	err := reg.Register(singleState("b"))
	require.ErrorIs(t, err, ErrRegistryFrozen)

	_, err = reg.Lookup("a")
	require.NoError(t, err)
}

func TestRegistry_FreezeRacesRegister(t *testing.T) {
	t.Parallel()

	for round := range 20 {
		reg := NewRegistry()

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			accepted []string
		)

		for i := range 16 {
			wg.Go(func() {
				kind := fmt.Sprintf("kind-%d-%d", round, i)
				if reg.Register(singleState(kind)) == nil {
					mu.Lock()
					accepted = append(accepted, kind)
					mu.Unlock()
				}
			})
		}

		reg.Freeze()
		frozenKinds := reg.Kinds()

		wg.Wait()

		assert.ElementsMatch(t, frozenKinds, accepted)
		assert.ElementsMatch(t, frozenKinds, reg.Kinds())
	}
}

func TestRegistry_MustRegister(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.MustRegister(singleState("a"), singleState("b"))

	assert.Panics(t, func() {
		reg.MustRegister(singleState("a"))
	})
}

func TestRegistry_KindsNaturalOrder(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.MustRegister(
		singleState("stage-10"),
		singleState("stage-2"),
		singleState("stage-1"),
	)

	assert.Equal(t, []string{"stage-1", "stage-2", "stage-10"}, reg.Kinds())
	assert.Empty(t, NewRegistry().Kinds())
}

func TestRegistry_ConcurrentLookup(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()

	var wg sync.WaitGroup

	for i := range 20 {
		wg.Go(func() {
			assert.NoError(t, reg.Register(singleState(fmt.Sprintf("kind-%d", i))))
		})

		wg.Go(func() {
			_, _ = reg.Lookup(fmt.Sprintf("kind-%d", i))
		})
	}

	wg.Wait()

	assert.Len(t, reg.Kinds(), 20)
}
