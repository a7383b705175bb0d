package assistant_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/mindful/pkg/assistant"
)

func TestFallback(t *testing.T) {
	assert.Equal(t, assistant.Fallback("en"), assistant.Fallback("fr-FR"))
	assert.Equal(t, assistant.Fallback("pt"), assistant.Fallback("pt_BR"))
	assert.NotEqual(t, assistant.Fallback("en"), assistant.Fallback("es-MX"))
	assert.NotEmpty(t, assistant.Fallback(""))
}

func TestSequencer_DiscardsSupersededResponses(t *testing.T) {
	var seq assistant.Sequencer

	first := seq.Next()
	second := seq.Next()
	assert.False(t, seq.Current(first))
	assert.True(t, seq.Current(second))

	var shown []string
	assert.False(t, seq.Apply(first, func() { shown = append(shown, "stale") }))
	assert.True(t, seq.Apply(second, func() { shown = append(shown, "fresh") }))
	assert.Equal(t, []string{"fresh"}, shown)
}

func TestSequencer_Concurrent(t *testing.T) {
	var seq assistant.Sequencer
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq.Next()
		}()
	}
	wg.Wait()
	assert.True(t, seq.Current(assistant.Token(50)))
}
