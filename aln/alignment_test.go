package aln

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolReusesReturnedGroups(t *testing.T) {
	p := NewPool(2)
	g1 := p.Get()
	g1.Alignments = append(g1.Alignments, Alignment{TranscriptID: 7})
	p.Put(g1)

	g2 := p.Get()
	assert.Empty(t, g2.Alignments, "a group fetched from the pool must be reset")
}

func TestPoolGrowsBeyondInitialCapacity(t *testing.T) {
	p := NewPool(1)
	g1 := p.Get()
	g2 := p.Get() // pool exhausted, must allocate
	assert.NotNil(t, g1)
	assert.NotNil(t, g2)
}

func TestGroupResetKeepsBackingArray(t *testing.T) {
	g := &Group{}
	g.Alignments = append(g.Alignments, Alignment{}, Alignment{})
	before := cap(g.Alignments)
	g.Reset()
	assert.Equal(t, 0, len(g.Alignments))
	assert.Equal(t, before, cap(g.Alignments))
}
