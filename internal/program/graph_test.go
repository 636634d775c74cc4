package program

import (
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTradeGraph creates trade_definition -> market, plus a separate purchase root.
func buildTradeGraph(t *testing.T) *Graph {
	g := New()
	require.NoError(t, g.Add(NewBlock("market", "trade_definition_market").WithField("SYMBOL_LIST", "R_100")))
	require.NoError(t, g.Add(NewBlock("trade", "trade_definition").WithChild("MARKET", "market")))
	require.NoError(t, g.Add(NewBlock("purchase", "purchase").WithField("PURCHASE_LIST", "CALL")))
	return g
}

func TestGraph_AddAndQuery(t *testing.T) {
	g := buildTradeGraph(t)

	assert.Equal(t, 3, g.Len())
	parent, slot, ok := g.Parent("market")
	assert.True(t, ok)
	assert.Equal(t, "trade", parent)
	assert.Equal(t, "MARKET", slot)

	var roots []string
	for _, b := range g.TopBlocks() {
		roots = append(roots, b.ID)
	}
	assert.Equal(t, []string{"trade", "purchase"}, roots)

	err := g.Add(NewBlock("trade", "trade_definition"))
	assert.ErrorIs(t, err, ErrBlockExists)

	err = g.Add(NewBlock("orphan", "purchase").WithChild("X", "missing"))
	assert.ErrorIs(t, err, ErrUnknownBlock)

	err = g.Add(NewBlock("thief", "trade_definition").WithChild("MARKET", "market"))
	assert.Error(t, err, "a connected block cannot be adopted twice")
}

func TestGraph_BlocksIsRestartableAndDetached(t *testing.T) {
	g := buildTradeGraph(t)

	first := slices.Collect(g.Blocks())
	second := slices.Collect(g.Blocks())
	assert.Len(t, first, 3)
	assert.Equal(t, first, second)

	// Mutating a yielded block must not touch the graph.
	first[0].Slots["SYMBOL_LIST"] = Slot{Value: "changed"}
	b, _ := g.Block("market")
	v, _ := b.Field("SYMBOL_LIST")
	assert.Equal(t, "R_100", v)
}

func TestGraph_ConnectRejectsCycles(t *testing.T) {
	g := buildTradeGraph(t)
	require.NoError(t, g.Connect("purchase", "NEXT", "trade"))

	err := g.Connect("market", "LOOP", "purchase")
	assert.ErrorIs(t, err, ErrCycle, "purchase is already an ancestor of market")

	err = g.Move("purchase", "market", "LOOP")
	assert.ErrorIs(t, err, ErrCycle)

	err = g.Move("trade", "trade", "SELF")
	assert.ErrorIs(t, err, ErrCycle)

	// The rejected moves left the structure alone.
	parent, _, _ := g.Parent("trade")
	assert.Equal(t, "purchase", parent)
}

func TestGraph_MoveAndDisconnect(t *testing.T) {
	g := buildTradeGraph(t)

	require.NoError(t, g.Move("market", "purchase", "MARKET"))
	parent, _, _ := g.Parent("market")
	assert.Equal(t, "purchase", parent)
	trade, _ := g.Block("trade")
	assert.Empty(t, trade.Children())

	require.NoError(t, g.Move("market", "", ""))
	_, _, ok := g.Parent("market")
	assert.False(t, ok)
	assert.Len(t, g.TopBlocks(), 3)

	assert.NoError(t, g.Disconnect("market"), "disconnecting a root is a no-op")
	assert.ErrorIs(t, g.Disconnect("ghost"), ErrUnknownBlock)
}

func TestGraph_ConnectReplacesOccupiedSlot(t *testing.T) {
	g := buildTradeGraph(t)
	require.NoError(t, g.Add(NewBlock("market2", "trade_definition_market")))

	require.NoError(t, g.Connect("trade", "MARKET", "market2"))

	_, _, ok := g.Parent("market")
	assert.False(t, ok, "the displaced block becomes a root")
	parent, _, _ := g.Parent("market2")
	assert.Equal(t, "trade", parent)
}

func TestGraph_RemoveDeletesSubtree(t *testing.T) {
	g := buildTradeGraph(t)

	require.NoError(t, g.Remove("trade"))
	assert.Equal(t, 1, g.Len())
	assert.False(t, g.Has("market"))
	assert.ErrorIs(t, g.Remove("trade"), ErrUnknownBlock)
}

func TestGraph_SetField(t *testing.T) {
	g := buildTradeGraph(t)

	require.NoError(t, g.SetField("purchase", "PURCHASE_LIST", "PUT"))
	b, _ := g.Block("purchase")
	v, ok := b.Field("PURCHASE_LIST")
	assert.True(t, ok)
	assert.Equal(t, "PUT", v)

	assert.ErrorIs(t, g.SetField("trade", "MARKET", "x"), ErrSlotConnected)
	assert.ErrorIs(t, g.SetField("ghost", "A", "x"), ErrUnknownBlock)
}

func TestGraph_DeclareVariableReusesName(t *testing.T) {
	g := New()
	assert.Equal(t, "v1", g.DeclareVariable("v1", "stake"))
	assert.Equal(t, "v1", g.DeclareVariable("v2", "stake"))
	assert.Equal(t, "v3", g.DeclareVariable("v3", "size"))
	assert.Len(t, g.Variables(), 2)
}

func TestGraph_Merge(t *testing.T) {
	frag := func() *Fragment {
		return &Fragment{
			Blocks: []*Block{
				NewBlock("num", "math_number").WithField("NUM", "10"),
				NewBlock("set", "variables_set").WithField("VAR", "stake").WithChild("VALUE", "num"),
			},
			Variables: []Variable{{ID: "var-stake", Name: "stake"}},
		}
	}

	t.Run("Success", func(t *testing.T) {
		g := buildTradeGraph(t)
		require.NoError(t, g.Merge(frag()))
		assert.Equal(t, 5, g.Len())
		parent, _, _ := g.Parent("num")
		assert.Equal(t, "set", parent)
		assert.Equal(t, []Variable{{ID: "var-stake", Name: "stake"}}, g.Variables())
	})

	t.Run("CollisionLeavesGraphUntouched", func(t *testing.T) {
		g := buildTradeGraph(t)
		f := frag()
		f.Blocks[1].ID = "trade"
		err := g.Merge(f)
		assert.ErrorIs(t, err, ErrBlockExists)
		assert.Equal(t, 3, g.Len())
		assert.Empty(t, g.Variables())
	})

	t.Run("CycleRejected", func(t *testing.T) {
		g := New()
		f := &Fragment{Blocks: []*Block{
			NewBlock("a", "math_arithmetic").WithChild("A", "b"),
			NewBlock("b", "math_arithmetic").WithChild("A", "a"),
		}}
		assert.ErrorIs(t, g.Merge(f), ErrCycle)
		assert.Equal(t, 0, g.Len())
	})

	t.Run("DanglingChildRejected", func(t *testing.T) {
		g := New()
		f := &Fragment{Blocks: []*Block{NewBlock("a", "math_arithmetic").WithChild("A", "zzz")}}
		assert.ErrorIs(t, g.Merge(f), ErrUnknownBlock)
	})
}

func TestFragment_Reassign(t *testing.T) {
	f := &Fragment{Blocks: []*Block{
		NewBlock("num", "math_number").WithField("NUM", "1"),
		NewBlock("set", "variables_set").WithChild("VALUE", "num"),
	}}
	n := 0
	mapping := f.Reassign(func() string {
		n++
		return fmt.Sprintf("fresh-%d", n)
	})

	assert.Equal(t, map[string]string{"num": "fresh-1", "set": "fresh-2"}, mapping)
	assert.Equal(t, []string{"fresh-1", "fresh-2"}, f.IDs())
	assert.Equal(t, []string{"fresh-2"}, f.TopIDs())
	assert.Equal(t, []string{"fresh-1"}, f.Blocks[1].Children())
	assert.NoError(t, f.Validate())
}
