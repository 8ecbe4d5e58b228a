package trafficlight

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAggregatePriority(t *testing.T) {
	assert.Equal(t, StatusGray, Aggregate([]Status{StatusGreen, StatusRed, StatusGray}))
	assert.Equal(t, StatusRed, Aggregate([]Status{StatusGreen, StatusYellow, StatusRed}))
	assert.Equal(t, StatusYellow, Aggregate([]Status{StatusGreen, StatusYellow}))
	assert.Equal(t, StatusGreen, Aggregate([]Status{StatusGreen, StatusGreen}))
	assert.Equal(t, StatusGray, Aggregate(nil))
}

func TestCounterStatus(t *testing.T) {
	assert.Equal(t, StatusGreen, CounterStatus(50, 50))
	assert.Equal(t, StatusGreen, CounterStatus(80, 50))
	assert.Equal(t, StatusYellow, CounterStatus(1, 50))
	assert.Equal(t, StatusYellow, CounterStatus(49, 50))
	assert.Equal(t, StatusRed, CounterStatus(0, 50))
}

func staticLeaf(s Status) Leaf {
	return LeafFunc(func(ctx context.Context, now time.Time) (NodeResult, error) {
		return NodeResult{Status: s}, nil
	})
}

func TestTreeEvaluate(t *testing.T) {
	tree := NewTree()
	tree.AddSection("root", "")
	tree.AddSection("prospecting", "root")
	tree.AddSection("content", "root")
	tree.AddLeaf("prospecting.gb", "prospecting", staticLeaf(StatusGreen))
	tree.AddLeaf("prospecting.mg", "prospecting", staticLeaf(StatusYellow))
	tree.AddLeaf("content.newsletter", "content", staticLeaf(StatusGreen))

	results := tree.Evaluate(context.Background(), time.Now())

	assert.Equal(t, StatusGreen, results["prospecting.gb"].Status)
	assert.Equal(t, StatusYellow, results["prospecting"].Status)
	assert.Equal(t, StatusGreen, results["content"].Status)
	assert.Equal(t, StatusYellow, results["root"].Status, "yellow child propagates to root")
}

func TestTreeEvaluateGrayDominates(t *testing.T) {
	tree := NewTree()
	tree.AddSection("root", "")
	tree.AddLeaf("a", "root", staticLeaf(StatusGreen))
	tree.AddLeaf("b", "root", ComingSoon())

	results := tree.Evaluate(context.Background(), time.Now())
	assert.Equal(t, StatusGray, results["b"].Status)
	assert.Equal(t, StatusGray, results["root"].Status)
}

func TestTreeEvaluateBrokenLeafIsGray(t *testing.T) {
	tree := NewTree()
	tree.AddSection("root", "")
	tree.AddLeaf("ok", "root", staticLeaf(StatusGreen))
	tree.AddLeaf("broken", "root", LeafFunc(func(ctx context.Context, now time.Time) (NodeResult, error) {
		return NodeResult{}, errors.New("store unavailable")
	}))

	results := tree.Evaluate(context.Background(), time.Now())
	assert.Equal(t, StatusGray, results["broken"].Status)
	assert.Equal(t, "store unavailable", results["broken"].Metadata["error"])
	assert.Equal(t, StatusGray, results["root"].Status)
}

func TestTreeEvaluateEmptySection(t *testing.T) {
	tree := NewTree()
	tree.AddSection("empty", "")
	results := tree.Evaluate(context.Background(), time.Now())
	assert.Equal(t, StatusGray, results["empty"].Status)
}
