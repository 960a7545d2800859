package cache

import (
	"slices"
	"sync"

	"github.com/ogurasousui/personnel-backoffice/internal/core/record"
)

// Graph は「リソース → 連動して無効化すべきリソース」の依存関係です。
type Graph struct {
	mu    sync.RWMutex
	edges map[record.Kind][]record.Kind
}

// NewGraph は空の依存グラフを生成します。
func NewGraph() *Graph {
	return &Graph{edges: make(map[record.Kind][]record.Kind)}
}

// GraphFromEffects は連動処理の Source/Target 宣言から依存グラフを構築します。
func GraphFromEffects(effects ...record.SideEffect) *Graph {
	g := NewGraph()
	for _, effect := range effects {
		g.Declare(effect.Source(), effect.Target())
	}
	return g
}

// Declare は resource の変更が dependent の表示に影響することを登録します。
func (g *Graph) Declare(resource, dependent record.Kind) {
	if resource == dependent {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if slices.Contains(g.edges[resource], dependent) {
		return
	}
	g.edges[resource] = append(g.edges[resource], dependent)
}

// Dependents は resource に直接依存するリソースを返します。
func (g *Graph) Dependents(resource record.Kind) []record.Kind {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.edges[resource])
}

// Closure は resource 自身と、依存関係をたどって到達できるリソースを幅優先で返します。
func (g *Graph) Closure(resource record.Kind) []record.Kind {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := []record.Kind{resource}
	seen := map[record.Kind]struct{}{resource: {}}
	for i := 0; i < len(out); i++ {
		for _, next := range g.edges[out[i]] {
			if _, ok := seen[next]; ok {
				continue
			}
			seen[next] = struct{}{}
			out = append(out, next)
		}
	}
	return out
}
