// Role-marker framework plugin (spec §4.2 built-in behaviours): action
// creator / effect / reducer factories attach a role marker to the produced
// symbol's metadata, e.g. `export const loadUsers = createAction('[Users] Load');`
package extractor

import (
	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/smartindex/core/pkg/types"
)

var roleFactories = map[string]string{
	"createAction":  "action",
	"createEffect":  "effect",
	"createReducer": "reducer",
}

// applyRoleMarkers mutates symbols in place, attaching
// Metadata["role"] = RoleMetadata{Role: ...} to any symbol whose binding
// value is a recognized factory call.
func (e *Extractor) applyRoleMarkers(tree *ts.Tree, sourceCode []byte, symbols []types.IndexedSymbol) {
	byNameLine := make(map[string]int, len(symbols))
	for i, s := range symbols {
		byNameLine[s.Name+"@"+itoa(s.Location.Line)] = i
	}

	var walk func(node *ts.Node)
	walk = func(node *ts.Node) {
		if node == nil {
			return
		}
		if node.GrammarName() == "variable_declarator" {
			nameNode := node.ChildByFieldName("name")
			valueNode := node.ChildByFieldName("value")
			if nameNode != nil && valueNode != nil && valueNode.GrammarName() == "call_expression" {
				if fn := valueNode.ChildByFieldName("function"); fn != nil && fn.GrammarName() == "identifier" {
					if role, ok := roleFactories[string(fn.Utf8Text(sourceCode))]; ok {
						name := string(nameNode.Utf8Text(sourceCode))
						line := uint32(nameNode.StartPosition().Row + 1)
						if idx, found := byNameLine[name+"@"+itoa(line)]; found {
							if symbols[idx].Metadata == nil {
								symbols[idx].Metadata = map[string]any{}
							}
							symbols[idx].Metadata["role"] = types.RoleMetadata{Role: role}
						}
					}
				}
			}
		}
		count := node.NamedChildCount()
		for i := uint(0); i < count; i++ {
			walk(node.NamedChild(i))
		}
	}
	walk(tree.RootNode())
}
