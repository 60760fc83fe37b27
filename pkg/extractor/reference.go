// Reference (usage) extraction via manual AST walk.
//
// Unlike symbols and imports, references are not pulled from a dedicated
// tree-sitter query: the set of "is this identifier a usage" depends on the
// identifier's immediate parent, which is cheaper and clearer to classify
// with a direct node-kind switch than to encode as query patterns (the
// teacher's query files never attempt this; this is new ground to fit the
// reference/declaration split the original catalog-extraction queries never
// needed).
package extractor

import (
	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/smartindex/core/pkg/types"
)

var identifierNodeTypes = map[string]bool{
	"identifier":                    true,
	"type_identifier":               true,
	"property_identifier":           true,
	"shorthand_property_identifier": true,
}

// bindingFieldsByParent lists, for a given parent node kind, the field names
// whose identifier child is a *binding* occurrence (a declaration or a
// parameter name) rather than a usage. An identifier reached through one of
// these is excluded from the reference set even if the symbol pass never
// separately recorded it as an IndexedSymbol (e.g. a destructured parameter
// name, or a local variable inside a function body).
var bindingFieldsByParent = map[string]map[string]bool{
	"variable_declarator":    {"name": true},
	"required_parameter":     {"pattern": true},
	"optional_parameter":     {"pattern": true},
	"class_declaration":      {"name": true},
	"function_declaration":   {"name": true},
	"method_definition":      {"name": true},
	"interface_declaration":  {"name": true},
	"type_alias_declaration": {"name": true},
	"import_specifier":       {"name": true, "alias": true},
	"namespace_import":       {"name": true},
	"import_clause":          {"name": true},
}

var scopeNodeTypes = map[string]bool{
	"function_declaration": true,
	"function_expression":  true,
	"arrow_function":       true,
	"method_definition":    true,
	"class_declaration":    true,
	"class":                true,
}

func (e *Extractor) extractReferences(tree *ts.Tree, sourceCode []byte, filePath string, decls declNodeSet) []types.IndexedReference {
	var refs []types.IndexedReference
	e.walkForReferences(tree.RootNode(), sourceCode, filePath, decls, nil, &refs)
	return refs
}

func (e *Extractor) walkForReferences(node *ts.Node, sourceCode []byte, filePath string, decls declNodeSet, scopeStack []*ts.Node, refs *[]types.IndexedReference) {
	if node == nil {
		return
	}

	if scopeNodeTypes[node.GrammarName()] {
		scopeStack = append(scopeStack, node)
	}

	if identifierNodeTypes[node.GrammarName()] {
		e.maybeEmitReference(node, sourceCode, filePath, decls, scopeStack, refs)
	}

	count := node.NamedChildCount()
	for i := uint(0); i < count; i++ {
		e.walkForReferences(node.NamedChild(i), sourceCode, filePath, decls, scopeStack, refs)
	}
}

func (e *Extractor) maybeEmitReference(node *ts.Node, sourceCode []byte, filePath string, decls declNodeSet, scopeStack []*ts.Node, refs *[]types.IndexedReference) {
	if decls[uint32(node.StartByte())] {
		return
	}

	parent := node.Parent()
	if parent == nil {
		return
	}
	parentKind := parent.GrammarName()

	fieldName := fieldNameOf(parent, node)
	if bindingFieldsByParent[parentKind][fieldName] {
		return
	}

	isImport := ancestorIsImport(parent)

	name := e.in.Intern(string(node.Utf8Text(sourceCode)))
	start := node.StartPosition()
	end := node.EndPosition()

	ref := types.IndexedReference{
		SymbolName: name,
		Location: types.Location{
			URI:    filePath,
			Line:   uint32(start.Row + 1),
			Column: uint32(start.Column + 1),
		},
		Range: types.Range{
			StartLine:   uint32(start.Row + 1),
			StartColumn: uint32(start.Column + 1),
			EndLine:     uint32(end.Row + 1),
			EndColumn:   uint32(end.Column + 1),
		},
		IsImport:    isImport,
		HasIsImport: true,
	}

	if len(scopeStack) > 0 {
		inner := scopeStack[len(scopeStack)-1]
		ref.ScopeID = e.in.Intern(scopeIdentity(inner))
		ref.HasScopeID = true
		ref.IsLocal = true
		ref.HasIsLocal = true
	}

	*refs = append(*refs, ref)
}

// fieldNameOf returns the field name under which child is attached to
// parent, or "" if the grammar exposes no field name for this slot.
func fieldNameOf(parent, child *ts.Node) string {
	count := parent.ChildCount()
	for i := uint(0); i < count; i++ {
		if c := parent.Child(i); c != nil && c.StartByte() == child.StartByte() && c.EndByte() == child.EndByte() {
			if name := parent.FieldNameForChild(uint32(i)); name != "" {
				return name
			}
		}
	}
	return ""
}

func ancestorIsImport(node *ts.Node) bool {
	for current := node; current != nil; current = current.Parent() {
		switch current.GrammarName() {
		case "import_statement", "import_clause", "import_specifier", "namespace_import":
			return true
		}
	}
	return false
}

// scopeIdentity gives each distinct function/class scope a stable-within-file
// identifier derived from its start byte — stable across repeated walks of
// the same parse, which is all a ScopeID needs to guarantee (spec §3 doesn't
// require it survive edits, only to group references within one extraction).
func scopeIdentity(node *ts.Node) string {
	return node.GrammarName() + "@" + itoa(uint32(node.StartByte()))
}

func itoa(n uint32) string {
	if n == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
