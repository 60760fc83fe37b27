// Symbol (declaration) extraction.
package extractor

import (
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/smartindex/core/pkg/parser"
	"github.com/smartindex/core/pkg/parser/queries"
	"github.com/smartindex/core/pkg/types"
)

// declNodeSet records the start byte of every identifier node the symbol
// pass already classified as a declaration, so the later reference walk
// (reference.go) can skip it — an identifier is never both a declaration
// and a reference (spec §8 Declaration exclusion invariant).
type declNodeSet map[uint32]bool

func (e *Extractor) extractSymbols(matches []queries.QueryMatch, sourceCode []byte, filePath string, lang parser.Language, fileHash string) ([]types.IndexedSymbol, declNodeSet) {
	symbols := make([]types.IndexedSymbol, 0, len(matches))
	decls := make(declNodeSet, len(matches))

	for _, match := range matches {
		symbol, nameNode := e.buildSymbol(match, sourceCode, filePath, lang, fileHash)
		if symbol == nil {
			continue
		}
		symbols = append(symbols, *symbol)
		decls[uint32(nameNode.StartByte())] = true
	}

	return symbols, decls
}

func (e *Extractor) buildSymbol(match queries.QueryMatch, sourceCode []byte, filePath string, lang parser.Language, fileHash string) (*types.IndexedSymbol, *ts.Node) {
	nameCapture := e.findNameCapture(match.Captures)
	if nameCapture == nil {
		return nil, nil
	}

	name := e.in.Intern(nameCapture.Text)
	kind := e.inferSymbolKind(nameCapture.Category)
	definitionNode := nameCapture.Node

	declarationNode := e.findDeclarationNode(definitionNode)

	rng := e.extractRange(declarationNode)
	if declarationNode == nil {
		rng = e.extractRange(definitionNode)
	}

	containerName, containerKind, fullContainerPath, hasContainer := e.buildContainer(definitionNode, sourceCode, lang)

	isStatic, hasIsStatic, paramCount, hasParamCount, returnType := false, false, 0, false, ""
	if declarationNode != nil {
		isStatic, hasIsStatic, paramCount, hasParamCount, returnType = e.extractSignature(declarationNode, sourceCode)
	}
	_ = returnType // return type isn't part of types.IndexedSymbol; kept for a future metadata key

	sigHash := ""
	if kind == types.SymbolMethod || kind == types.SymbolFunction {
		sigHash = types.SigHash(isStatic, paramCount)
	}

	id := types.NewSymbolID(fileHash, fullContainerPath, name, sigHash)

	sym := &types.IndexedSymbol{
		ID:   id,
		Name: name,
		Kind: kind,
		Location: types.Location{
			URI:    filePath,
			Line:   rng.StartLine,
			Column: rng.StartColumn,
		},
		Range:             rng,
		ContainerName:     containerName,
		ContainerKind:     containerKind,
		FullContainerPath: fullContainerPath,
		HasContainer:      hasContainer,
		IsStatic:          isStatic,
		HasIsStatic:       hasIsStatic,
		ParametersCount:   paramCount,
		HasParamsCount:    hasParamCount,
	}

	return sym, definitionNode
}

func (e *Extractor) findNameCapture(captures []queries.QueryCapture) *queries.QueryCapture {
	for i := range captures {
		if captures[i].Field == "name" {
			return &captures[i]
		}
	}
	return nil
}

func (e *Extractor) inferSymbolKind(category string) types.SymbolKind {
	switch category {
	case "function", "func":
		return types.SymbolFunction
	case "class":
		return types.SymbolClass
	case "interface":
		return types.SymbolInterface
	case "type":
		return types.SymbolType
	case "variable", "var", "let", "const":
		return types.SymbolVariable
	case "constant":
		return types.SymbolConstant
	case "enum":
		return types.SymbolEnum
	case "method":
		return types.SymbolMethod
	case "property", "field":
		return types.SymbolProperty
	default:
		return types.SymbolVariable
	}
}

var declarationNodeTypes = map[string]bool{
	"function_declaration":   true,
	"method_definition":      true,
	"class_declaration":      true,
	"interface_declaration":  true,
	"type_alias_declaration": true,
	"lexical_declaration":    true,
	"variable_declaration":   true,
	"function_signature":     true,
	"method_signature":       true,
}

func (e *Extractor) findDeclarationNode(nameNode *ts.Node) *ts.Node {
	current := nameNode.Parent()
	for depth := 0; current != nil && depth < 10; depth++ {
		if declarationNodeTypes[current.GrammarName()] {
			return current
		}
		current = current.Parent()
	}
	return nil
}

// buildContainer walks the scope chain from the identifier up to the file
// root, producing both the dotted container path used in the SymbolID and
// the immediate container's name/kind used in types.IndexedSymbol.
func (e *Extractor) buildContainer(node *ts.Node, sourceCode []byte, lang parser.Language) (containerName string, containerKind types.SymbolKind, fullPath string, has bool) {
	var chain []string
	immediate := ""
	immediateKind := types.SymbolKind("")

	current := node.Parent()
	for current != nil {
		scopeName, scopeKind := e.extractScope(current, sourceCode, lang)
		if scopeName != "" {
			chain = append([]string{scopeName}, chain...)
			if immediate == "" {
				immediate = scopeName
				immediateKind = scopeKind
			}
		}
		current = current.Parent()
	}

	if len(chain) == 0 {
		return "", "", "", false
	}
	return e.in.Intern(immediate), immediateKind, e.in.Intern(strings.Join(chain, ".")), true
}

func (e *Extractor) extractScope(node *ts.Node, sourceCode []byte, lang parser.Language) (string, types.SymbolKind) {
	switch lang {
	case parser.LanguageTypeScript, parser.LanguageJavaScript:
		switch node.GrammarName() {
		case "class_declaration", "class":
			if n := node.ChildByFieldName("name"); n != nil {
				return string(n.Utf8Text(sourceCode)), types.SymbolClass
			}
		case "interface_declaration":
			if n := node.ChildByFieldName("name"); n != nil {
				return string(n.Utf8Text(sourceCode)), types.SymbolInterface
			}
		case "namespace_declaration", "module_declaration":
			if n := node.ChildByFieldName("name"); n != nil {
				return string(n.Utf8Text(sourceCode)), types.SymbolType
			}
		}
	}
	return "", ""
}

func (e *Extractor) extractRange(node *ts.Node) types.Range {
	if node == nil {
		return types.Range{}
	}
	start := node.StartPosition()
	end := node.EndPosition()
	return types.Range{
		StartLine:   uint32(start.Row + 1),
		StartColumn: uint32(start.Column + 1),
		EndLine:     uint32(end.Row + 1),
		EndColumn:   uint32(end.Column + 1),
	}
}

// extractSignature pulls the staticness and parameter count used to compute
// the overload disambiguator (spec §3), plus the return type (currently
// unused downstream but cheap to keep alongside).
func (e *Extractor) extractSignature(node *ts.Node, sourceCode []byte) (isStatic bool, hasIsStatic bool, paramCount int, hasParamCount bool, returnType string) {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if string(child.Utf8Text(sourceCode)) == "static" {
			isStatic, hasIsStatic = true, true
		}
	}

	if paramsNode := node.ChildByFieldName("parameters"); paramsNode != nil {
		paramCount = int(paramsNode.NamedChildCount())
		hasParamCount = true
	}

	if returnTypeNode := node.ChildByFieldName("return_type"); returnTypeNode != nil {
		for i := uint(0); i < returnTypeNode.ChildCount(); i++ {
			child := returnTypeNode.Child(i)
			if child != nil && child.GrammarName() != ":" {
				returnType = string(child.Utf8Text(sourceCode))
				break
			}
		}
	}

	return
}
