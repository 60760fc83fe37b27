// Action-group framework plugin (spec §4.2 built-in behaviours), modeled on
// the NgRx `createActionGroup({source, events})` pattern: a single call
// produces a value whose properties are virtual methods synthesized from an
// event-key dictionary, so no tree-sitter query can see the "methods" it
// exposes — they only exist after this plugin runs.
package extractor

import (
	"strings"
	"unicode"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/smartindex/core/pkg/parser"
	"github.com/smartindex/core/pkg/types"
)

// extractActionGroups finds every `const X = createActionGroup({ events: {...} })`
// binding in the file and:
//  1. emits the container symbol X plus one virtual-method symbol per event
//     key (name = camelCase(eventKey), metadata carrying the original key);
//  2. emits a PendingReference for every member-call against a binding that
//     is either one of this file's own action-group containers or an
//     imported identifier (the only two cases where the extractor cannot —
//     by design, without cross-file context — tell whether the access is a
//     real action-group virtual-method call; the finalizer resolves these
//     against the cross-file actionGroupLookup and silently leaves any that
//     never match unresolved, per spec §4.9).
func (e *Extractor) extractActionGroups(tree *ts.Tree, sourceCode []byte, filePath string, lang parser.Language, fileHash string, imports []types.ImportInfo) ([]types.IndexedSymbol, []types.PendingReference) {
	if lang != parser.LanguageTypeScript && lang != parser.LanguageJavaScript {
		return nil, nil
	}

	containers := map[string]map[string]string{} // bindingName -> eventKey -> camelName
	var symbols []types.IndexedSymbol

	var findContainers func(node *ts.Node)
	findContainers = func(node *ts.Node) {
		if node == nil {
			return
		}
		if node.GrammarName() == "variable_declarator" {
			nameNode := node.ChildByFieldName("name")
			valueNode := node.ChildByFieldName("value")
			if nameNode != nil && valueNode != nil && valueNode.GrammarName() == "call_expression" {
				if events := matchCreateActionGroup(valueNode, sourceCode); events != nil {
					bindingName := e.in.Intern(string(nameNode.Utf8Text(sourceCode)))
					camelEvents := make(map[string]string, len(events))
					for _, key := range events {
						camelEvents[key] = CamelCase(key)
					}
					containers[bindingName] = camelEvents

					start := nameNode.StartPosition()
					containerSym := types.IndexedSymbol{
						ID:   types.NewSymbolID(fileHash, "", bindingName, ""),
						Name: bindingName,
						Kind: types.SymbolVariable,
						Location: types.Location{
							URI:    filePath,
							Line:   uint32(start.Row + 1),
							Column: uint32(start.Column + 1),
						},
						Range: e.extractRange(node),
						Metadata: map[string]any{
							"actionGroup": types.ActionGroupMetadata{IsGroup: true, Events: camelEvents},
						},
					}
					symbols = append(symbols, containerSym)

					for eventKey, camelName := range camelEvents {
						symbols = append(symbols, types.IndexedSymbol{
							ID:                types.NewSymbolID(fileHash, bindingName, camelName, ""),
							Name:              e.in.Intern(camelName),
							Kind:              types.SymbolVirtualMethod,
							Location:          containerSym.Location,
							Range:             containerSym.Range,
							ContainerName:     bindingName,
							ContainerKind:     types.SymbolVariable,
							FullContainerPath: bindingName,
							HasContainer:      true,
							Metadata: map[string]any{
								"eventKey": eventKey,
							},
						})
					}
				}
			}
		}

		count := node.NamedChildCount()
		for i := uint(0); i < count; i++ {
			findContainers(node.NamedChild(i))
		}
	}
	findContainers(tree.RootNode())

	importedNames := map[string]bool{}
	for _, imp := range imports {
		importedNames[imp.LocalName] = true
	}

	var pending []types.PendingReference
	var findMemberCalls func(node *ts.Node)
	findMemberCalls = func(node *ts.Node) {
		if node == nil {
			return
		}
		if node.GrammarName() == "call_expression" {
			if callee := node.ChildByFieldName("function"); callee != nil && callee.GrammarName() == "member_expression" {
				obj := callee.ChildByFieldName("object")
				prop := callee.ChildByFieldName("property")
				if obj != nil && prop != nil && obj.GrammarName() == "identifier" {
					bindingName := string(obj.Utf8Text(sourceCode))
					if _, isLocalGroup := containers[bindingName]; isLocalGroup || importedNames[bindingName] {
						start := prop.StartPosition()
						end := prop.EndPosition()
						pending = append(pending, types.PendingReference{
							Container:     e.in.Intern(bindingName),
							Member:        e.in.Intern(string(prop.Utf8Text(sourceCode))),
							ContainerName: e.in.Intern(bindingName),
							HasContainer:  true,
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
						})
					}
				}
			}
		}
		count := node.NamedChildCount()
		for i := uint(0); i < count; i++ {
			findMemberCalls(node.NamedChild(i))
		}
	}
	findMemberCalls(tree.RootNode())

	return symbols, pending
}

// matchCreateActionGroup returns the event-key strings of a
// `createActionGroup({..., events: {...}})` call, or nil if callExpr isn't
// one.
func matchCreateActionGroup(callExpr *ts.Node, sourceCode []byte) []string {
	fn := callExpr.ChildByFieldName("function")
	if fn == nil || fn.GrammarName() != "identifier" || string(fn.Utf8Text(sourceCode)) != "createActionGroup" {
		return nil
	}
	args := callExpr.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}
	var configObj *ts.Node
	for i := uint(0); i < args.NamedChildCount(); i++ {
		if c := args.NamedChild(i); c != nil && c.GrammarName() == "object" {
			configObj = c
			break
		}
	}
	if configObj == nil {
		return nil
	}

	for i := uint(0); i < configObj.NamedChildCount(); i++ {
		pair := configObj.NamedChild(i)
		if pair == nil || pair.GrammarName() != "pair" {
			continue
		}
		key := pair.ChildByFieldName("key")
		if key == nil || propertyKeyText(key, sourceCode) != "events" {
			continue
		}
		eventsObj := pair.ChildByFieldName("value")
		if eventsObj == nil || eventsObj.GrammarName() != "object" {
			return []string{}
		}
		var keys []string
		for j := uint(0); j < eventsObj.NamedChildCount(); j++ {
			evPair := eventsObj.NamedChild(j)
			if evPair == nil || evPair.GrammarName() != "pair" {
				continue
			}
			if evKey := evPair.ChildByFieldName("key"); evKey != nil {
				keys = append(keys, propertyKeyText(evKey, sourceCode))
			}
		}
		return keys
	}
	return []string{}
}

func propertyKeyText(node *ts.Node, sourceCode []byte) string {
	text := string(node.Utf8Text(sourceCode))
	if node.GrammarName() == "string" {
		text = strings.Trim(text, "\"'`")
	}
	return text
}

// CamelCase converts an event key like "Load Data" or "load-data" into
// "loadData" (spec §4.2: "name = camelCase(eventKey)"). Exported so
// pkg/finalizer's cross-file resolution tiers (spec §4.9: exact ->
// camelCase -> PascalCase) reuse the exact same transform the extractor used
// to mint the virtual-method name in the first place.
func CamelCase(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return ""
	}
	var b strings.Builder
	for i, w := range words {
		if i == 0 {
			b.WriteString(strings.ToLower(w[:1]) + w[1:])
			continue
		}
		b.WriteString(strings.ToUpper(w[:1]) + strings.ToLower(w[1:]))
	}
	return b.String()
}

// PascalCase converts an event key into PascalCase, used by the finalizer's
// third resolution tier (spec §4.9: exact -> camelCase -> PascalCase).
func PascalCase(s string) string {
	c := CamelCase(s)
	if c == "" {
		return ""
	}
	return strings.ToUpper(c[:1]) + c[1:]
}
