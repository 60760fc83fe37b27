// Import/export extraction: ImportInfo and ReExportInfo construction.
package extractor

import (
	"strings"

	"github.com/smartindex/core/pkg/parser"
	"github.com/smartindex/core/pkg/parser/queries"
	"github.com/smartindex/core/pkg/types"
)

// extractImportsAndReExports processes the import-query matches into
// import bindings and `export ... from` re-exports. Plain `export` of a
// locally declared symbol needs no separate representation — the symbol
// itself is already in the index.
func (e *Extractor) extractImportsAndReExports(matches []queries.QueryMatch, sourceCode []byte, filePath string, lang parser.Language) ([]types.ImportInfo, []types.ReExportInfo) {
	var imports []types.ImportInfo
	reExportsBySpecifier := map[string]*types.ReExportInfo{}

	for _, match := range matches {
		switch {
		case e.isImportMatch(match):
			imports = append(imports, e.buildImportInfos(match, sourceCode, lang)...)
		case e.isExportMatch(match):
			e.accumulateReExport(match, reExportsBySpecifier)
		}
	}

	reExports := make([]types.ReExportInfo, 0, len(reExportsBySpecifier))
	for _, re := range reExportsBySpecifier {
		reExports = append(reExports, *re)
	}
	return imports, reExports
}

func (e *Extractor) isImportMatch(match queries.QueryMatch) bool {
	for _, capture := range match.Captures {
		if strings.HasPrefix(capture.Category, "import") {
			return true
		}
	}
	return false
}

func (e *Extractor) isExportMatch(match queries.QueryMatch) bool {
	for _, capture := range match.Captures {
		if strings.HasPrefix(capture.Category, "export") {
			return true
		}
	}
	return false
}

// buildImportInfos turns one import-statement match into its constituent
// bindings: a namespace import, a default import, and/or any number of
// named imports (a statement can combine a default and named imports in one
// `import Foo, { bar, baz as qux } from '...'`).
func (e *Extractor) buildImportInfos(match queries.QueryMatch, sourceCode []byte, lang parser.Language) []types.ImportInfo {
	sourceCapture := e.findImportCapture(match.Captures, "source")
	if sourceCapture == nil {
		sourceCapture = e.findImportCapture(match.Captures, "commonjs.source")
	}
	if sourceCapture == nil {
		sourceCapture = e.findImportCapture(match.Captures, "module")
	}
	if sourceCapture == nil {
		sourceCapture = e.findImportCapture(match.Captures, "path")
	}
	sourceText := ""
	if sourceCapture != nil {
		sourceText = sourceCapture.Text
	} else if len(match.Captures) > 0 {
		// Specifier, default and namespace patterns capture only the bound
		// identifier; the module string comes from the enclosing statement.
		n := match.Captures[0].Node
		for n != nil && n.Kind() != "import_statement" {
			n = n.Parent()
		}
		if n != nil && n.ChildByFieldName("source") != nil {
			sourceText = n.ChildByFieldName("source").Utf8Text(sourceCode)
		}
	}
	if sourceText == "" {
		return nil
	}
	source := e.in.Intern(strings.Trim(sourceText, "\"'"))

	var out []types.ImportInfo

	if namespaceCapture := e.findImportCapture(match.Captures, "namespace"); namespaceCapture != nil {
		out = append(out, types.ImportInfo{
			LocalName:       e.in.Intern(namespaceCapture.Text),
			ModuleSpecifier: source,
			IsNamespace:     true,
		})
	} else if namespaceCapture := e.findImportCapture(match.Captures, "commonjs.namespace"); namespaceCapture != nil {
		out = append(out, types.ImportInfo{
			LocalName:       e.in.Intern(namespaceCapture.Text),
			ModuleSpecifier: source,
			IsNamespace:     true,
		})
	}

	if defaultCapture := e.findImportCapture(match.Captures, "default"); defaultCapture != nil {
		out = append(out, types.ImportInfo{
			LocalName:       e.in.Intern(defaultCapture.Text),
			ModuleSpecifier: source,
			IsDefault:       true,
		})
	}

	for i, capture := range match.Captures {
		if capture.Field != "named" && capture.Field != "name" && capture.Field != "commonjs.named" {
			continue
		}
		localName := capture.Text
		exportedName := localName
		if alias := e.findImportCaptureAfter(match.Captures, "alias", i); alias != nil {
			exportedName = localName
			localName = alias.Text
		} else if p := capture.Node.Parent(); p != nil && p.ChildByFieldName("alias") != nil {
			localName = p.ChildByFieldName("alias").Utf8Text(sourceCode)
		}
		out = append(out, types.ImportInfo{
			LocalName:       e.in.Intern(localName),
			ModuleSpecifier: source,
			ExportedName:    e.in.Intern(exportedName),
			HasExportedName: true,
		})
	}

	return out
}

// accumulateReExport merges one `export ... from '...'` match into the
// per-module-specifier ReExportInfo, combining multiple `export { a }`,
// `export { b }` statements from the same module and handling `export *`.
func (e *Extractor) accumulateReExport(match queries.QueryMatch, bySpecifier map[string]*types.ReExportInfo) {
	sourceCapture := e.findImportCapture(match.Captures, "source")
	if sourceCapture == nil {
		return
	}
	source := e.in.Intern(strings.Trim(sourceCapture.Text, "\"'"))

	entry, ok := bySpecifier[source]
	if !ok {
		entry = &types.ReExportInfo{ModuleSpecifier: source}
		bySpecifier[source] = entry
	}

	isAll := false
	for _, capture := range match.Captures {
		if capture.Category == "export" && (capture.Field == "all" || strings.Contains(capture.Field, "star")) {
			isAll = true
		}
	}
	if isAll {
		entry.IsAll = true
		return
	}

	if nameCapture := e.findImportCapture(match.Captures, "name"); nameCapture != nil {
		entry.ExportedNames = append(entry.ExportedNames, e.in.Intern(nameCapture.Text))
	}
}

func (e *Extractor) findImportCapture(captures []queries.QueryCapture, field string) *queries.QueryCapture {
	for i := range captures {
		if captures[i].Field == field {
			return &captures[i]
		}
	}
	return nil
}

func (e *Extractor) findImportCaptureAfter(captures []queries.QueryCapture, field string, after int) *queries.QueryCapture {
	for i := after + 1; i < len(captures); i++ {
		if captures[i].Field == field {
			return &captures[i]
		}
	}
	return nil
}
