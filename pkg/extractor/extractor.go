package extractor

import (
	"fmt"
	"log/slog"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/smartindex/core/pkg/interner"
	"github.com/smartindex/core/pkg/parser"
	"github.com/smartindex/core/pkg/parser/queries"
)

// Extractor performs unified extraction: symbols, references, imports,
// re-exports, and pending (action-group) references, all from one
// tree-sitter parse.
//
// An Extractor is not safe for concurrent use — pkg/workerpool constructs
// one per worker goroutine, paired with that worker's own interner.
type Extractor struct {
	parserManager *parser.ParserManager
	queryManager  *queries.QueryManager
	logger        *slog.Logger
	in            *interner.Interner
}

// NewExtractor creates a unified extractor bound to one worker's interner.
func NewExtractor(pm *parser.ParserManager, qm *queries.QueryManager, in *interner.Interner, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if in == nil {
		in = interner.New()
	}
	return &Extractor{
		parserManager: pm,
		queryManager:  qm,
		logger:        logger,
		in:            in,
	}
}

// ExtractFile parses a file once and extracts every value pkg/types needs
// from the resulting tree:
//  1. detect language, parse
//  2. run symbol/import queries on the shared tree
//  3. build declarations (types.IndexedSymbol) with minted SymbolIDs
//  4. build imports/re-exports
//  5. collect declared type annotations
//  6. walk the tree manually for reference sites, excluding declaration
//     identifiers (spec §8 Declaration exclusion invariant)
//  7. run the action-group and role-marker plugins
func (e *Extractor) ExtractFile(filePath string, sourceCode []byte) (*PerFileResult, error) {
	lang := parser.DetectLanguage(filePath)
	if lang == parser.LanguageUnknown {
		return nil, fmt.Errorf("unsupported language for file: %s", filePath)
	}
	isTSX := parser.IsTSXFile(filePath)

	tree, err := e.parserManager.Parse(sourceCode, lang, isTSX)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file %s: %w", filePath, err)
	}
	defer tree.Close()

	symbolQuery, err := e.queryManager.GetQuery(lang, queries.QueryTypeSymbols, isTSX)
	if err != nil {
		return nil, fmt.Errorf("failed to get symbol query for %s: %w", lang, err)
	}
	importQuery, err := e.queryManager.GetQuery(lang, queries.QueryTypeImports, isTSX)
	if err != nil {
		return nil, fmt.Errorf("failed to get import query for %s: %w", lang, err)
	}

	symbolMatches, err := e.queryManager.ExecuteQuery(tree, symbolQuery, sourceCode)
	if err != nil {
		return nil, fmt.Errorf("failed to execute symbol query: %w", err)
	}
	importMatches, err := e.queryManager.ExecuteQuery(tree, importQuery, sourceCode)
	if err != nil {
		return nil, fmt.Errorf("failed to execute import query: %w", err)
	}

	fileHash := filePathHash8(filePath)

	symbols, declNodes := e.extractSymbols(symbolMatches, sourceCode, filePath, lang, fileHash)

	imports, reExports := e.extractImportsAndReExports(importMatches, sourceCode, filePath, lang)

	typeAnnotations := make(map[string]string)
	if lang == parser.LanguageTypeScript || lang == parser.LanguageJavaScript {
		typeAnnotations = e.extractTypeAnnotations(tree, sourceCode, lang, isTSX)
	}

	references := e.extractReferences(tree, sourceCode, filePath, declNodes)

	agSymbols, agPending := e.extractActionGroups(tree, sourceCode, filePath, lang, fileHash, imports)
	symbols = append(symbols, agSymbols...)

	e.applyRoleMarkers(tree, sourceCode, symbols)

	e.logger.Debug("extracted file",
		"file", filePath,
		"language", lang.String(),
		"symbols", len(symbols),
		"references", len(references),
		"imports", len(imports),
		"pending", len(agPending))

	return &PerFileResult{
		FilePath:          filePath,
		Language:          lang,
		Symbols:           symbols,
		References:        references,
		Imports:           imports,
		ReExports:         reExports,
		PendingReferences: agPending,
		TypeAnnotations:   typeAnnotations,
	}, nil
}

// extractTypeAnnotations is unchanged in mechanics from the teacher's
// version: a dedicated tree-sitter query maps variable/parameter/property
// names to their declared types. The map is returned to the caller in
// PerFileResult.TypeAnnotations; no other extraction step reads it.
func (e *Extractor) extractTypeAnnotations(tree *ts.Tree, sourceCode []byte, lang parser.Language, isTSX ...bool) map[string]string {
	annotations := make(map[string]string)

	typesQuery, err := e.queryManager.GetQuery(lang, queries.QueryTypeTypes, isTSX...)
	if err != nil {
		e.logger.Debug("failed to get types query", "language", lang.String(), "error", err)
		return annotations
	}

	matches, err := e.queryManager.ExecuteQuery(tree, typesQuery, sourceCode)
	if err != nil {
		e.logger.Debug("failed to execute types query", "error", err)
		return annotations
	}

	for _, match := range matches {
		varName := ""
		var typeNames, typeArgs []string
		typeBase := ""

		for _, capture := range match.Captures {
			switch capture.Name {
			case "type.var.name":
				varName = capture.Text
			case "type.name":
				if capture.Text != "" {
					typeNames = append(typeNames, capture.Text)
				}
			case "type.base":
				typeBase = capture.Text
			case "type.arg":
				if capture.Text != "" {
					typeArgs = append(typeArgs, capture.Text)
				}
			}
		}
		if varName == "" {
			continue
		}

		finalType := ""
		switch {
		case len(typeArgs) > 0:
			finalType = typeArgs[0]
		case len(typeNames) > 0:
			finalType = typeNames[0]
		case typeBase != "":
			finalType = typeBase
		}
		if finalType != "" {
			annotations[e.in.Intern(varName)] = e.in.Intern(finalType)
		}
	}

	return annotations
}
