package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartindex/core/pkg/interner"
	"github.com/smartindex/core/pkg/parser"
	"github.com/smartindex/core/pkg/parser/queries"
	"github.com/smartindex/core/pkg/types"
)

func setupExtractor(_ *testing.T) *Extractor {
	pm := parser.NewParserManager(nil)
	qm := queries.NewQueryManager(pm, nil)
	return NewExtractor(pm, qm, interner.New(), nil)
}

func TestExtractFile_SymbolsAndReferences(t *testing.T) {
	ex := setupExtractor(t)

	source := []byte(`
class UserService {
  getUser(id: string): string {
    return id;
  }
}

function loadUser(service: UserService) {
  return service.getUser("42");
}
`)

	result, err := ex.ExtractFile("service.ts", source)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, parser.LanguageTypeScript, result.Language)
	assert.NotEmpty(t, result.Symbols, "expected class/method/function symbols")

	var sawMethod, sawFunction bool
	for _, s := range result.Symbols {
		if s.Name == "getUser" && s.Kind == types.SymbolMethod {
			sawMethod = true
			assert.True(t, s.HasContainer)
			assert.Equal(t, "UserService", s.ContainerName)
		}
		if s.Name == "loadUser" && s.Kind == types.SymbolFunction {
			sawFunction = true
		}
	}
	assert.True(t, sawMethod, "expected getUser method symbol")
	assert.True(t, sawFunction, "expected loadUser function symbol")

	// "service" in service.getUser(...) is a reference, not a declaration,
	// even though "service" also names the loadUser parameter binding.
	var sawServiceReference bool
	for _, r := range result.References {
		if r.SymbolName == "service" {
			sawServiceReference = true
		}
	}
	assert.True(t, sawServiceReference, "expected a reference to the service binding")
}

func TestExtractFile_DeclarationExclusion(t *testing.T) {
	ex := setupExtractor(t)

	source := []byte(`function greet(name: string) { return name; }`)
	result, err := ex.ExtractFile("greet.ts", source)
	require.NoError(t, err)

	for _, r := range result.References {
		assert.NotEqual(t, "greet", r.SymbolName, "function name must never appear as a reference")
	}
}

func TestExtractFile_Imports(t *testing.T) {
	ex := setupExtractor(t)

	source := []byte(`
import Default, { named as alias } from './mod';
import * as ns from 'lodash';
`)
	result, err := ex.ExtractFile("imports.ts", source)
	require.NoError(t, err)
	require.NotEmpty(t, result.Imports)

	var sawDefault, sawNamed, sawNamespace bool
	for _, imp := range result.Imports {
		switch {
		case imp.IsDefault:
			sawDefault = true
			assert.Equal(t, "./mod", imp.ModuleSpecifier)
		case imp.IsNamespace:
			sawNamespace = true
			assert.Equal(t, "lodash", imp.ModuleSpecifier)
		case imp.HasExportedName:
			sawNamed = true
		}
	}
	assert.True(t, sawDefault, "expected default import")
	assert.True(t, sawNamed, "expected named import with alias")
	assert.True(t, sawNamespace, "expected namespace import")
}

func TestExtractFile_ActionGroup(t *testing.T) {
	ex := setupExtractor(t)

	source := []byte(`
const PageActions = createActionGroup({
  source: 'Page',
  events: {
    'Load Data': emptyProps(),
    'Load Failed': props<{ error: string }>(),
  },
});
`)
	result, err := ex.ExtractFile("page.actions.ts", source)
	require.NoError(t, err)

	var container *types.IndexedSymbol
	var virtualMethods []types.IndexedSymbol
	for i := range result.Symbols {
		s := &result.Symbols[i]
		if s.Name == "PageActions" {
			container = s
		}
		if s.Kind == types.SymbolVirtualMethod {
			virtualMethods = append(virtualMethods, *s)
		}
	}
	require.NotNil(t, container, "expected PageActions container symbol")
	meta, ok := container.Metadata["actionGroup"].(types.ActionGroupMetadata)
	require.True(t, ok)
	assert.True(t, meta.IsGroup)
	assert.Equal(t, "loadData", meta.Events["Load Data"])

	require.Len(t, virtualMethods, 2)
	names := map[string]bool{}
	for _, vm := range virtualMethods {
		names[vm.Name] = true
		assert.Equal(t, "PageActions", vm.ContainerName)
	}
	assert.True(t, names["loadData"])
	assert.True(t, names["loadFailed"])
}

func TestExtractFile_ActionGroupPendingReference(t *testing.T) {
	ex := setupExtractor(t)

	source := []byte(`
import { PageActions } from './page.actions';

function dispatchLoad(dispatch: (a: unknown) => void) {
  dispatch(PageActions.loadData());
}
`)
	result, err := ex.ExtractFile("consumer.ts", source)
	require.NoError(t, err)

	require.NotEmpty(t, result.PendingReferences)
	p := result.PendingReferences[0]
	assert.Equal(t, "PageActions", p.Container)
	assert.Equal(t, "loadData", p.Member)
}

func TestCamelCase(t *testing.T) {
	assert.Equal(t, "loadData", CamelCase("Load Data"))
	assert.Equal(t, "loadData", CamelCase("load-data"))
	assert.Equal(t, "LoadData", PascalCase("Load Data"))
}
