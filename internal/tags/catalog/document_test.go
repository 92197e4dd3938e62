package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	tags "linesim/internal/tags/domain"
)

const plantDocument = `{
  "name": "Plant",
  "tagType": "Folder",
  "tags": [
    {
      "name": "Filler",
      "tagType": "UdtInstance",
      "tags": [
        {"name": "Level", "tagType": "AtomicTag", "dataType": "Float8", "value": 72.5},
        {"name": "Count", "tagType": "AtomicTag", "dataType": "Int4", "value": 12.0},
        {"name": "Running", "tagType": "AtomicTag", "dataType": "Boolean", "defaultValue": true},
        {"name": "Recipe", "tagType": "AtomicTag", "dataType": "String"},
        {"name": "Level", "tagType": "AtomicTag", "dataType": "Float8", "value": 1}
      ]
    },
    {"name": "Ratio", "tagType": "AtomicTag", "value": 3},
    {"name": "Script", "tagType": "Expression"},
    {"tagType": "AtomicTag", "dataType": "Int4"}
  ]
}`

func TestLoadDocument_FlattensTree(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	defs, err := LoadDocument(strings.NewReader(plantDocument), zap.New(core))
	require.NoError(t, err)

	byPath := make(map[string]tags.Definition, len(defs))
	for _, def := range defs {
		byPath[def.Path] = def
		assert.True(t, def.Writable, def.Path)
	}
	require.Len(t, defs, 5)
	assert.Equal(t, "Plant.Filler.Level", defs[0].Path)
	assert.Equal(t, tags.Float(72.5), byPath["Plant.Filler.Level"].Value, "first duplicate wins")
	assert.Equal(t, tags.Int(12), byPath["Plant.Filler.Count"].Value)
	assert.Equal(t, tags.Bool(true), byPath["Plant.Filler.Running"].Value)
	assert.Equal(t, tags.String(""), byPath["Plant.Filler.Recipe"].Value)
	assert.Equal(t, tags.Float(3), byPath["Plant.Ratio"].Value)

	assert.Equal(t, 1, logs.FilterMessage("duplicate tag path, skipping").Len())
	assert.Equal(t, 1, logs.FilterMessage("tag document node without name").Len())
	assert.Equal(t, 1, logs.FilterMessage("tag document node ignored").Len())
}

func TestLoadDocument_SingleAtomicRoot(t *testing.T) {
	defs, err := LoadDocument(strings.NewReader(`{"name":"Speed","tagType":"AtomicTag","dataType":"Int4","value":5}`), nil)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "Speed", defs[0].Path)
	assert.Equal(t, tags.Int(5), defs[0].Value)
}

func TestLoadDocument_Errors(t *testing.T) {
	_, err := LoadDocument(strings.NewReader(`{"name":"Empty","tagType":"Folder"}`), nil)
	assert.ErrorIs(t, err, ErrEmptyDocument)

	_, err = LoadDocument(strings.NewReader(`{not json`), nil)
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags.json")
	require.NoError(t, os.WriteFile(path, []byte(plantDocument), 0o600))
	defs, err := LoadFile(path, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, defs, 5)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.Error(t, err)
}

func TestKindForDataType(t *testing.T) {
	assert.Equal(t, tags.KindFloat, KindForDataType("Float4"))
	assert.Equal(t, tags.KindFloat, KindForDataType(""))
	assert.Equal(t, tags.KindInt, KindForDataType("Int8"))
	assert.Equal(t, tags.KindBool, KindForDataType("Boolean"))
	assert.Equal(t, tags.KindString, KindForDataType("DateTime"))
}

func TestLine_PathsUniqueAndEngineTagsReadOnly(t *testing.T) {
	seen := make(map[string]bool)
	for _, def := range Line() {
		assert.False(t, seen[def.Path], "duplicate %s", def.Path)
		seen[def.Path] = true
		assert.False(t, def.Value.IsZero(), def.Path)
	}
	byPath := make(map[string]tags.Definition)
	for _, def := range Line() {
		byPath[def.Path] = def
	}
	assert.False(t, byPath[MMAState].Writable)
	assert.False(t, byPath[MMATotalProduction].Writable)
	assert.True(t, byPath[MMAGuardDoor1].Writable)
}
