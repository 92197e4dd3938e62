package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	tags "linesim/internal/tags/domain"
)

// NodeType is the tagType discriminator of a tag document node.
type NodeType string

const (
	NodeFolder      NodeType = "Folder"
	NodeUdtType     NodeType = "UdtType"
	NodeUdtInstance NodeType = "UdtInstance"
	NodeAtomicTag   NodeType = "AtomicTag"
)

// ErrEmptyDocument is returned when a document defines no tags.
var ErrEmptyDocument = errors.New("catalog: empty tag document")

// Node is one entry of an exported tag tree.
type Node struct {
	Name         string          `json:"name"`
	TagType      NodeType        `json:"tagType"`
	DataType     string          `json:"dataType,omitempty"`
	Value        json.RawMessage `json:"value,omitempty"`
	DefaultValue json.RawMessage `json:"defaultValue,omitempty"`
	Tags         []Node          `json:"tags,omitempty"`
}

func (n Node) isContainer() bool {
	switch n.TagType {
	case NodeFolder, NodeUdtType, NodeUdtInstance, "":
		return true
	default:
		return false
	}
}

// LoadFile reads a tag document from disk.
func LoadFile(path string, logger *zap.Logger) ([]tags.Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	defer f.Close()
	return LoadDocument(f, logger)
}

// LoadDocument walks a tag document once into flat dotted definitions.
// The root node name is the first path segment. Folders and UDT nodes
// contribute a segment; atomic tags become writable leaves. Duplicate
// paths keep the first definition.
func LoadDocument(r io.Reader, logger *zap.Logger) ([]tags.Definition, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var root Node
	if err := json.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("catalog: decode tag document: %w", err)
	}

	w := walker{seen: make(map[string]struct{}), logger: logger}
	var prefix []string
	if root.Name != "" {
		prefix = []string{root.Name}
	}
	if root.isContainer() {
		w.walk(prefix, root.Tags)
	} else {
		w.walk(nil, []Node{root})
	}
	if len(w.defs) == 0 {
		return nil, ErrEmptyDocument
	}
	return w.defs, nil
}

type walker struct {
	defs   []tags.Definition
	seen   map[string]struct{}
	logger *zap.Logger
}

func (w *walker) walk(prefix []string, nodes []Node) {
	for _, node := range nodes {
		name := strings.TrimSpace(node.Name)
		if name == "" {
			w.logger.Warn("tag document node without name", zap.Strings("parent", prefix))
			continue
		}
		current := append(append([]string(nil), prefix...), name)
		switch {
		case node.TagType == NodeAtomicTag:
			w.leaf(current, node)
		case node.isContainer():
			w.walk(current, node.Tags)
		default:
			w.logger.Debug("tag document node ignored",
				zap.String("name", name), zap.String("tag_type", string(node.TagType)))
		}
	}
}

func (w *walker) leaf(segments []string, node Node) {
	path := strings.Join(segments, ".")
	if _, dup := w.seen[path]; dup {
		w.logger.Warn("duplicate tag path, skipping", zap.String("path", path))
		return
	}
	w.seen[path] = struct{}{}
	kind := KindForDataType(node.DataType)
	value := decodeValue(node.Value, kind)
	if value.IsZero() {
		value = decodeValue(node.DefaultValue, kind)
	}
	if value.IsZero() {
		value = ZeroValue(kind)
	}
	w.defs = append(w.defs, tags.Definition{Path: path, Value: value, Writable: true})
}

// KindForDataType maps an exported dataType to a value kind. Expression tags
// without a dataType are numeric.
func KindForDataType(dataType string) tags.Kind {
	switch dataType {
	case "Float8", "Float4", "":
		return tags.KindFloat
	case "Int1", "Int2", "Int4", "Int8":
		return tags.KindInt
	case "Boolean":
		return tags.KindBool
	default:
		return tags.KindString
	}
}

// ZeroValue returns the default value for kind.
func ZeroValue(kind tags.Kind) tags.Value {
	switch kind {
	case tags.KindFloat:
		return tags.Float(0)
	case tags.KindInt:
		return tags.Int(0)
	case tags.KindBool:
		return tags.Bool(false)
	default:
		return tags.String("")
	}
}

func decodeValue(raw json.RawMessage, kind tags.Kind) tags.Value {
	if len(raw) == 0 {
		return tags.Value{}
	}
	var value tags.Value
	if err := json.Unmarshal(raw, &value); err != nil {
		return tags.Value{}
	}
	coerced, err := value.Coerce(kind)
	if err != nil {
		return tags.Value{}
	}
	return coerced
}
