package yaml

import (
	"bytes"

	"gopkg.in/yaml.v3"
)

func Unmarshal(in []byte, out any) error {
	return yaml.Unmarshal(in, out)
}

func Encode(v any, indent int) ([]byte, error) {
	b := bytes.NewBuffer(nil)
	e := yaml.NewEncoder(b)
	e.SetIndent(indent)

	if err := e.Encode(v); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Patch - change key/value pair in YAML file without break formatting.
// Missing parents of the path are created, nil value removes the key.
func Patch(src []byte, key string, value any, path ...string) ([]byte, error) {
	node, err := root(src)
	if err != nil {
		return nil, err
	}

	// deepest existing mapping of the path
	depth := 0
	for ; node != nil && depth < len(path); depth++ {
		_, child := FindChild(node, path[depth])
		if child == nil || child.Kind != yaml.MappingNode {
			break
		}
		node = child
	}

	if depth < len(path) {
		if value == nil {
			return src, nil // nothing to remove
		}
		for i := len(path) - 1; i >= depth; i-- {
			value = map[string]any{key: value}
			key = path[i]
		}
	}

	var dst []byte
	if node != nil {
		dst, err = addOrReplace(src, key, value, node)
	} else {
		dst, err = addToEnd(src, key, value)
	}
	if err != nil {
		return nil, err
	}

	if err = yaml.Unmarshal(dst, map[string]any{}); err != nil {
		return nil, err
	}

	return dst, nil
}

func root(src []byte) (*yaml.Node, error) {
	if len(src) == 0 {
		return nil, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, err
	}

	if doc.Content == nil || doc.Content[0].Kind != yaml.MappingNode {
		return nil, nil
	}

	return doc.Content[0], nil
}

// FindChild - search and return YAML key/value pair of the mapping Node
func FindChild(node *yaml.Node, name string) (key, value *yaml.Node) {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == name {
			return node.Content[i], node.Content[i+1]
		}
	}
	return nil, nil
}

func firstChild(node *yaml.Node) *yaml.Node {
	if node.Content == nil {
		return node
	}
	return node.Content[0]
}

func lastChild(node *yaml.Node) *yaml.Node {
	if node.Content == nil {
		return node
	}
	return lastChild(node.Content[len(node.Content)-1])
}

func addOrReplace(src []byte, key string, value any, parent *yaml.Node) ([]byte, error) {
	put, err := Encode(map[string]any{key: value}, 2)
	if err != nil {
		return nil, err
	}

	if nodeKey, nodeValue := FindChild(parent, key); nodeKey != nil {
		put = addIndent(put, nodeKey.Column-1)

		i0 := lineOffset(src, nodeKey.Line)
		i1 := lineOffset(src, lastChild(nodeValue).Line+1)

		if i1 < 0 { // no new line on the end of file
			if value != nil {
				return append(src[:i0], put...), nil
			}
			return src[:i0], nil
		}

		dst := make([]byte, 0, len(src)+len(put))
		dst = append(dst, src[:i0]...)
		if value != nil {
			dst = append(dst, put...)
		}
		return append(dst, src[i1:]...), nil
	}

	if value == nil {
		return src, nil
	}

	put = addIndent(put, firstChild(parent).Column-1)

	i := lineOffset(src, lastChild(parent).Line+1)
	if i < 0 {
		if l := len(src); l > 0 && src[l-1] != '\n' {
			src = append(src, '\n')
		}
		return append(src, put...), nil
	}

	dst := make([]byte, 0, len(src)+len(put))
	dst = append(dst, src[:i]...)
	dst = append(dst, put...)
	return append(dst, src[i:]...), nil
}

func addToEnd(src []byte, key string, value any) ([]byte, error) {
	put, err := Encode(map[string]any{key: value}, 2)
	if err != nil {
		return nil, err
	}

	dst := make([]byte, 0, len(src)+len(put)+1)
	dst = append(dst, src...)
	if l := len(src); l > 0 && src[l-1] != '\n' {
		dst = append(dst, '\n')
	}
	return append(dst, put...), nil
}

func addIndent(src []byte, indent int) (dst []byte) {
	pre := bytes.Repeat([]byte{' '}, indent)
	for len(src) > 0 {
		dst = append(dst, pre...)
		i := bytes.IndexByte(src, '\n') + 1
		if i == 0 {
			dst = append(dst, src...)
			break
		}
		dst = append(dst, src[:i]...)
		src = src[i:]
	}
	return
}

// lineOffset - byte offset of the 1-based line, -1 after the last one
func lineOffset(b []byte, line int) (offset int) {
	for l := 1; ; l++ {
		if l == line {
			return offset
		}

		i := bytes.IndexByte(b[offset:], '\n') + 1
		if i == 0 {
			break
		}
		offset += i
	}
	return -1
}
