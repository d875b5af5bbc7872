// Package blocks models the editor's document body as a tagged tree of
// blocks. The tree is read from its serialized form each time; there are no
// live back-references, so traversal is a plain recursive walk.
package blocks

import (
	"encoding/json"

	"github.com/catforu/filestore/internal/s3x"
)

// Known block kinds. Anything else falls through to the generic variant and
// is carried along untouched so no data is lost on rewrite.
const (
	KindImage = "image"
	KindVideo = "video"
)

// Block is one node of the document body. Kind discriminates the variant;
// unrecognized kinds keep their payload in rest and survive a round trip
// unchanged.
type Block struct {
	Kind     string
	Props    map[string]any
	Children []Block

	rest map[string]json.RawMessage
}

func (b *Block) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if v, ok := raw["type"]; ok {
		if err := json.Unmarshal(v, &b.Kind); err != nil {
			return err
		}
		delete(raw, "type")
	}
	if v, ok := raw["props"]; ok {
		if err := json.Unmarshal(v, &b.Props); err != nil {
			return err
		}
		delete(raw, "props")
	}
	if v, ok := raw["children"]; ok {
		if err := json.Unmarshal(v, &b.Children); err != nil {
			return err
		}
		delete(raw, "children")
	}
	b.rest = raw
	return nil
}

func (b Block) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(b.rest)+3)
	for k, v := range b.rest {
		out[k] = v
	}
	if b.Kind != "" {
		out["type"] = b.Kind
	}
	if b.Props != nil {
		out["props"] = b.Props
	}
	if b.Children != nil {
		out["children"] = b.Children
	}
	return json.Marshal(out)
}

// IsMedia reports whether the block carries a file URL.
func (b *Block) IsMedia() bool {
	return b.Kind == KindImage || b.Kind == KindVideo
}

// URL returns the media URL of an image/video block, if present.
func (b *Block) URL() (string, bool) {
	if !b.IsMedia() || b.Props == nil {
		return "", false
	}
	u, ok := b.Props["url"].(string)
	if !ok || u == "" {
		return "", false
	}
	return u, true
}

// Normalize coerces a stored document body into a block slice. It accepts a
// JSON array, a JSON string wrapping such an array, or garbage; everything
// unparseable normalizes to "no blocks".
func Normalize(raw []byte) []Block {
	if len(raw) == 0 {
		return nil
	}

	var blks []Block
	if err := json.Unmarshal(raw, &blks); err == nil {
		return blks
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if err := json.Unmarshal([]byte(s), &blks); err == nil {
			return blks
		}
	}

	return nil
}

// CollectHashes walks the tree and returns the set of content hashes
// embedded in media blocks whose URL belongs to the given storage prefix.
func CollectHashes(blks []Block, prefix string) map[string]struct{} {
	out := make(map[string]struct{})
	var walk func(list []Block)
	walk = func(list []Block) {
		for i := range list {
			b := &list[i]
			if u, ok := b.URL(); ok {
				if hash, ok := s3x.HashFromURL(u, prefix); ok {
					out[hash] = struct{}{}
				}
			}
			if len(b.Children) > 0 {
				walk(b.Children)
			}
		}
	}
	walk(blks)
	return out
}

// MapMediaURLs returns a copy of the tree with every media URL passed
// through fn. The input tree is not mutated.
func MapMediaURLs(blks []Block, fn func(string) string) []Block {
	var walk func(list []Block) []Block
	walk = func(list []Block) []Block {
		if list == nil {
			return nil
		}
		out := make([]Block, len(list))
		for i, b := range list {
			next := b
			if u, ok := b.URL(); ok {
				props := make(map[string]any, len(b.Props))
				for k, v := range b.Props {
					props[k] = v
				}
				props["url"] = fn(u)
				next.Props = props
			}
			next.Children = walk(b.Children)
			out[i] = next
		}
		return out
	}
	return walk(blks)
}
