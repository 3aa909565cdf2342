package scene

import (
	"encoding/json"
	"fmt"
)

const documentVersion = 1

// Document is the persisted form of a Model.
type Document struct {
	Version  int        `json:"version"`
	Elements []*Element `json:"elements"`
}

// Document snapshots the model in insertion order.
func (m *Model) Document() Document {
	return Document{Version: documentVersion, Elements: m.All()}
}

// ModelFromDocument rebuilds a model, keeping element ids and order.
func ModelFromDocument(doc Document) (*Model, error) {
	m := NewModel()
	for i, el := range doc.Elements {
		if el == nil {
			return nil, fmt.Errorf("element %d: %w: null", i, ErrInvalidElement)
		}
		if _, err := m.Add(el.Kind, *el); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}
	return m, nil
}

// DecodeModel parses a JSON document. Empty input yields an empty model.
func DecodeModel(data []byte) (*Model, error) {
	if len(data) == 0 {
		return NewModel(), nil
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode scene: %w", err)
	}
	return ModelFromDocument(doc)
}

// EncodeModel serializes the model as JSON.
func EncodeModel(m *Model) ([]byte, error) {
	return json.Marshal(m.Document())
}
