package scene

import "customizer/geometry"

// NodeState is the visual state captured for one layer or node.
type NodeState struct {
	Visible  bool           `json:"visible"`
	Opacity  float64        `json:"opacity"`
	Scale    float64        `json:"scale"`
	Rotation float64        `json:"rotation"`
	Position geometry.Point `json:"position"`
}

type LayerState struct {
	NodeState
	Nodes map[string]NodeState `json:"nodes"`
}

// StageState is a throwaway capture of the stage taken before an operation
// that toggles visibility, and restored right after it.
type StageState struct {
	Scale    float64               `json:"scale"`
	Rotation float64               `json:"rotation"`
	Position geometry.Point        `json:"position"`
	Layers   map[string]LayerState `json:"layers"`
}

// Snapshot captures root transform plus every layer's and node's state.
func (s *Stage) Snapshot() StageState {
	st := StageState{
		Scale:    s.Scale,
		Rotation: s.Rotation,
		Position: s.Position,
		Layers:   make(map[string]LayerState, len(s.Layers)),
	}
	for _, l := range s.Layers {
		ls := LayerState{
			NodeState: NodeState{
				Visible:  l.Visible,
				Opacity:  l.Opacity,
				Scale:    l.Scale,
				Rotation: l.Rotation,
				Position: l.Position,
			},
			Nodes: make(map[string]NodeState, len(l.Nodes)),
		}
		for _, n := range l.Nodes {
			t := n.Drawable.Transform()
			ls.Nodes[n.ID] = NodeState{
				Visible:  n.Visible,
				Opacity:  n.Opacity,
				Scale:    t.Scale,
				Rotation: t.Rotation,
				Position: geometry.Point{X: t.X, Y: t.Y},
			}
		}
		st.Layers[l.ID] = ls
	}
	return st
}

// Restore puts back everything Snapshot captured. Layers and nodes added
// after the snapshot are left as they are.
func (s *Stage) Restore(st StageState) {
	s.Scale, s.Rotation, s.Position = st.Scale, st.Rotation, st.Position
	for _, l := range s.Layers {
		ls, ok := st.Layers[l.ID]
		if !ok {
			continue
		}
		l.Visible, l.Opacity = ls.Visible, ls.Opacity
		l.Scale, l.Rotation, l.Position = ls.Scale, ls.Rotation, ls.Position
		for _, n := range l.Nodes {
			ns, ok := ls.Nodes[n.ID]
			if !ok {
				continue
			}
			n.Visible, n.Opacity = ns.Visible, ns.Opacity
			n.Drawable.SetTransform(Transform{
				X:        ns.Position.X,
				Y:        ns.Position.Y,
				Rotation: ns.Rotation,
				Scale:    ns.Scale,
			})
		}
	}
}
