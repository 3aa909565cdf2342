package designs

import (
	"encoding/json"
	"fmt"
	"net/http"

	"customizer/geometry"
	"customizer/scene"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// Edit operations replay toolbar and pointer gestures against a saved
// design.
const (
	OpView     = "view"
	OpSelect   = "select"
	OpTap      = "tap"
	OpDeselect = "deselect"
	OpMove     = "move"
	OpScale    = "scale"
	OpRotate   = "rotate"
	OpDelete   = "delete"
)

// maxEditOps bounds one edit request.
const maxEditOps = 256

type editOp struct {
	Op        string  `json:"op"`
	ViewID    string  `json:"viewId,omitempty"`
	ElementID string  `json:"elementId,omitempty"`
	X         float64 `json:"x,omitempty"`
	Y         float64 `json:"y,omitempty"`
	Value     float64 `json:"value,omitempty"`
}

type editRequest struct {
	Ops []editOp `json:"ops"`
}

// editResult reports one operation. Applied is false when the editor
// rejected the change without error, e.g. a scale that overflows the box.
type editResult struct {
	Op       string `json:"op"`
	Applied  bool   `json:"applied"`
	Selected string `json:"selected,omitempty"`
}

type editResponse struct {
	Design  designResponse `json:"design"`
	Results []editResult   `json:"results"`
}

func apply(ed *scene.Editor, op editOp) (bool, error) {
	switch op.Op {
	case OpView:
		return true, ed.SetActiveView(op.ViewID)
	case OpSelect:
		return true, ed.Select(op.ElementID)
	case OpTap:
		id, err := ed.PointerDown(geometry.Point{X: op.X, Y: op.Y})
		return id != "", err
	case OpDeselect:
		ed.Deselect()
		return true, nil
	case OpMove:
		if err := ed.BeginTransform(); err != nil {
			return false, err
		}
		if err := ed.DragBy(op.X, op.Y); err != nil {
			return false, err
		}
		return ed.Release()
	case OpScale:
		return ed.SetScale(op.Value)
	case OpRotate:
		return ed.SetRotation(op.Value)
	case OpDelete:
		return true, ed.Delete()
	default:
		return false, fmt.Errorf("unknown operation %q", op.Op)
	}
}

// HandleEdit runs a batch of editor operations on a saved design and
// stores the result. The batch starts on the first view with nothing
// selected. Any operation error discards the whole batch.
func HandleEdit(rd *Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := rd.load(w, r)
		if !ok {
			return
		}

		var body editRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid edit body"})
			return
		}
		defer r.Body.Close()
		if len(body.Ops) == 0 || len(body.Ops) > maxEditOps {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": fmt.Sprintf("ops must hold 1 to %d operations", maxEditOps)})
			return
		}

		switcher, err := scene.NewViewSwitcher(s.views, s.model)
		if err != nil {
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, map[string]string{"error": err.Error()})
			return
		}
		ed := scene.NewEditor(s.model, switcher, rd.StageWidth, rd.StageHeight)

		results := make([]editResult, 0, len(body.Ops))
		for i, op := range body.Ops {
			applied, err := apply(ed, op)
			if err != nil {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, map[string]string{"error": fmt.Sprintf("operation %d (%s): %v", i, op.Op, err)})
				return
			}
			selected, _ := ed.Selected()
			results = append(results, editResult{Op: op.Op, Applied: applied, Selected: selected})
		}

		encoded, err := scene.EncodeModel(s.model)
		if err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to encode scene"})
			return
		}
		design := *s.design
		design.Scene = encoded
		if err := rd.Store.Save(r.Context(), &design); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":     err,
				"user_id":   s.userID,
				"design_id": design.ID,
			}).Error("Failed to save edited design")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to save design"})
			return
		}

		logrus.WithFields(logrus.Fields{
			"design_id": design.ID,
			"ops":       len(results),
		}).Debug("Design edited")
		render.JSON(w, r, editResponse{Design: toResponse(&design), Results: results})
	}
}
