package spatialmath

import (
	"encoding/json"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// transformDoc is the persisted form of a RigidTransform.
type transformDoc struct {
	Rotation    [3][3]float64 `json:"rotation" yaml:"rotation,flow"`
	Translation [3]float64    `json:"translation" yaml:"translation,flow"`
}

func (t RigidTransform) doc() transformDoc {
	return transformDoc{
		Rotation:    t.Rotation().Rows(),
		Translation: [3]float64{t.trans.X, t.trans.Y, t.trans.Z},
	}
}

func (d transformDoc) transform() (RigidTransform, error) {
	rot, err := NewRotationMatrixFromRows(d.Rotation)
	if err != nil {
		return RigidTransform{}, err
	}
	return RigidTransform{rot: rot, trans: r3.Vector{X: d.Translation[0], Y: d.Translation[1], Z: d.Translation[2]}}, nil
}

// MarshalJSON writes {"rotation": [[...],[...],[...]], "translation": [x, y, z]}.
func (t RigidTransform) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.doc())
}

// UnmarshalJSON validates the rotation on the way in.
func (t *RigidTransform) UnmarshalJSON(data []byte) error {
	var d transformDoc
	if err := json.Unmarshal(data, &d); err != nil {
		return errors.Wrap(err, "failed to decode transform")
	}
	out, err := d.transform()
	if err != nil {
		return err
	}
	*t = out
	return nil
}

// MarshalYAML writes the same layout as MarshalJSON.
func (t RigidTransform) MarshalYAML() (interface{}, error) {
	return t.doc(), nil
}

// UnmarshalYAML validates the rotation on the way in.
func (t *RigidTransform) UnmarshalYAML(value *yaml.Node) error {
	var d transformDoc
	if err := value.Decode(&d); err != nil {
		return errors.Wrap(err, "failed to decode transform")
	}
	out, err := d.transform()
	if err != nil {
		return err
	}
	*t = out
	return nil
}
