package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Params is a snapshot of the values of a set of learnable nodes. A
// Params can be gob encoded and later restored into nodes of the
// same shapes.
type Params struct {
	Names  []string
	Shapes [][]int
	Data   [][]float64
}

// Snapshot returns a copy of the values of the learnable nodes
func Snapshot(learnables G.Nodes) (Params, error) {
	p := Params{
		Names:  make([]string, len(learnables)),
		Shapes: make([][]int, len(learnables)),
		Data:   make([][]float64, len(learnables)),
	}

	for i, node := range learnables {
		data, err := ValueData(node.Value())
		if err != nil {
			return Params{}, fmt.Errorf("snapshot: node %v: %v",
				node.Name(), err)
		}

		p.Names[i] = node.Name()
		p.Shapes[i] = append([]int{}, node.Shape()...)
		p.Data[i] = append([]float64{}, data...)
	}
	return p, nil
}

// Restore copies the values in p into the learnable nodes. The
// number and shapes of the nodes must match the snapshot.
func Restore(learnables G.Nodes, p Params) error {
	if len(learnables) != len(p.Data) || len(p.Data) != len(p.Shapes) {
		return fmt.Errorf("restore: incompatible parameters\n\twant(%v)"+
			"\n\thave(%v)", len(learnables), len(p.Data))
	}

	for i, node := range learnables {
		if !node.Shape().Eq(tensor.Shape(p.Shapes[i])) {
			return fmt.Errorf("restore: incompatible shape for %v\n\t"+
				"want(%v)\n\thave(%v)", node.Name(), node.Shape(), p.Shapes[i])
		}

		data, err := ValueData(node.Value())
		if err != nil {
			return fmt.Errorf("restore: node %v: %v", node.Name(), err)
		}
		if len(data) != len(p.Data[i]) {
			return fmt.Errorf("restore: incompatible data length for %v",
				node.Name())
		}
		copy(data, p.Data[i])
	}
	return nil
}

// ValueData returns the backing data of a float64 Gorgonia value. For
// tensor values, modifying the returned slice modifies the value in
// place. Scalar values are copied.
func ValueData(v G.Value) ([]float64, error) {
	switch value := v.(type) {
	case nil:
		return nil, fmt.Errorf("valueData: nil value")
	case *tensor.Dense:
		data, ok := value.Data().([]float64)
		if !ok {
			return nil, fmt.Errorf("valueData: expected float64 data but "+
				"got %T", value.Data())
		}
		return data, nil
	case *G.F64:
		return []float64{float64(*value)}, nil
	}
	return nil, fmt.Errorf("valueData: unsupported value type %T", v)
}
