// Package matrix provides the dense numeric buffer used for layer activations
// and weight tensors.
package matrix

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrDimensionMismatch = errors.New("matrix dimension mismatch")
	ErrIndexOutOfRange   = errors.New("matrix index out of range")
)

// Matrix is a row-major float64 matrix whose shape is fixed at construction.
// Operations never alias their receiver: every result is a fresh buffer.
type Matrix struct {
	dense *mat.Dense
}

// New returns a zero-filled rows x cols matrix.
func New(rows, cols int) (*Matrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("new %dx%d: %w", rows, cols, ErrDimensionMismatch)
	}
	return &Matrix{dense: mat.NewDense(rows, cols, nil)}, nil
}

// FromSlice copies a flat row-major buffer into a rows x cols matrix.
func FromSlice(values []float64, rows, cols int) (*Matrix, error) {
	if rows <= 0 || cols <= 0 || len(values) != rows*cols {
		return nil, fmt.Errorf("from slice len=%d into %dx%d: %w", len(values), rows, cols, ErrDimensionMismatch)
	}
	data := make([]float64, len(values))
	copy(data, values)
	return &Matrix{dense: mat.NewDense(rows, cols, data)}, nil
}

// Row builds a 1 x len(values) row vector.
func Row(values []float64) (*Matrix, error) {
	return FromSlice(values, 1, len(values))
}

func (m *Matrix) Rows() int {
	r, _ := m.dense.Dims()
	return r
}

func (m *Matrix) Cols() int {
	_, c := m.dense.Dims()
	return c
}

func (m *Matrix) Dims() (rows, cols int) {
	return m.dense.Dims()
}

func (m *Matrix) At(row, col int) (float64, error) {
	if err := m.checkIndex(row, col); err != nil {
		return 0, err
	}
	return m.dense.At(row, col), nil
}

func (m *Matrix) Set(row, col int, value float64) error {
	if err := m.checkIndex(row, col); err != nil {
		return err
	}
	m.dense.Set(row, col, value)
	return nil
}

// Values returns a copy of the row-major element buffer.
func (m *Matrix) Values() []float64 {
	rows, cols := m.dense.Dims()
	out := make([]float64, 0, rows*cols)
	for r := 0; r < rows; r++ {
		out = append(out, m.dense.RawRowView(r)...)
	}
	return out
}

// Apply maps fn over every element into a new matrix.
func (m *Matrix) Apply(fn func(float64) float64) *Matrix {
	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 { return fn(v) }, m.dense)
	return &Matrix{dense: &out}
}

func (m *Matrix) Tanh() *Matrix {
	return m.Apply(math.Tanh)
}

// Mul returns m * b. The inner dimensions must agree.
func (m *Matrix) Mul(b *Matrix) (*Matrix, error) {
	if m.Cols() != b.Rows() {
		return nil, fmt.Errorf("mul %dx%d by %dx%d: %w", m.Rows(), m.Cols(), b.Rows(), b.Cols(), ErrDimensionMismatch)
	}
	var out mat.Dense
	out.Mul(m.dense, b.dense)
	return &Matrix{dense: &out}, nil
}

// AddScalar returns m with k added to every element.
func (m *Matrix) AddScalar(k float64) *Matrix {
	out := m.Clone()
	floats.AddConst(k, out.dense.RawMatrix().Data)
	return out
}

func (m *Matrix) Clone() *Matrix {
	return &Matrix{dense: mat.DenseCopyOf(m.dense)}
}

// EqualApprox reports whether both matrices share a shape and every element
// pair differs by at most tol.
func (m *Matrix) EqualApprox(b *Matrix, tol float64) bool {
	if b == nil {
		return false
	}
	ar, ac := m.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		return false
	}
	return mat.EqualApprox(m.dense, b.dense, tol)
}

func (m *Matrix) String() string {
	return fmt.Sprintf("%v", mat.Formatted(m.dense, mat.Squeeze()))
}

func (m *Matrix) checkIndex(row, col int) error {
	rows, cols := m.dense.Dims()
	if row < 0 || row >= rows || col < 0 || col >= cols {
		return fmt.Errorf("index (%d,%d) in %dx%d: %w", row, col, rows, cols, ErrIndexOutOfRange)
	}
	return nil
}
