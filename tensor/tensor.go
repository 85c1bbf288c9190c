package tensor

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrInvalidShape  = errors.New("invalid tensor shape")
	ErrShapeMismatch = errors.New("tensor shape mismatch")
)

// Shape 二维张量形状 (rows, cols)
type Shape struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// String 返回 "RxC" 形式
func (s Shape) String() string {
	return fmt.Sprintf("%dx%d", s.Rows, s.Cols)
}

// Valid 检查形状是否为正
func (s Shape) Valid() bool {
	return s.Rows > 0 && s.Cols > 0
}

// Tensor 不可变的二维数值张量。
// 所有运算返回新分配的张量，底层矩阵在构造后不再修改。
type Tensor struct {
	m *mat.Dense
}

// New 以行优先数据创建张量，data 会被复制
func New(rows, cols int, data []float64) (*Tensor, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidShape, rows, cols)
	}
	if data == nil {
		return &Tensor{m: mat.NewDense(rows, cols, nil)}, nil
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("%w: %dx%d needs %d values, got %d", ErrInvalidShape, rows, cols, rows*cols, len(data))
	}
	buf := make([]float64, len(data))
	copy(buf, data)
	return &Tensor{m: mat.NewDense(rows, cols, buf)}, nil
}

// Zeros 创建全零张量
func Zeros(rows, cols int) (*Tensor, error) {
	return New(rows, cols, nil)
}

// FromRows 从二维切片创建张量，要求矩形
func FromRows(rows [][]float64) (*Tensor, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: empty rows", ErrInvalidShape)
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrInvalidShape, i, len(row), cols)
		}
		data = append(data, row...)
	}
	return &Tensor{m: mat.NewDense(len(rows), cols, data)}, nil
}

// MustFromRows 同 FromRows，失败时 panic（用于测试与常量）
func MustFromRows(rows [][]float64) *Tensor {
	t, err := FromRows(rows)
	if err != nil {
		panic(err)
	}
	return t
}

// Shape 返回张量形状
func (t *Tensor) Shape() Shape {
	r, c := t.m.Dims()
	return Shape{Rows: r, Cols: c}
}

// At 返回 (i, j) 处的元素
func (t *Tensor) At(i, j int) float64 {
	return t.m.At(i, j)
}

// Rows2D 返回数据的二维副本
func (t *Tensor) Rows2D() [][]float64 {
	r, c := t.m.Dims()
	out := make([][]float64, r)
	for i := 0; i < r; i++ {
		out[i] = make([]float64, c)
		mat.Row(out[i], i, t.m)
	}
	return out
}

// Data 返回行优先数据副本
func (t *Tensor) Data() []float64 {
	raw := t.m.RawMatrix()
	r, c := t.m.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		out = append(out, raw.Data[i*raw.Stride:i*raw.Stride+c]...)
	}
	return out
}

// ApproxEqual 在容差 eps 内比较两个张量
func (t *Tensor) ApproxEqual(other *Tensor, eps float64) bool {
	if t == nil || other == nil {
		return t == other
	}
	if !SameShape(t, other) {
		return false
	}
	return mat.EqualApprox(t.m, other.m, eps)
}

// SameShape 检查两个张量形状是否一致
func SameShape(a, b *Tensor) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Shape() == b.Shape()
}

// Add 逐元素相加 a + b
func Add(a, b *Tensor) (*Tensor, error) {
	if !SameShape(a, b) {
		return nil, shapeErr(a, b)
	}
	var out mat.Dense
	out.Add(a.m, b.m)
	return &Tensor{m: &out}, nil
}

// Scale 逐元素缩放 f * a
func Scale(a *Tensor, f float64) *Tensor {
	var out mat.Dense
	out.Scale(f, a.m)
	return &Tensor{m: &out}
}

// AddScaled 返回 acc + f*x，acc 与 x 均不被修改
func AddScaled(acc, x *Tensor, f float64) (*Tensor, error) {
	if !SameShape(acc, x) {
		return nil, shapeErr(acc, x)
	}
	var out mat.Dense
	out.Scale(f, x.m)
	out.Add(&out, acc.m)
	return &Tensor{m: &out}, nil
}

func shapeErr(a, b *Tensor) error {
	var sa, sb string = "nil", "nil"
	if a != nil {
		sa = a.Shape().String()
	}
	if b != nil {
		sb = b.Shape().String()
	}
	return fmt.Errorf("%w: %s vs %s", ErrShapeMismatch, sa, sb)
}

// =============================================================================
// JSON 编解码
// =============================================================================

type tensorJSON struct {
	Shape [2]int      `json:"shape"`
	Data  [][]float64 `json:"data"`
}

// MarshalJSON 编码为 {"shape":[r,c],"data":[[...]]}
func (t *Tensor) MarshalJSON() ([]byte, error) {
	s := t.Shape()
	return json.Marshal(tensorJSON{Shape: [2]int{s.Rows, s.Cols}, Data: t.Rows2D()})
}

// UnmarshalJSON 解码并校验形状声明
func (t *Tensor) UnmarshalJSON(b []byte) error {
	var raw tensorJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := FromRows(raw.Data)
	if err != nil {
		return err
	}
	if raw.Shape != [2]int{} {
		if s := parsed.Shape(); s.Rows != raw.Shape[0] || s.Cols != raw.Shape[1] {
			return fmt.Errorf("%w: declared %dx%d, data is %s", ErrShapeMismatch, raw.Shape[0], raw.Shape[1], s)
		}
	}
	t.m = parsed.m
	return nil
}

// =============================================================================
// Layout 层布局
// =============================================================================

// Layout 层名到形状的映射
type Layout map[string]Shape

// LayoutOf 提取一组权重的布局
func LayoutOf(weights map[string]*Tensor) Layout {
	l := make(Layout, len(weights))
	for name, w := range weights {
		if w != nil {
			l[name] = w.Shape()
		}
	}
	return l
}

// Names 返回排序后的层名
func (l Layout) Names() []string {
	names := make([]string, 0, len(l))
	for name := range l {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Equal 检查两个布局是否完全一致
func (l Layout) Equal(other Layout) bool {
	if len(l) != len(other) {
		return false
	}
	for name, s := range l {
		if o, ok := other[name]; !ok || o != s {
			return false
		}
	}
	return true
}

// Key 返回布局的规范字符串表示，可用作分组键
func (l Layout) Key() string {
	key := ""
	for _, name := range l.Names() {
		key += name + "=" + l[name].String() + ";"
	}
	return key
}

// Matches 检查权重是否与布局一致，返回第一个不一致之处
func (l Layout) Matches(weights map[string]*Tensor) error {
	if len(weights) != len(l) {
		return fmt.Errorf("%w: expected %d layers, got %d", ErrShapeMismatch, len(l), len(weights))
	}
	for _, name := range l.Names() {
		w, ok := weights[name]
		if !ok || w == nil {
			return fmt.Errorf("%w: missing layer %q", ErrShapeMismatch, name)
		}
		if got := w.Shape(); got != l[name] {
			return fmt.Errorf("%w: layer %q is %s, expected %s", ErrShapeMismatch, name, got, l[name])
		}
	}
	return nil
}
