// Package stamp declares the visual-stamping collaborator consumed by the
// finalize protocol. The concrete renderer is external; the engine only
// requires "apply a visible mark at (page, x%, y%) and return new bytes".
package stamp

import "context"

// Mark locates a visual stamp on a page. Percentages are relative to page
// width/height so positions are independent of pixel dimensions.
type Mark struct {
	Page     int     // 1-based
	XPercent float64 // [0,100] of page width
	YPercent float64 // [0,100] of page height, from the top edge
}

// Stamper renders a mark into a PDF. Implementations are treated as pure:
// input bytes are never mutated, the same input yields the same output.
type Stamper interface {
	Stamp(ctx context.Context, original []byte, mark Mark) ([]byte, error)
}

// Func adapts a plain function to the Stamper interface.
type Func func(ctx context.Context, original []byte, mark Mark) ([]byte, error)

// Stamp implements Stamper.
func (f Func) Stamp(ctx context.Context, original []byte, mark Mark) ([]byte, error) {
	return f(ctx, original, mark)
}
