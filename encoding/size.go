package encoding

type layout struct {
	size  int
	align int
}

func (l layout) add(next layout) (layout, int) {
	offset := align(l.size, next.align)
	return layout{offset + next.size, max(l.align, next.align)}, offset
}

func align(a, b int) int {
	return (a + b - 1) &^ (b - 1)
}
