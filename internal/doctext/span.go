package doctext

// Span is a half-open range of internal offsets.
type Span struct {
	Start uint
	End   uint
}

func (s Span) Len() uint {
	if s.End <= s.Start {
		return 0
	}
	return s.End - s.Start
}

func (s Span) Contains(other Span) bool {
	return s.Start <= other.Start && other.End <= s.End
}

// Intersects reports whether the spans overlap. An empty span intersects a
// span that strictly contains its position or starts at it.
func (s Span) Intersects(other Span) bool {
	if other.Start == other.End {
		return s.Start <= other.Start && other.Start < s.End
	}
	return s.Start < other.End && other.Start < s.End
}

func (s Span) Intersect(other Span) Span {
	out := Span{Start: max(s.Start, other.Start), End: min(s.End, other.End)}
	if out.End < out.Start {
		out.End = out.Start
	}
	return out
}

// Expand widens the span by delta on each side, saturating at zero.
func (s Span) Expand(delta uint) Span {
	start := uint(0)
	if s.Start > delta {
		start = s.Start - delta
	}
	return Span{Start: start, End: s.End + delta}
}
