package chunking

// separators are tried in order, coarsest first. Running out of separators
// falls back to cutting at the window size.
var separators = []string{"\n\n", "\n", ". ", " "}

// recursiveSpans cuts seg into atoms no longer than size and merges
// consecutive atoms into windows, carrying up to overlap characters of
// trailing atoms into the next window.
func recursiveSpans(runes []rune, seg span, size, overlap int) []span {
	atoms := atomize(runes, seg, size, separators)
	if len(atoms) == 0 {
		return nil
	}

	var spans []span
	i := 0
	for {
		start := atoms[i].start
		j := i
		for j < len(atoms) && atoms[j].end-start <= size {
			j++
		}
		end := atoms[j-1].end
		spans = append(spans, span{start, end})
		if j == len(atoms) {
			return spans
		}

		// Next window starts at the earliest atom within the overlap that
		// still leaves room for atoms[j].
		k := i + 1
		for k < j && (end-atoms[k].start > overlap || atoms[j].end-atoms[k].start > size) {
			k++
		}
		i = k
	}
}

// atomize splits seg after each occurrence of the first separator found in
// it. Pieces still longer than size are split with the remaining separators.
func atomize(runes []rune, seg span, size int, seps []string) []span {
	if seg.end-seg.start <= size {
		return []span{seg}
	}
	if len(seps) == 0 {
		return fixedSpans(seg.start, seg.end, size, 0)
	}

	parts := splitAfter(runes, seg, []rune(seps[0]))
	if len(parts) == 1 {
		return atomize(runes, seg, size, seps[1:])
	}

	var atoms []span
	for _, part := range parts {
		if part.end-part.start > size {
			atoms = append(atoms, atomize(runes, part, size, seps[1:])...)
		} else {
			atoms = append(atoms, part)
		}
	}
	return atoms
}

// splitAfter cuts seg after every occurrence of sep. The separator stays
// with the preceding part so the parts cover seg exactly.
func splitAfter(runes []rune, seg span, sep []rune) []span {
	var parts []span
	start := seg.start
	for i := seg.start; i+len(sep) <= seg.end; {
		if hasRunes(runes[i:], sep) {
			i += len(sep)
			parts = append(parts, span{start, i})
			start = i
			continue
		}
		i++
	}
	if start < seg.end {
		parts = append(parts, span{start, seg.end})
	}
	return parts
}

func hasRunes(runes, prefix []rune) bool {
	if len(runes) < len(prefix) {
		return false
	}
	for i, r := range prefix {
		if runes[i] != r {
			return false
		}
	}
	return true
}

// headingSegments cuts the text at every line that opens a markdown heading.
func headingSegments(runes []rune) []span {
	var segments []span
	start := 0
	for i := range runes {
		if i == start || (i > 0 && runes[i-1] != '\n') {
			continue
		}
		if isHeadingLine(runes[i:]) {
			segments = append(segments, span{start, i})
			start = i
		}
	}
	return append(segments, span{start, len(runes)})
}

// isHeadingLine reports whether line opens with 1 to 6 '#' and a space.
func isHeadingLine(line []rune) bool {
	n := 0
	for n < len(line) && n < 7 && line[n] == '#' {
		n++
	}
	return n >= 1 && n <= 6 && n < len(line) && line[n] == ' '
}
