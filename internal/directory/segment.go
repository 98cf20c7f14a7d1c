package directory

// Block is the run of lines that belong to one company. Lines[0] is the
// name line; the rest are attribute lines. Blocks are never empty.
type Block struct {
	Lines []string
}

// Name returns the presumed company-name line.
func (b Block) Name() string {
	if len(b.Lines) == 0 {
		return ""
	}
	return b.Lines[0]
}

// Attributes returns the lines after the name line.
func (b Block) Attributes() []string {
	if len(b.Lines) < 2 {
		return nil
	}
	return b.Lines[1:]
}

// IsHeaderLine reports whether line opens a new record under p.
func IsHeaderLine(line string, p Policy) bool {
	if IsPhoneLine(line) {
		return false
	}
	if p.Header == HeaderLenient {
		return true
	}
	if p.AttributeGuard && looksLikeAttribute(line) {
		return false
	}
	return !p.IsKeywordLine(line)
}

// Segment groups normalized lines into blocks. Lines seen before the first
// header line have no record to attach to and are dropped.
func Segment(lines []string, p Policy) []Block {
	var (
		blocks  []Block
		current []string
	)
	for _, line := range lines {
		if IsHeaderLine(line, p) {
			if current != nil {
				blocks = append(blocks, Block{Lines: current})
			}
			current = []string{line}
			continue
		}
		if current == nil {
			continue
		}
		current = append(current, line)
	}
	if current != nil {
		blocks = append(blocks, Block{Lines: current})
	}
	return blocks
}
