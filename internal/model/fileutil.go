package model

import (
	"bufio"
	"fmt"
	"os"
)

// ContextLine is one line of a trace shown around a diagnostic.
type ContextLine struct {
	Number int
	Text   string
	Target bool // The line the diagnostic points at
}

// LineContext represents a trace line with its surrounding lines
type LineContext struct {
	LineNumber int
	Lines      []ContextLine
	ErrorMsg   string // Set if the trace couldn't be read
}

// GetLineContext reads a trace file and returns the target line with up to
// radius lines on either side.
func GetLineContext(filePath string, lineNumber, radius int) LineContext {
	return GetLineContexts(filePath, []int{lineNumber}, radius)[lineNumber]
}

// GetLineContexts is GetLineContext for many lines in a single read of the
// file. The result is keyed by line number.
func GetLineContexts(filePath string, lineNumbers []int, radius int) map[int]LineContext {
	if radius < 0 {
		radius = 0
	}

	result := make(map[int]LineContext, len(lineNumbers))
	// covers maps each line to the targets whose window includes it
	covers := make(map[int][]int)
	last := 0
	for _, ln := range lineNumbers {
		if _, dup := result[ln]; dup {
			continue
		}
		result[ln] = LineContext{LineNumber: ln}
		for n := max(ln-radius, 1); n <= ln+radius; n++ {
			covers[n] = append(covers[n], ln)
		}
		last = max(last, ln+radius)
	}

	fail := func(msg string) map[int]LineContext {
		for ln, ctx := range result {
			ctx.Lines = nil
			ctx.ErrorMsg = msg
			result[ln] = ctx
		}
		return result
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fail(fmt.Sprintf("Could not read trace: %v", err))
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	n := 0
	for n < last && scanner.Scan() {
		n++
		for _, ln := range covers[n] {
			ctx := result[ln]
			ctx.Lines = append(ctx.Lines, ContextLine{
				Number: n,
				Text:   scanner.Text(),
				Target: n == ln,
			})
			result[ln] = ctx
		}
	}
	if err := scanner.Err(); err != nil {
		return fail(fmt.Sprintf("Error reading trace: %v", err))
	}

	for ln, ctx := range result {
		if ln < 1 || ln > n {
			ctx.Lines = nil
			ctx.ErrorMsg = fmt.Sprintf("Line %d out of range (trace has %d lines)", ln, n)
			result[ln] = ctx
		}
	}
	return result
}
