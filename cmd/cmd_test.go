package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	utils2 "github.com/notargets/avs/utils"

	"github.com/notargets/gorefine/mesh"
	"github.com/notargets/gorefine/tree"
)

var fileInput = []byte(`
Title: Test Case
Kind: Quad
NX: 2
NY: 1
Lengths: [2, 1]
Refine:
  - Roots: [1]
`)

func writeInput(t *testing.T) (name string) {
	name = filepath.Join(t.TempDir(), "input.yaml")
	require.NoError(t, os.WriteFile(name, fileInput, 0644))
	return
}

// run executes the root command, giving every flag a value since flags persist between runs
func run(args ...string) (out string, err error) {
	var buf, errBuf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&errBuf)
	rootCmd.SetArgs(append(args, "-F", "", "--policy", ""))
	err = rootCmd.Execute()
	return buf.String(), err
}

func TestSelfTestCommand(t *testing.T) {
	input := writeInput(t)
	docFile := filepath.Join(t.TempDir(), "neighbours.txt")
	out, err := run("selftest", "-I", input, "-o", docFile)
	require.NoError(t, err)
	assert.Contains(t, out, "\"Test Case\"")
	assert.Contains(t, out, "leaf elements = 5")
	assert.Contains(t, out, "PASSED")
	doc, err := os.ReadFile(docFile)
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(string(doc)))

	_, err = run("selftest", "-I", "", "-o", "")
	assert.Error(t, err)
	_, err = run("selftest", "-I", filepath.Join(t.TempDir(), "missing.yaml"), "-o", "")
	assert.Error(t, err)
}

func TestSelfTestVerbose(t *testing.T) {
	out, err := run("selftest", "-I", writeInput(t), "-o", "", "-v")
	require.NoError(t, err)
	assert.Contains(t, out, "1/SW: W=0(-1) E=1/SE(0) S=- N=1/NW(0)\n")
	assert.Contains(t, out, "0: W=- E=1(0) S=- N=-\n")
	assert.Contains(t, out, "PASSED")
}

func TestPrintGeometryFailure(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, PrintGeometryFailure(&buf, fmt.Errorf("unrelated")))
	assert.Empty(t, buf.String())

	ge := &tree.GeometryError{MaxError: 0.1, Tolerance: 1.e-6, Worst: "1/SW:W->0:E", Asymmetric: []string{"1/SW:W->0:E"}}
	assert.True(t, PrintGeometryFailure(&buf, fmt.Errorf("building mesh: %w", ge)))
	out := buf.String()
	assert.Contains(t, out, "Max error = 1.000e-01 (tolerance 1.000e-06) at 1/SW:W->0:E\n")
	assert.Contains(t, out, "Asymmetric pairs = 1\n\t1/SW:W->0:E\n")
	assert.True(t, strings.HasSuffix(out, "FAILED\n"))
}

func TestHangingCommand(t *testing.T) {
	out, err := run("hanging", "-I", writeInput(t))
	require.NoError(t, err)
	assert.Contains(t, out, "hanging = 1")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	last := lines[len(lines)-1]
	assert.Contains(t, last, "(1,0.5) = ")
	assert.Contains(t, last, "0.50000*")
	assert.Contains(t, last, "(1,0)")
	assert.Contains(t, last, "(1,1)")
}

func TestMeshLines(t *testing.T) {
	m, err := mesh.NewRectangularQuadMesh(2, 1, 2, 1, false, mesh.Config{})
	require.NoError(t, err)
	require.NoError(t, m.Refine([]*tree.Tree{m.Forest().Root(1).Tree()}))
	lines := MeshLines(m)
	// 5 elements, 4 edges of 8 segments each
	assert.Len(t, lines[utils2.WHITE], 5*4*8*4)
	assert.Len(t, lines[utils2.RED], 8)
	assert.InDelta(t, 1-0.02, lines[utils2.RED][0], 1.e-6)
	assert.InDelta(t, 0.5, lines[utils2.RED][1], 1.e-6)

	xMin, xMax, yMin, yMax := getMinMax(lines[utils2.WHITE], 10, -10, 10, -10)
	assert.Equal(t, []float32{0, 2, 0, 1}, []float32{xMin, xMax, yMin, yMax})
}
