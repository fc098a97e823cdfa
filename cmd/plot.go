/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"image/color"
	"math"

	"github.com/notargets/avs/chart2d"
	utils2 "github.com/notargets/avs/utils"
	"github.com/spf13/cobra"

	"github.com/notargets/gorefine/mesh"
	"github.com/notargets/gorefine/tree"
)

// PlotCmd represents the plot command
var PlotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Draw the leaves and hanging nodes of a refined quadrilateral mesh",
	Long: `
Builds the mesh described by the input file, applies its refinement plan and opens a
window showing every leaf element, with a cross on every hanging node.

gorefine plot -I input.yaml`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		m, _, err := buildMesh(cmd)
		if err != nil {
			return
		}
		if m.Kind() != tree.Quad {
			err = fmt.Errorf("only quadrilateral meshes can be plotted, have a %s mesh", m.Kind())
			return
		}
		m.Fprint(cmd.OutOrStdout())
		PlotLines(MeshLines(m))
		return
	},
}

func init() {
	rootCmd.AddCommand(PlotCmd)
}

// MeshLines returns line segments as x1,y1,x2,y2 runs: the element edges in white and
// a cross on each hanging node in red
func MeshLines(m *mesh.Mesh) (lines map[color.RGBA][]float32) {
	const nSeg = 8 // segments per curved edge
	lines = make(map[color.RGBA][]float32)
	edges := [][2][]float64{
		{{-1, -1}, {1, -1}}, {{1, -1}, {1, 1}}, {{1, 1}, {-1, 1}}, {{-1, 1}, {-1, -1}},
	}
	for _, e := range m.Elements() {
		for _, edge := range edges {
			prev := e.Position(edge[0])
			for i := 1; i <= nSeg; i++ {
				f := float64(i) / nSeg
				s := []float64{
					edge[0][0] + f*(edge[1][0]-edge[0][0]),
					edge[0][1] + f*(edge[1][1]-edge[0][1]),
				}
				x := e.Position(s)
				AddLine(prev[0], prev[1], x[0], x[1], utils2.WHITE, lines)
				prev = x
			}
		}
	}
	var xy []float32
	for _, g := range m.HangingNodes() {
		x := m.Nodes()[g].X
		xy = append(xy, float32(x[0]), float32(x[1]))
	}
	AddCrossHairs(xy, utils2.RED, lines)
	return
}

func AddLine(x1, y1, x2, y2 float64, col color.RGBA,
	lines map[color.RGBA][]float32) {
	lines[col] = append(lines[col],
		float32(x1), float32(y1),
		float32(x2), float32(y2),
	)
}

func AddCrossHairs(xy []float32, col color.RGBA,
	lines map[color.RGBA][]float32) {
	var (
		lenXY = len(xy) / 2
		size  = float32(0.02)
	)
	for i := 0; i < lenXY; i++ {
		lines[col] = append(lines[col],
			xy[2*i]-size, xy[2*i+1],
			xy[2*i]+size, xy[2*i+1],
			xy[2*i], xy[2*i+1]-size,
			xy[2*i], xy[2*i+1]+size,
		)
	}
}

// PlotLines opens a chart showing lines and blocks forever so that the chart stays up
func PlotLines(lines map[color.RGBA][]float32) {
	var (
		xMin, xMax = float32(math.MaxFloat32), -float32(math.MaxFloat32)
		yMin, yMax = float32(math.MaxFloat32), -float32(math.MaxFloat32)
	)
	for _, line := range lines {
		xMin, xMax, yMin, yMax = getMinMax(line, xMin, xMax, yMin, yMax)
	}
	// Leave a margin around the mesh
	dx, dy := 0.05*(xMax-xMin), 0.05*(yMax-yMin)
	ch := chart2d.NewChart2D(xMin-dx, xMax+dx, yMin-dy, yMax+dy,
		1024, 1024, utils2.WHITE, utils2.BLACK)
	for col, line := range lines {
		ch.AddLine(line, col)
	}
	select {}
}

func getMinMax(xy []float32, xMin, xMax, yMin, yMax float32) (float32, float32, float32, float32) {
	for i := 0; i < len(xy)/2; i++ {
		x, y := xy[2*i], xy[2*i+1]
		xMin, xMax = min(xMin, x), max(xMax, x)
		yMin, yMax = min(yMin, y), max(yMax, y)
	}
	return xMin, xMax, yMin, yMax
}
