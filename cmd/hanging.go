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
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/notargets/gorefine/mesh"
)

// HangingCmd represents the hanging command
var HangingCmd = &cobra.Command{
	Use:   "hanging",
	Short: "List the hanging nodes of the refined mesh and their masters",
	Long: `
Builds the mesh described by the input file, applies its refinement plan and prints
every hanging node with the weighted independent nodes that determine its value.

gorefine hanging -I input.yaml --policy Mortar`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		m, ip, err := buildMesh(cmd)
		if err != nil {
			return
		}
		defer m.Destroy()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "\"%s\"\n", ip.Title)
		m.Fprint(out)
		PrintHanging(out, m)
		return
	},
}

func init() {
	rootCmd.AddCommand(HangingCmd)
}

// PrintHanging writes one line per hanging node: its number, position and masters
func PrintHanging(w io.Writer, m *mesh.Mesh) {
	nodes := m.Nodes()
	for _, g := range m.HangingNodes() {
		masters, _ := m.IsHanging(g)
		terms := make([]string, len(masters))
		for i, mst := range masters {
			terms[i] = fmt.Sprintf("%8.5f*[%d]%s", mst.Weight, mst.Node, formatX(nodes[mst.Node].X))
		}
		fmt.Fprintf(w, "[%d]%s = %s\n", g, formatX(nodes[g].X), strings.Join(terms, " + "))
	}
}

func formatX(x []float64) string {
	s := make([]string, len(x))
	for i, v := range x {
		s[i] = fmt.Sprintf("%g", v)
	}
	return "(" + strings.Join(s, ",") + ")"
}
