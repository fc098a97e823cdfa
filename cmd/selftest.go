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
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/notargets/gorefine/tree"
)

// SelfTestCmd represents the selftest command
var SelfTestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Check the neighbours of every leaf of the refined mesh",
	Long: `
Builds the mesh described by the input file, applies its refinement plan and checks,
for every leaf and every face, that the neighbour found agrees with the geometry on
both sides. Exits non-zero when the discrepancy exceeds the tolerance.

gorefine selftest -I input.yaml --docFile neighbours.txt`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			docFile string
			verbose bool
			doc     io.Writer
			rep     tree.NeighbourReport
			out     = cmd.OutOrStdout()
		)
		if docFile, err = cmd.Flags().GetString("docFile"); err != nil {
			return
		}
		if verbose, err = cmd.Flags().GetBool("verbose"); err != nil {
			return
		}
		m, ip, err := buildMesh(cmd)
		if err != nil {
			// The mesh checks its geometry while it is built
			PrintGeometryFailure(out, err)
			return
		}
		defer m.Destroy()
		if len(docFile) != 0 {
			var file *os.File
			if file, err = os.Create(docFile); err != nil {
				return
			}
			defer file.Close()
			doc = file
		}
		fmt.Fprintf(out, "\"%s\"\n", ip.Title)
		m.Fprint(out)
		if verbose {
			for _, l := range m.Forest().Leaves() {
				fmt.Fprintln(out, l.NeighbourSummary())
			}
		}
		rep, err = m.Forest().CheckAllNeighbours(doc)
		rep.Fprint(out)
		if err != nil {
			fmt.Fprintf(out, "FAILED\n")
			return
		}
		fmt.Fprintf(out, "PASSED\n")
		return
	},
}

func init() {
	rootCmd.AddCommand(SelfTestCmd)
	SelfTestCmd.Flags().StringP("docFile", "o", "", "write one line per leaf face and neighbour to this file")
	SelfTestCmd.Flags().BoolP("verbose", "v", false, "print the neighbours of every leaf")
}

// PrintGeometryFailure reports err when it is a failed geometry check, other errors are left to the caller
func PrintGeometryFailure(w io.Writer, err error) (printed bool) {
	var ge *tree.GeometryError
	if !errors.As(err, &ge) {
		return
	}
	ge.Fprint(w)
	fmt.Fprintf(w, "FAILED\n")
	return true
}
