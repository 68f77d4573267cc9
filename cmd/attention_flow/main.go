// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// attention_flow plots the attention from one token to another, per head and layer, for one example of an
// attention dump.
//
// Tokens are matched after removing the tokenizer's special characters (see attention.FormatSpecialChars),
// and the last occurrence of each is used.
//
// Example:
//
//	attention_flow -data ~/data/outputs/attention -set test -example 12 -from "[MASK]" -to Paris
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/attnlens/attnlens/pkg/attention"
	"github.com/attnlens/attnlens/pkg/attention/dump"
	"github.com/attnlens/attnlens/pkg/attention/flow"
	"github.com/attnlens/attnlens/ui/commandline"
	"github.com/attnlens/attnlens/ui/plots/pngplot"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

var (
	flagDataDir  = flag.String("data", "~/data/outputs/attention", "Directory with the attention dumps, named \"output_attentions_<set>.json[l]\".")
	flagSet      = flag.String("set", "test", "Evaluation set of the example.")
	flagExample  = flag.String("example", "", "Name of the example. If empty, the first example of the set is used.")
	flagFrom     = flag.String("from", attention.MaskToken, "Token attending.")
	flagTo       = flag.String("to", attention.EntityToken, "Token attended to.")
	flagOnlyMask = flag.Bool("only_mask", false, "Zero every query row but the mask token's (second to last) before "+
		"measuring, so only the attention from the mask token is kept.")
	flagOutput = flag.String("output", "", "File where to save the plot (.png, .svg or .pdf). If empty, only the table is printed.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	source := must.M1(dump.NewDir(*flagDataDir))
	examples := must.M1(source.Examples(*flagSet))
	if len(examples) == 0 {
		klog.Errorf("No examples in evaluation set %q of %q", *flagSet, source.Path)
		os.Exit(1)
	}
	idx := 0
	if *flagExample != "" {
		idx = slices.IndexFunc(examples, func(e attention.Example) bool { return e.Name == *flagExample })
		if idx < 0 {
			klog.Errorf("Example %q not found in evaluation set %q", *flagExample, *flagSet)
			os.Exit(1)
		}
	}
	e := &examples[idx]
	fmt.Printf("Sentence: %s\nTokens: %s\n", e.Sentence, strings.Join(attention.FormatSpecialChars(e.Tokens), " "))

	perHead, err := tokenToToken(e, *flagFrom, *flagTo, *flagOnlyMask)
	if err != nil {
		klog.Errorf("Failed: %+v", err)
		os.Exit(1)
	}
	printTable(perHead)

	if *flagOutput != "" {
		p := must.M1(pngplot.Token2TokenPlot(perHead, *flagFrom, *flagTo))
		outputPath := *flagOutput
		if filepath.Ext(outputPath) == "" {
			outputPath += ".png"
		}
		must.M(pngplot.Save(p, outputPath))
		klog.Infof("Plot saved to %q", outputPath)
	}
}

// tokenToToken returns the attention from token `from` to token `to` of the example, per layer and head.
// With onlyMask, every query row but the mask token's is zeroed first.
func tokenToToken(e *attention.Example, from, to string, onlyMask bool) ([][]float64, error) {
	attn := e.Attention
	if onlyMask {
		attn = attention.OnlyMaskAttention(attn, attention.DefaultMaskIndex)
	}
	return flow.Token2Token(attention.FormatSpecialChars(e.Tokens), attn, from, to)
}

// printTable prints the attention of each head (columns) per layer (rows), and the mean over heads.
func printTable(perHead [][]float64) {
	numHeads := 0
	if len(perHead) > 0 {
		numHeads = len(perHead[0])
	}
	headers := []string{"Layer"}
	for head := range numHeads {
		headers = append(headers, fmt.Sprintf("H%d", head))
	}
	headers = append(headers, "Mean")
	table := commandline.NewTable(headers...)
	means := flow.LayerMean(perHead)
	for layer, heads := range perHead {
		row := []string{fmt.Sprintf("%d", layer)}
		for _, v := range heads {
			row = append(row, fmt.Sprintf("%.3f", v))
		}
		row = append(row, fmt.Sprintf("%.3f", means[layer]))
		table.Row(row...)
	}
	fmt.Println(table.String())
}
