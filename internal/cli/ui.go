package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}

func printCheck(w io.Writer, ok bool, label, detail string) {
	mark := color.GreenString("✓")
	if !ok {
		mark = color.RedString("✗")
	}
	fmt.Fprintf(w, "%-10s %s %s\n", label+":", mark, detail)
}
